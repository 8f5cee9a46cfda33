package cypher

import (
	"fmt"
	"strings"
	"unicode"
)

// token kinds
const (
	tokWord   = iota // bare word or backquoted identifier
	tokString        // quoted string literal, quotes stripped
	tokParam         // $name, dollar stripped
	tokPunct         // single punctuation rune
	tokEOF
)

type token struct {
	kind int
	text string
	pos  Position
}

// upper returns the uppercased text for keyword matching.
func (t token) upper() string {
	return strings.ToUpper(t.text)
}

// lex splits a query into tokens. It is deliberately forgiving: anything it
// cannot classify becomes punctuation, and the raw-query clause scan only
// needs keyword positions.
func lex(input string) ([]token, error) {
	var tokens []token
	line, col := 1, 1
	i := 0
	advance := func(n int) {
		for k := 0; k < n; k++ {
			if input[i+k] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
		i += n
	}
	for i < len(input) {
		c := rune(input[i])
		pos := Position{Offset: i, Line: line, Column: col}
		switch {
		case unicode.IsSpace(c):
			advance(1)
		case c == '\'' || c == '"':
			quote := byte(c)
			end := i + 1
			for end < len(input) && input[end] != quote {
				end++
			}
			if end >= len(input) {
				return nil, fmt.Errorf("unterminated string literal at line %d, column %d", line, col)
			}
			tokens = append(tokens, token{kind: tokString, text: input[i+1 : end], pos: pos})
			advance(end + 1 - i)
		case c == '`':
			end := i + 1
			for end < len(input) && input[end] != '`' {
				end++
			}
			if end >= len(input) {
				return nil, fmt.Errorf("unterminated quoted identifier at line %d, column %d", line, col)
			}
			tokens = append(tokens, token{kind: tokWord, text: input[i+1 : end], pos: pos})
			advance(end + 1 - i)
		case c == '$':
			end := i + 1
			for end < len(input) && isIdentRune(rune(input[end])) {
				end++
			}
			tokens = append(tokens, token{kind: tokParam, text: input[i+1 : end], pos: pos})
			advance(end - i)
		case isIdentRune(c):
			end := i
			for end < len(input) && isIdentRune(rune(input[end])) {
				end++
			}
			tokens = append(tokens, token{kind: tokWord, text: input[i:end], pos: pos})
			advance(end - i)
		default:
			tokens = append(tokens, token{kind: tokPunct, text: string(c), pos: pos})
			advance(1)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: Position{Offset: len(input), Line: line, Column: col}})
	return tokens, nil
}

func isIdentRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.'
}
