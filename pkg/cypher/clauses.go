package cypher

// Position locates a token in the original query text.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Clause is one top-level clause of a raw (non-administrative) query.
// Only enough shape is kept for the restricted procedure-call check and
// its diagnostics.
type Clause interface {
	ClauseName() string
	ClausePos() Position
}

// CallClause is CALL proc(args) [YIELD fields].
type CallClause struct {
	Procedure string
	Arguments []string
	Yields    []string
	Pos       Position
}

func (c CallClause) ClauseName() string  { return "CALL" }
func (c CallClause) ClausePos() Position { return c.Pos }

// ReturnClause is RETURN items.
type ReturnClause struct {
	Items []string
	Pos   Position
}

func (r ReturnClause) ClauseName() string  { return "RETURN" }
func (r ReturnClause) ClausePos() Position { return r.Pos }

// GenericClause is any other clause, kept by name only (MATCH, MERGE, ...).
type GenericClause struct {
	Name string
	Pos  Position
}

func (g GenericClause) ClauseName() string  { return g.Name }
func (g GenericClause) ClausePos() Position { return g.Pos }

// RawQuery is a statement that matched no administration command form.
// The adminplan builder applies the restricted procedure-call check to it.
type RawQuery struct {
	Original string
	Clauses  []Clause
}

func (RawQuery) adminStatement() {}
