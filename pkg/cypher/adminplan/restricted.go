package adminplan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/vanirdb/pkg/cypher"
)

// restrictedNote explains the only statement shape the system database
// accepts besides administration commands.
const restrictedNote = "The system database supports a single CALL clause to a system procedure, optionally followed by a RETURN clause."

// restrictedCall applies the restricted fallback to a non-administrative
// query. Exactly one CALL to a system procedure, optionally followed by a
// RETURN, passes; a shape violation raises a syntax error; anything else
// is "no plan" and left for the terminal fallback.
func (b *builder) restrictedCall(q cypher.RawQuery) (*PlanNode, error) {
	if call, ret, ok := b.singleSystemCall(q); ok {
		if problems := b.ctx.Procedures.CheckCall(call.Procedure, len(call.Arguments), requestedFields(call, ret)); len(problems) > 0 {
			return nil, b.ctx.syntaxError(strings.Join(problems, " "), call.Pos)
		}
		chain := b.node(nil, KindAssertValidCredentials, map[string]any{
			"bypassExpiry": b.ctx.Procedures.BypassesCredentialExpiry(call.Procedure),
		})
		args := map[string]any{
			"procedure": call.Procedure,
			"arguments": call.Arguments,
		}
		if len(call.Yields) > 0 {
			args["yields"] = call.Yields
		}
		if ret != nil {
			args["returns"] = ret.Items
		}
		return b.node(chain, KindSystemProcedureCall, args), nil
	}

	disallowed, calls := surveyClauses(q)
	if len(disallowed) > 0 {
		return nil, b.ctx.syntaxError(fmt.Sprintf(
			"The following unsupported clauses were used: %s. %s",
			strings.Join(disallowed, ", "), restrictedNote), firstDisallowedPos(q))
	}
	if len(calls) > 1 {
		return nil, b.ctx.syntaxError(fmt.Sprintf(
			"The query contained %d too many CALL clauses. %s",
			len(calls)-1, restrictedNote), calls[1].Pos)
	}
	return nil, nil
}

// singleSystemCall matches the allowed shape: one CALL to an allow-listed
// procedure, optionally followed by one RETURN, nothing else.
func (b *builder) singleSystemCall(q cypher.RawQuery) (*cypher.CallClause, *cypher.ReturnClause, bool) {
	if len(q.Clauses) == 0 || len(q.Clauses) > 2 {
		return nil, nil, false
	}
	call, ok := q.Clauses[0].(cypher.CallClause)
	if !ok || !b.ctx.Procedures.IsSystemProcedure(call.Procedure) {
		return nil, nil, false
	}
	if len(q.Clauses) == 1 {
		return &call, nil, true
	}
	ret, ok := q.Clauses[1].(cypher.ReturnClause)
	if !ok {
		return nil, nil, false
	}
	return &call, &ret, true
}

// requestedFields lists the result fields the query asks for, so the
// signature re-check can reject unknown ones. YIELD wins over RETURN
// because RETURN items then refer to yielded bindings, not the procedure.
func requestedFields(call *cypher.CallClause, ret *cypher.ReturnClause) []string {
	if len(call.Yields) > 0 {
		return call.Yields
	}
	if ret == nil {
		return nil
	}
	var fields []string
	for _, item := range ret.Items {
		if item == "*" {
			continue
		}
		if i := strings.Index(strings.ToUpper(item), " AS "); i >= 0 {
			item = item[:i]
		}
		fields = append(fields, strings.TrimSpace(item))
	}
	return fields
}

// surveyClauses collects the distinct names of clauses other than
// CALL/RETURN, sorted, plus every CALL clause in order.
func surveyClauses(q cypher.RawQuery) (disallowed []string, calls []cypher.CallClause) {
	seen := map[string]struct{}{}
	for _, c := range q.Clauses {
		switch c := c.(type) {
		case cypher.CallClause:
			calls = append(calls, c)
		case cypher.ReturnClause:
		default:
			name := c.ClauseName()
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			disallowed = append(disallowed, name)
		}
	}
	sort.Strings(disallowed)
	return disallowed, calls
}

func firstDisallowedPos(q cypher.RawQuery) cypher.Position {
	for _, c := range q.Clauses {
		switch c.(type) {
		case cypher.CallClause, cypher.ReturnClause:
		default:
			return c.ClausePos()
		}
	}
	return cypher.Position{}
}
