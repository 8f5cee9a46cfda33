package adminplan

import (
	"fmt"

	"github.com/orneryd/vanirdb/pkg/auth"
	"github.com/orneryd/vanirdb/pkg/cypher"
)

// SyntaxError reports a statement shape the builder rejects at plan time:
// a restricted fallback violation or a procedure signature mismatch.
// It is a compile-time failure, never retried.
type SyntaxError struct {
	Msg string
	Pos cypher.Position
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (line %d, column %d (offset: %d))", e.Msg, e.Pos.Line, e.Pos.Column, e.Pos.Offset)
}

// UnauthorizedError is raised at execution time by an AssertAllowedAction
// guard when the principal lacks a required action.
type UnauthorizedError struct {
	Principal string
	Actions   []auth.Action
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("permission denied: %s is not allowed to perform %v", e.Principal, e.Actions)
}

// ForbiddenError is raised at execution time by a self-protection guard.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// UnsupportedCommandError is the terminal fallback: the statement is
// syntactically fine but matches no administrative or restricted-call
// shape.
type UnsupportedCommandError struct {
	Query string
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("not a recognized system command or procedure: %q", e.Query)
}
