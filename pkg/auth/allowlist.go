// Package auth: system procedure allowlist.
//
// The restricted fallback statement shape (single CALL plus optional
// RETURN) may only invoke procedures registered here. The credential-expiry
// bypass set is policy configuration, not algorithm: procedures listed
// there stay callable while the principal's password is expired.
package auth

import (
	"fmt"
	"sort"
	"strings"
)

// ProcedureSignature declares one system procedure's call shape.
type ProcedureSignature struct {
	Name   string   // qualified name, e.g. "dbms.security.changePassword"
	Args   []string // ordered argument names
	Yields []string // result fields available to YIELD / RETURN
}

// ProcedureAllowlist is the set of procedures callable through the
// restricted fallback.
type ProcedureAllowlist struct {
	procedures   map[string]ProcedureSignature
	expiryBypass map[string]struct{}
}

// NewProcedureAllowlist builds an allowlist from the given signatures and
// expiry-bypass names.
func NewProcedureAllowlist(signatures []ProcedureSignature, expiryBypass []string) *ProcedureAllowlist {
	a := &ProcedureAllowlist{
		procedures:   make(map[string]ProcedureSignature, len(signatures)),
		expiryBypass: make(map[string]struct{}, len(expiryBypass)),
	}
	for _, sig := range signatures {
		a.procedures[sig.Name] = sig
	}
	for _, name := range expiryBypass {
		a.expiryBypass[name] = struct{}{}
	}
	return a
}

// DefaultProcedureAllowlist returns the stock system procedures.
func DefaultProcedureAllowlist() *ProcedureAllowlist {
	return NewProcedureAllowlist(
		[]ProcedureSignature{
			{Name: "dbms.security.changePassword", Args: []string{"password"}},
			{Name: "dbms.showCurrentUser", Yields: []string{"username", "roles", "flags"}},
			{Name: "dbms.cluster.overview", Yields: []string{"id", "addresses", "role"}},
			{Name: "db.ping", Yields: []string{"success"}},
		},
		[]string{"dbms.security.changePassword"},
	)
}

// IsSystemProcedure reports whether the qualified name is allow-listed.
func (a *ProcedureAllowlist) IsSystemProcedure(name string) bool {
	_, ok := a.procedures[name]
	return ok
}

// BypassesCredentialExpiry reports whether the procedure may be called
// while the principal's credentials are expired.
func (a *ProcedureAllowlist) BypassesCredentialExpiry(name string) bool {
	_, ok := a.expiryBypass[name]
	return ok
}

// CheckCall re-checks a call's argument count and yielded fields against
// the declared signature. Returns one message per violation, sorted for
// deterministic reporting.
func (a *ProcedureAllowlist) CheckCall(name string, argCount int, yields []string) []string {
	sig, ok := a.procedures[name]
	if !ok {
		return []string{fmt.Sprintf("There is no procedure with the name `%s` registered for this database instance.", name)}
	}
	var problems []string
	if argCount != len(sig.Args) {
		problems = append(problems, fmt.Sprintf(
			"Procedure call does not provide the required number of arguments: got %d expected %d.",
			argCount, len(sig.Args)))
	}
	for _, y := range yields {
		if !containsField(sig.Yields, y) {
			problems = append(problems, fmt.Sprintf(
				"Unknown procedure output: `%s` is not returned by `%s`.", y, name))
		}
	}
	sort.Strings(problems)
	return problems
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}
