package adminplan

import (
	"github.com/orneryd/vanirdb/pkg/auth"
	"github.com/orneryd/vanirdb/pkg/cypher"
)

// privilegeTuple is one fully-expanded privilege target.
type privilegeTuple struct {
	scope     auth.Scope
	role      string
	qualifier auth.Qualifier
	resource  auth.Resource
}

// expandPrivilege enumerates the cross product of a privilege command's
// scopes, roles, qualifiers, and resources. Enumeration order is fixed:
// scope outermost, then role, then qualifier, then resource. Plans built
// from the same statement are therefore identical node for node.
func expandPrivilege(scope auth.Scope, roles []string, qualifier auth.Qualifier, resource auth.Resource) []privilegeTuple {
	var tuples []privilegeTuple
	for _, sc := range scope.Simplify() {
		for _, role := range roles {
			for _, q := range qualifier.Simplify() {
				for _, res := range resource.Simplify() {
					tuples = append(tuples, privilegeTuple{scope: sc, role: role, qualifier: q, resource: res})
				}
			}
		}
	}
	return tuples
}

// grantPrivilege folds the expanded tuples onto a single AssignPrivilege
// guard: one guard node, one GrantPrivilege node per tuple.
func (b *builder) grantPrivilege(s cypher.GrantPrivilege) *PlanNode {
	chain := b.guard(auth.ActionAssignPrivilege)
	for _, t := range expandPrivilege(s.Scope, s.Roles, s.Qualifier, s.Resource) {
		chain = b.node(chain, KindGrantPrivilege, privilegeArgs(s.Level, s.Action, t, ""))
	}
	return chain
}

func (b *builder) denyPrivilege(s cypher.DenyPrivilege) *PlanNode {
	chain := b.guard(auth.ActionAssignPrivilege)
	for _, t := range expandPrivilege(s.Scope, s.Roles, s.Qualifier, s.Resource) {
		chain = b.node(chain, KindDenyPrivilege, privilegeArgs(s.Level, s.Action, t, ""))
	}
	return chain
}

// revokePrivilege folds revocations onto a single RemovePrivilege guard.
// RevokeBoth decomposes each tuple into a grant-revocation immediately
// followed by the matching deny-revocation, so N tuples yield 2N nodes in
// strict alternation.
func (b *builder) revokePrivilege(s cypher.RevokePrivilege) *PlanNode {
	chain := b.guard(auth.ActionRemovePrivilege)
	for _, t := range expandPrivilege(s.Scope, s.Roles, s.Qualifier, s.Resource) {
		switch s.RevokeType {
		case auth.RevokeGrant:
			chain = b.node(chain, KindRevokePrivilege, privilegeArgs(s.Level, s.Action, t, auth.FlavorGranted))
		case auth.RevokeDeny:
			chain = b.node(chain, KindRevokePrivilege, privilegeArgs(s.Level, s.Action, t, auth.FlavorDenied))
		default:
			chain = b.node(chain, KindRevokePrivilege, privilegeArgs(s.Level, s.Action, t, auth.FlavorGranted))
			chain = b.node(chain, KindRevokePrivilege, privilegeArgs(s.Level, s.Action, t, auth.FlavorDenied))
		}
	}
	return chain
}

// privilegeArgs packs one tuple into node arguments. An empty flavor means
// the node is not a revocation.
func privilegeArgs(level cypher.ScopeLevel, action auth.Action, t privilegeTuple, flavor auth.PrivilegeFlavor) map[string]any {
	args := map[string]any{
		"level":     level.String(),
		"action":    action,
		"scope":     t.scope,
		"role":      t.role,
		"qualifier": t.qualifier,
		"resource":  t.resource,
	}
	if flavor != "" {
		args["flavor"] = flavor
	}
	return args
}
