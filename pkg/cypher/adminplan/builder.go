package adminplan

import (
	"fmt"

	"github.com/orneryd/vanirdb/pkg/auth"
	"github.com/orneryd/vanirdb/pkg/cypher"
)

// Context carries the per-call collaborators the builder needs. It is
// passed explicitly so BuildPlan stays a pure function of its inputs.
type Context struct {
	// Principal is the acting user. Self-protection guards compare target
	// user names against it.
	Principal string

	// Params holds bound query parameters for parameterized names.
	Params map[string]any

	// Procedures is the system procedure allowlist consulted by the
	// restricted fallback.
	Procedures *auth.ProcedureAllowlist

	// NewSyntaxError constructs syntax-error conditions. Nil uses the
	// package default.
	NewSyntaxError func(msg string, pos cypher.Position) error

	// Render produces the audit-log label for a statement. Nil uses
	// cypher.Render.
	Render func(stmt cypher.Statement) string
}

func (c *Context) syntaxError(msg string, pos cypher.Position) error {
	if c.NewSyntaxError != nil {
		return c.NewSyntaxError(msg, pos)
	}
	return &SyntaxError{Msg: msg, Pos: pos}
}

func (c *Context) render(stmt cypher.Statement) string {
	if c.Render != nil {
		return c.Render(stmt)
	}
	return cypher.Render(stmt)
}

// resolve returns the literal name, looking parameter-bound names up in
// Params.
func (c *Context) resolve(n cypher.NameOrParam) (string, error) {
	if !n.IsParam() {
		return n.Name, nil
	}
	v, ok := c.Params[n.Param]
	if !ok {
		return "", fmt.Errorf("expected parameter: $%s", n.Param)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter $%s must be a string, got %T", n.Param, v)
	}
	return s, nil
}

// BuildPlan assembles the guarded execution plan for an administration
// statement. It returns (nil, nil) when no administrative plan applies;
// the terminal fallback stage rejects such statements.
//
// The builder performs no I/O and holds no state across calls; it is safe
// to call concurrently.
func BuildPlan(stmt cypher.Statement, ctx *Context) (*Plan, error) {
	b := &builder{ctx: ctx}

	var (
		chain    *PlanNode
		mutating = true
		err      error
	)
	switch s := stmt.(type) {
	case cypher.CreateUser:
		chain, err = b.createUser(s)
	case cypher.DropUser:
		chain, err = b.dropUser(s)
	case cypher.AlterUser:
		chain, err = b.alterUser(s)
	case cypher.CreateRole:
		chain, err = b.createRole(s)
	case cypher.DropRole:
		chain, err = b.dropRole(s)
	case cypher.GrantRolesToUsers:
		chain, err = b.grantRoles(s)
	case cypher.RevokeRolesFromUsers:
		chain, err = b.revokeRoles(s)
	case cypher.GrantPrivilege:
		chain = b.grantPrivilege(s)
	case cypher.DenyPrivilege:
		chain = b.denyPrivilege(s)
	case cypher.RevokePrivilege:
		chain = b.revokePrivilege(s)
	case cypher.CreateDatabase:
		chain, err = b.createDatabase(s)
	case cypher.DropDatabase:
		chain, err = b.dropDatabase(s)
	case cypher.StartDatabase:
		chain, err = b.startDatabase(s)
	case cypher.StopDatabase:
		chain, err = b.stopDatabase(s)
	case cypher.ShowUsers:
		chain = b.node(b.guard(auth.ActionShowUser), KindShowUsers, nil)
		mutating = false
	case cypher.ShowRoles:
		chain = b.node(b.guard(auth.ActionShowRole), KindShowRoles, nil)
		mutating = false
	case cypher.ShowPrivileges:
		chain = b.node(b.guard(auth.ActionShowPrivilege), KindShowPrivileges, map[string]any{"role": s.Role})
		mutating = false
	case cypher.ShowDatabases:
		chain = b.node(b.guard(auth.ActionShowDatabase), KindShowDatabases, nil)
		mutating = false
	case cypher.RawQuery:
		chain, err = b.restrictedCall(s)
		mutating = false
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, nil
	}
	if mutating {
		chain = b.node(chain, KindLogSystemCommand, map[string]any{"command": ctx.render(stmt)})
	}
	if b.wait != nil {
		chain = b.node(chain, KindWaitForCompletion, map[string]any{
			"database": b.wait.database,
			"timeout":  b.wait.timeout,
		})
	}
	return &Plan{Root: chain, Planner: PlannerName}, nil
}

// --- users ---

func (b *builder) createUser(s cypher.CreateUser) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.User)
	if err != nil {
		return nil, err
	}
	password, err := b.ctx.resolve(s.Password)
	if err != nil {
		return nil, err
	}
	create := map[string]any{
		"user":                  name,
		"password":              password,
		"requirePasswordChange": s.RequirePasswordChange,
		"suspended":             s.Suspended,
	}
	switch s.IfExistsDo {
	case cypher.IfExistsReplace:
		// Replacing a user is as destructive as dropping it.
		chain := b.guard(auth.ActionDropUser, auth.ActionCreateUser)
		chain = b.assertNotCurrentUser(chain, name, "Failed to replace the specified user '%s': Deleting yourself is not allowed.")
		chain = b.node(chain, KindDropUser, map[string]any{"user": name, "ignoreAbsent": true})
		return b.node(chain, KindCreateUser, create), nil
	case cypher.IfExistsDoNothing:
		chain := b.guard(auth.ActionCreateUser)
		chain = b.doNothingIfExists(chain, "User", name)
		return b.node(chain, KindCreateUser, create), nil
	default:
		return b.node(b.guard(auth.ActionCreateUser), KindCreateUser, create), nil
	}
}

func (b *builder) dropUser(s cypher.DropUser) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.User)
	if err != nil {
		return nil, err
	}
	chain := b.guard(auth.ActionDropUser)
	chain = b.assertNotCurrentUser(chain, name, "Failed to delete the specified user '%s': Deleting yourself is not allowed.")
	if s.IfExists {
		chain = b.doNothingIfNotExists(chain, "User", name)
	} else {
		chain = b.ensureExists(chain, "User", name)
	}
	return b.node(chain, KindDropUser, map[string]any{"user": name}), nil
}

func (b *builder) alterUser(s cypher.AlterUser) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.User)
	if err != nil {
		return nil, err
	}
	actions := alterUserActions(s)
	chain := b.guard(actions...)
	if s.Suspended != nil {
		chain = b.assertNotCurrentUser(chain, name, "Failed to alter the specified user '%s': Changing your own activation status is not allowed.")
	}
	args := map[string]any{"user": name}
	if s.Password != nil {
		password, err := b.ctx.resolve(*s.Password)
		if err != nil {
			return nil, err
		}
		args["password"] = password
	}
	if s.RequirePasswordChange != nil {
		args["requirePasswordChange"] = *s.RequirePasswordChange
	}
	if s.Suspended != nil {
		args["suspended"] = *s.Suspended
	}
	return b.node(chain, KindAlterUser, args), nil
}

// alterUserActions derives the actions to authorize from which fields the
// statement changes. A statement with nothing to change cannot come out of
// the parser; reaching here with one is a programmer error, not a
// user-facing failure.
func alterUserActions(s cypher.AlterUser) []auth.Action {
	var actions []auth.Action
	if s.Password != nil || s.RequirePasswordChange != nil {
		actions = append(actions, auth.ActionSetPasswords)
	}
	if s.Suspended != nil {
		actions = append(actions, auth.ActionSetUserStatus)
	}
	if len(actions) == 0 {
		panic("adminplan: ALTER USER statement with no fields to change")
	}
	return actions
}

// --- roles ---

func (b *builder) createRole(s cypher.CreateRole) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.Role)
	if err != nil {
		return nil, err
	}
	var chain *PlanNode
	switch s.IfExistsDo {
	case cypher.IfExistsReplace:
		chain = b.guard(auth.ActionDropRole, auth.ActionCreateRole)
		chain = b.node(chain, KindDropRole, map[string]any{"role": name, "ignoreAbsent": true})
	case cypher.IfExistsDoNothing:
		chain = b.guard(auth.ActionCreateRole)
		chain = b.doNothingIfExists(chain, "Role", name)
	default:
		chain = b.guard(auth.ActionCreateRole)
	}
	if s.CopyOf == nil {
		return b.node(chain, KindCreateRole, map[string]any{"role": name}), nil
	}
	from, err := b.ctx.resolve(*s.CopyOf)
	if err != nil {
		return nil, err
	}
	// The source role must exist before anything is created from it.
	chain = b.node(chain, KindRequireRole, map[string]any{"role": from})
	chain = b.node(chain, KindCreateRole, map[string]any{"role": name})
	chain = b.node(chain, KindCopyRolePrivileges, map[string]any{"from": from, "to": name, "flavor": string(auth.FlavorGranted)})
	return b.node(chain, KindCopyRolePrivileges, map[string]any{"from": from, "to": name, "flavor": string(auth.FlavorDenied)}), nil
}

func (b *builder) dropRole(s cypher.DropRole) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.Role)
	if err != nil {
		return nil, err
	}
	chain := b.guard(auth.ActionDropRole)
	if s.IfExists {
		chain = b.doNothingIfNotExists(chain, "Role", name)
	} else {
		chain = b.ensureExists(chain, "Role", name)
	}
	return b.node(chain, KindDropRole, map[string]any{"role": name}), nil
}

// grantRoles folds roles x users into GrantRoleToUser nodes under one
// AssignRole guard, role-major order.
func (b *builder) grantRoles(s cypher.GrantRolesToUsers) (*PlanNode, error) {
	return b.foldRoleAssignments(s.Roles, s.Users, auth.ActionAssignRole, KindGrantRoleToUser)
}

func (b *builder) revokeRoles(s cypher.RevokeRolesFromUsers) (*PlanNode, error) {
	return b.foldRoleAssignments(s.Roles, s.Users, auth.ActionRemoveRole, KindRevokeRoleFromUser)
}

func (b *builder) foldRoleAssignments(roles, users []cypher.NameOrParam, action auth.Action, kind NodeKind) (*PlanNode, error) {
	chain := b.guard(action)
	for _, role := range roles {
		roleName, err := b.ctx.resolve(role)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			userName, err := b.ctx.resolve(user)
			if err != nil {
				return nil, err
			}
			chain = b.node(chain, kind, map[string]any{"role": roleName, "user": userName})
		}
	}
	return chain, nil
}

// --- shared guard helpers ---

// assertNotCurrentUser wraps destructive user-targeting chains with the
// self-protection guard. It sits between the authorization guard and any
// existence resolution: authorization first, self-protection second.
func (b *builder) assertNotCurrentUser(source *PlanNode, user, reasonFormat string) *PlanNode {
	return b.node(source, KindAssertNotCurrentUser, map[string]any{
		"user":   user,
		"reason": fmt.Sprintf(reasonFormat, user),
	})
}

func (b *builder) ensureExists(source *PlanNode, entity, name string) *PlanNode {
	return b.node(source, KindEnsureExists, map[string]any{"entity": entity, "name": name})
}

func (b *builder) doNothingIfExists(source *PlanNode, entity, name string) *PlanNode {
	return b.node(source, KindDoNothingIfExists, map[string]any{"entity": entity, "name": name})
}

func (b *builder) doNothingIfNotExists(source *PlanNode, entity, name string) *PlanNode {
	return b.node(source, KindDoNothingIfNotExists, map[string]any{"entity": entity, "name": name})
}
