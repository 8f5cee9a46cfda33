package adminplan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orneryd/vanirdb/pkg/audit"
	"github.com/orneryd/vanirdb/pkg/auth"
	"github.com/orneryd/vanirdb/pkg/cypher"
	"github.com/orneryd/vanirdb/pkg/multidb"
)

// Result is the outcome of executing an administration plan.
type Result struct {
	Columns []string
	Rows    [][]any

	// Notifications carries non-fatal conditions: idempotent no-ops and
	// wait timeouts.
	Notifications []string

	// NoOp is set when an idempotency guard short-circuited the chain.
	NoOp bool
}

func (r *Result) notify(format string, args ...any) {
	r.Notifications = append(r.Notifications, fmt.Sprintf(format, args...))
}

// Runtime executes administration plans against the system stores. It is
// the interpreter the builder assumes: nodes run source-first, and a
// failing node short-circuits every node wrapping it.
type Runtime struct {
	Users      *auth.UserStore
	Roles      *auth.RoleStore
	Privileges *auth.PrivilegeStore
	Procedures *auth.ProcedureAllowlist
	Databases  *multidb.DatabaseManager
	Audit      *audit.Logger
}

// Run parses, plans, and executes one administration query. A query that
// produces no plan is rejected with UnsupportedCommandError.
func (r *Runtime) Run(ctx context.Context, query, principal string, params map[string]any) (*Result, error) {
	stmt, err := cypher.Parse(query)
	if err != nil {
		return nil, err
	}
	plan, err := BuildPlan(stmt, &Context{
		Principal:  principal,
		Params:     params,
		Procedures: r.Procedures,
	})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, &UnsupportedCommandError{Query: query}
	}
	return r.Execute(ctx, plan, principal)
}

// Execute runs a plan chain in execution order. Guards fail the whole
// statement; idempotency guards instead short-circuit to a successful
// no-op. The audit record is written once per logged command, failure
// included.
func (r *Runtime) Execute(ctx context.Context, plan *Plan, principal string) (*Result, error) {
	chain := plan.Root.Chain()
	result := &Result{}

	// The command label travels on the log node; on failure the chain never
	// reaches it, so the failure record is written here.
	command := commandLabel(chain)

	var lastMutation NodeKind
	for _, node := range chain {
		stop, err := r.execNode(ctx, node, principal, result, lastMutation)
		if err != nil {
			if command != "" && r.Audit != nil {
				r.Audit.Record(principal, command, false, err.Error())
			}
			return nil, err
		}
		if stop {
			result.NoOp = true
			if command != "" && r.Audit != nil {
				r.Audit.Record(principal, command, true, "no-op")
			}
			return result, nil
		}
		switch {
		case node.IsGuard(), node.Kind == KindLogSystemCommand, node.Kind == KindWaitForCompletion:
		default:
			lastMutation = node.Kind
		}
	}
	return result, nil
}

// execNode runs one node. A true stop return means an idempotency guard
// matched and the rest of the chain is skipped.
func (r *Runtime) execNode(ctx context.Context, node *PlanNode, principal string, result *Result, lastMutation NodeKind) (bool, error) {
	switch node.Kind {
	case KindAssertAllowed:
		roles := r.Roles.RolesOf(principal)
		for _, action := range node.Actions {
			if !r.Privileges.AllowsAction(roles, action) {
				return false, &UnauthorizedError{Principal: principal, Actions: node.Actions}
			}
		}
		return false, nil

	case KindAssertNotCurrentUser:
		if stringArg(node, "user") == principal {
			return false, &ForbiddenError{Reason: stringArg(node, "reason")}
		}
		return false, nil

	case KindAssertValidCredentials:
		if boolArg(node, "bypassExpiry") {
			return false, nil
		}
		user, err := r.Users.Get(principal)
		if err != nil {
			return false, fmt.Errorf("failed to resolve principal %q: %w", principal, err)
		}
		if user.RequirePasswordChange {
			return false, &ForbiddenError{Reason: fmt.Sprintf("Permission denied. The credentials you provided were valid, but must be changed before you can use this instance. (user: %s)", principal)}
		}
		return false, nil

	case KindEnsureExists:
		if !r.entityExists(stringArg(node, "entity"), stringArg(node, "name")) {
			return false, notFoundError(stringArg(node, "entity"), stringArg(node, "name"))
		}
		return false, nil

	case KindDoNothingIfExists:
		if r.entityExists(stringArg(node, "entity"), stringArg(node, "name")) {
			result.notify("%s '%s' already exists.", stringArg(node, "entity"), stringArg(node, "name"))
			return true, nil
		}
		return false, nil

	case KindDoNothingIfNotExists:
		if !r.entityExists(stringArg(node, "entity"), stringArg(node, "name")) {
			result.notify("%s '%s' does not exist.", stringArg(node, "entity"), stringArg(node, "name"))
			return true, nil
		}
		return false, nil

	case KindAssertNotBlocked:
		if r.Databases.IsBlocked(stringArg(node, "database")) {
			return false, fmt.Errorf("database %q: %w", stringArg(node, "database"), multidb.ErrDatabaseBlocked)
		}
		return false, nil

	case KindEnsureNonSystemDatabase:
		if r.Databases.IsSystem(stringArg(node, "database")) {
			if stringArg(node, "operation") == "stop" {
				return false, multidb.ErrCannotStopSystemDB
			}
			return false, multidb.ErrCannotDropSystemDB
		}
		return false, nil

	case KindEnsureDatabaseLimit:
		if r.Databases.Exists(stringArg(node, "database")) {
			// Replacing or colliding with an existing database never grows
			// the count.
			return false, nil
		}
		if !r.Databases.WithinLimit() {
			return false, multidb.ErrMaxDatabasesReached
		}
		return false, nil

	case KindWaitForCompletion:
		return false, r.waitForCompletion(ctx, node, result, lastMutation)

	case KindLogSystemCommand:
		if r.Audit != nil {
			return false, r.Audit.Record(principal, stringArg(node, "command"), true, "")
		}
		return false, nil

	default:
		return false, r.execMutation(node, principal, result)
	}
}

func (r *Runtime) execMutation(node *PlanNode, principal string, result *Result) error {
	switch node.Kind {
	case KindCreateUser:
		return r.Users.Create(stringArg(node, "user"), stringArg(node, "password"),
			boolArg(node, "requirePasswordChange"), boolArg(node, "suspended"))

	case KindDropUser:
		err := r.Users.Drop(stringArg(node, "user"))
		if boolArg(node, "ignoreAbsent") && errors.Is(err, auth.ErrUserNotFound) {
			return nil
		}
		return err

	case KindAlterUser:
		var opts auth.AlterOptions
		if v, ok := node.Args["password"].(string); ok {
			opts.Password = &v
		}
		if v, ok := node.Args["requirePasswordChange"].(bool); ok {
			opts.RequirePasswordChange = &v
		}
		if v, ok := node.Args["suspended"].(bool); ok {
			opts.Suspended = &v
		}
		return r.Users.Alter(stringArg(node, "user"), opts)

	case KindCreateRole:
		return r.Roles.Create(stringArg(node, "role"))

	case KindDropRole:
		err := r.Roles.Drop(stringArg(node, "role"))
		if boolArg(node, "ignoreAbsent") && errors.Is(err, auth.ErrRoleNotFound) {
			return nil
		}
		return err

	case KindRequireRole:
		if !r.Roles.Exists(stringArg(node, "role")) {
			return fmt.Errorf("cannot copy privileges: %w: %s", auth.ErrRoleNotFound, stringArg(node, "role"))
		}
		return nil

	case KindCopyRolePrivileges:
		return r.Privileges.CopyPrivileges(stringArg(node, "from"), stringArg(node, "to"),
			auth.PrivilegeFlavor(stringArg(node, "flavor")))

	case KindGrantRoleToUser:
		return r.Roles.GrantToUser(stringArg(node, "role"), stringArg(node, "user"))

	case KindRevokeRoleFromUser:
		return r.Roles.RevokeFromUser(stringArg(node, "role"), stringArg(node, "user"))

	case KindGrantPrivilege:
		return r.Privileges.Grant(privilegeFromArgs(node))

	case KindDenyPrivilege:
		return r.Privileges.Deny(privilegeFromArgs(node))

	case KindRevokePrivilege:
		flavor, _ := node.Args["flavor"].(auth.PrivilegeFlavor)
		return r.Privileges.Revoke(privilegeFromArgs(node), flavor)

	case KindCreateDatabase:
		err := r.Databases.CreateDatabase(stringArg(node, "database"))
		if errors.Is(err, multidb.ErrDatabaseExists) && boolArg(node, "ignoreAbsent") {
			return nil
		}
		return err

	case KindDropDatabase:
		err := r.Databases.DropDatabase(stringArg(node, "database"))
		if boolArg(node, "ignoreAbsent") && errors.Is(err, multidb.ErrDatabaseNotFound) {
			return nil
		}
		return err

	case KindStartDatabase:
		return r.Databases.StartDatabase(stringArg(node, "database"))

	case KindStopDatabase:
		return r.Databases.StopDatabase(stringArg(node, "database"))

	case KindShowUsers:
		return r.showUsers(result)

	case KindShowRoles:
		result.Columns = []string{"role"}
		for _, role := range r.Roles.AllRoles() {
			result.Rows = append(result.Rows, []any{role})
		}
		return nil

	case KindShowPrivileges:
		return r.showPrivileges(stringArg(node, "role"), result)

	case KindShowDatabases:
		return r.showDatabases(result)

	case KindSystemProcedureCall:
		return r.callProcedure(node, principal, result)

	default:
		return fmt.Errorf("unexpected plan node kind %q", node.Kind)
	}
}

// waitForCompletion polls for the state the preceding mutation moves the
// database toward. Timeout is reported as a notification, never an error.
func (r *Runtime) waitForCompletion(ctx context.Context, node *PlanNode, result *Result, lastMutation NodeKind) error {
	name := stringArg(node, "database")
	timeout, _ := node.Args["timeout"].(time.Duration)

	var target string
	switch lastMutation {
	case KindDropDatabase:
		target = multidb.StatusDropped
	case KindStopDatabase:
		target = multidb.StatusOffline
	default:
		target = multidb.StatusOnline
	}

	err := r.Databases.WaitForStatus(ctx, name, target, timeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, multidb.ErrWaitTimeout):
		result.notify("Database '%s' did not reach the requested state within %s; the operation continues in the background.", name, timeout)
		return nil
	default:
		return err
	}
}

func (r *Runtime) showUsers(result *Result) error {
	result.Columns = []string{"user", "roles", "passwordChangeRequired", "suspended"}
	for _, name := range r.Users.ListUsers() {
		user, err := r.Users.Get(name)
		if err != nil {
			return err
		}
		result.Rows = append(result.Rows, []any{
			user.Name, r.Roles.RolesOf(user.Name), user.RequirePasswordChange, user.Suspended,
		})
	}
	return nil
}

func (r *Runtime) showPrivileges(role string, result *Result) error {
	result.Columns = []string{"access", "action", "resource", "scope", "segment", "role"}
	privs := r.Privileges.AllPrivileges()
	if role != "" {
		privs = r.Privileges.RolePrivileges(role)
	}
	for _, p := range privs {
		result.Rows = append(result.Rows, []any{
			string(p.Flavor), string(p.Action), p.Resource.Key(), p.Scope.Key(), p.Qualifier.Key(), p.Role,
		})
	}
	return nil
}

func (r *Runtime) showDatabases(result *Result) error {
	result.Columns = []string{"name", "type", "currentStatus", "default"}
	for _, info := range r.Databases.ListDatabases() {
		result.Rows = append(result.Rows, []any{info.Name, info.Type, info.Status, info.IsDefault})
	}
	return nil
}

// callProcedure dispatches the small built-in system procedure set. The
// allowlist shape check already ran at plan time.
func (r *Runtime) callProcedure(node *PlanNode, principal string, result *Result) error {
	args, _ := node.Args["arguments"].([]string)
	switch stringArg(node, "procedure") {
	case "dbms.security.changePassword":
		if len(args) != 1 {
			return fmt.Errorf("dbms.security.changePassword expects one argument")
		}
		password := strings.Trim(args[0], "'\"")
		requireChange := false
		return r.Users.Alter(principal, auth.AlterOptions{Password: &password, RequirePasswordChange: &requireChange})

	case "dbms.showCurrentUser":
		user, err := r.Users.Get(principal)
		if err != nil {
			return err
		}
		result.Columns = []string{"username", "roles", "flags"}
		var flags []string
		if user.RequirePasswordChange {
			flags = append(flags, "password_change_required")
		}
		if user.Suspended {
			flags = append(flags, "is_suspended")
		}
		result.Rows = append(result.Rows, []any{user.Name, r.Roles.RolesOf(user.Name), flags})
		return nil

	case "dbms.cluster.overview":
		result.Columns = []string{"id", "addresses", "role"}
		result.Rows = append(result.Rows, []any{"standalone", []string{}, "LEADER"})
		return nil

	case "db.ping":
		result.Columns = []string{"success"}
		result.Rows = append(result.Rows, []any{true})
		return nil

	default:
		return fmt.Errorf("procedure %q is not implemented", stringArg(node, "procedure"))
	}
}

func (r *Runtime) entityExists(entity, name string) bool {
	switch entity {
	case "User":
		return r.Users.Exists(name)
	case "Role":
		return r.Roles.Exists(name)
	case "Database":
		return r.Databases.Exists(name)
	}
	return false
}

func notFoundError(entity, name string) error {
	switch entity {
	case "User":
		return fmt.Errorf("%w: %s", auth.ErrUserNotFound, name)
	case "Role":
		return fmt.Errorf("%w: %s", auth.ErrRoleNotFound, name)
	case "Database":
		return fmt.Errorf("%w: %s", multidb.ErrDatabaseNotFound, name)
	}
	return fmt.Errorf("unknown entity %q", entity)
}

func privilegeFromArgs(node *PlanNode) auth.Privilege {
	action, _ := node.Args["action"].(auth.Action)
	scope, _ := node.Args["scope"].(auth.Scope)
	qualifier, _ := node.Args["qualifier"].(auth.Qualifier)
	resource, _ := node.Args["resource"].(auth.Resource)
	flavor := auth.FlavorGranted
	if node.Kind == KindDenyPrivilege {
		flavor = auth.FlavorDenied
	}
	return auth.Privilege{
		Flavor:    flavor,
		Action:    action,
		Role:      stringArg(node, "role"),
		Scope:     scope,
		Qualifier: qualifier,
		Resource:  resource,
	}
}

func commandLabel(chain []*PlanNode) string {
	for _, node := range chain {
		if node.Kind == KindLogSystemCommand {
			return stringArg(node, "command")
		}
	}
	return ""
}

func stringArg(node *PlanNode, key string) string {
	s, _ := node.Args[key].(string)
	return s
}

func boolArg(node *PlanNode, key string) bool {
	b, _ := node.Args[key].(bool)
	return b
}
