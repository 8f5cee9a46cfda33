// Package adminplan builds guarded execution plans for administration
// commands.
//
// BuildPlan is a pure function of (Statement, Context): it dispatches on
// the statement variant and assembles a chain of plan nodes in which every
// mutating step is preceded by the authorization and precondition checks
// it requires. The chain is executed source-first by the plan runtime; the
// innermost node of every chain is an authorization guard.
package adminplan

import (
	"github.com/orneryd/vanirdb/pkg/auth"
)

// NodeKind identifies what a plan node does when executed.
type NodeKind string

// Guard and precondition node kinds. Guards are always executed before any
// mutation node that wraps them.
const (
	// KindAssertAllowed verifies the acting principal holds every action in
	// the node's Actions set. It is the root of every administration chain.
	KindAssertAllowed NodeKind = "AssertAllowedAction"

	// KindAssertNotCurrentUser rejects operations a principal attempts
	// against their own account ("user", "reason" args).
	KindAssertNotCurrentUser NodeKind = "AssertNotCurrentUser"

	// KindAssertValidCredentials gates the restricted procedure-call chain:
	// the principal's credentials must not be expired unless the procedure
	// bypasses expiry ("bypassExpiry" arg).
	KindAssertValidCredentials NodeKind = "AssertValidCredentials"

	// KindEnsureExists fails when the named entity is absent
	// ("entity", "name" args).
	KindEnsureExists NodeKind = "EnsureNodeExists"

	// KindDoNothingIfExists short-circuits the chain to a no-op when the
	// named entity already exists.
	KindDoNothingIfExists NodeKind = "DoNothingIfExists"

	// KindDoNothingIfNotExists short-circuits the chain to a no-op when the
	// named entity is absent.
	KindDoNothingIfNotExists NodeKind = "DoNothingIfNotExists"

	// KindAssertNotBlocked fails when the target database is
	// administratively frozen.
	KindAssertNotBlocked NodeKind = "AssertNotBlocked"

	// KindEnsureNonSystemDatabase fails when the target is the system
	// database.
	KindEnsureNonSystemDatabase NodeKind = "EnsureValidNonSystemDatabase"

	// KindEnsureDatabaseLimit fails when creating one more database would
	// exceed the configured limit.
	KindEnsureDatabaseLimit NodeKind = "EnsureValidNumberOfDatabases"
)

// Mutation node kinds.
const (
	KindCreateUser NodeKind = "CreateUser"
	KindDropUser   NodeKind = "DropUser"
	KindAlterUser  NodeKind = "AlterUser"

	KindCreateRole         NodeKind = "CreateRole"
	KindDropRole           NodeKind = "DropRole"
	KindRequireRole        NodeKind = "RequireRole"
	KindCopyRolePrivileges NodeKind = "CopyRolePrivileges"
	KindGrantRoleToUser    NodeKind = "GrantRoleToUser"
	KindRevokeRoleFromUser NodeKind = "RevokeRoleFromUser"

	KindGrantPrivilege  NodeKind = "GrantPrivilege"
	KindDenyPrivilege   NodeKind = "DenyPrivilege"
	KindRevokePrivilege NodeKind = "RevokePrivilege"

	KindCreateDatabase    NodeKind = "CreateDatabase"
	KindDropDatabase      NodeKind = "DropDatabase"
	KindStartDatabase     NodeKind = "StartDatabase"
	KindStopDatabase      NodeKind = "StopDatabase"
	KindWaitForCompletion NodeKind = "WaitForCompletion"

	KindShowUsers      NodeKind = "ShowUsers"
	KindShowRoles      NodeKind = "ShowRoles"
	KindShowPrivileges NodeKind = "ShowPrivileges"
	KindShowDatabases  NodeKind = "ShowDatabases"

	KindSystemProcedureCall NodeKind = "SystemProcedureCall"
	KindLogSystemCommand    NodeKind = "LogSystemCommand"
)

var guardKinds = map[NodeKind]struct{}{
	KindAssertAllowed:           {},
	KindAssertNotCurrentUser:    {},
	KindAssertValidCredentials:  {},
	KindEnsureExists:            {},
	KindDoNothingIfExists:       {},
	KindDoNothingIfNotExists:    {},
	KindAssertNotBlocked:        {},
	KindEnsureNonSystemDatabase: {},
	KindEnsureDatabaseLimit:     {},
}

// PlanNode is one step of a guarded execution plan. Nodes form a
// singly-linked chain through Source; the runtime executes a node's source
// before the node itself, and a failing source short-circuits the chain.
type PlanNode struct {
	// ID orders nodes within one plan; sequential per BuildPlan call.
	ID int

	Kind   NodeKind
	Source *PlanNode

	// Actions is set on KindAssertAllowed nodes only.
	Actions []auth.Action

	// Args carries kind-specific payload, keyed per kind.
	Args map[string]any
}

// IsGuard reports whether the node is a guard/precondition rather than a
// mutation.
func (n *PlanNode) IsGuard() bool {
	_, ok := guardKinds[n.Kind]
	return ok
}

// Root returns the innermost node of the chain.
func (n *PlanNode) Root() *PlanNode {
	for n.Source != nil {
		n = n.Source
	}
	return n
}

// Chain returns the nodes in execution order, innermost first.
func (n *PlanNode) Chain() []*PlanNode {
	var rev []*PlanNode
	for cur := n; cur != nil; cur = cur.Source {
		rev = append(rev, cur)
	}
	out := make([]*PlanNode, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out
}

// PlannerName tags administration plans for downstream stages.
const PlannerName = "administration"

// Plan is a built administration plan: the outermost chain node plus the
// planner identifier.
type Plan struct {
	Root    *PlanNode
	Planner string
}

// builder allocates plan nodes with per-call sequential IDs.
type builder struct {
	ctx    *Context
	nextID int

	// wait is set by lifecycle builders when the statement carries WAIT;
	// BuildPlan applies it as the outermost node.
	wait *waitSpec
}

// guard creates the chain-root authorization guard for the given actions.
func (b *builder) guard(actions ...auth.Action) *PlanNode {
	b.nextID++
	return &PlanNode{ID: b.nextID, Kind: KindAssertAllowed, Actions: actions}
}

// node appends one node sourced from its predecessor.
func (b *builder) node(source *PlanNode, kind NodeKind, args map[string]any) *PlanNode {
	b.nextID++
	return &PlanNode{ID: b.nextID, Kind: kind, Source: source, Args: args}
}
