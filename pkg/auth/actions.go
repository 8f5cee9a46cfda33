// Package auth: principals, roles, and privileges for the system database.
//
// Users, roles, role assignments, and privilege rows are stored as labeled
// nodes in the system database. The administration plan builder only
// references Action values when it constructs authorization guard nodes;
// evaluation happens in the plan runtime against these stores.
package auth

// Action is an authorization capability checked by a plan guard node.
// It identifies what the acting principal must be allowed to do; it
// carries no behavior of its own.
type Action string

// Administration actions.
const (
	ActionCreateUser    Action = "CreateUser"
	ActionDropUser      Action = "DropUser"
	ActionAlterUser     Action = "AlterUser"
	ActionSetPasswords  Action = "SetPasswords"
	ActionSetUserStatus Action = "SetUserStatus"
	ActionShowUser      Action = "ShowUser"

	ActionCreateRole Action = "CreateRole"
	ActionDropRole   Action = "DropRole"
	ActionAssignRole Action = "AssignRole"
	ActionRemoveRole Action = "RemoveRole"
	ActionShowRole   Action = "ShowRole"

	ActionAssignPrivilege Action = "AssignPrivilege"
	ActionRemovePrivilege Action = "RemovePrivilege"
	ActionShowPrivilege   Action = "ShowPrivilege"

	ActionCreateDatabase Action = "CreateDatabase"
	ActionDropDatabase   Action = "DropDatabase"
	ActionStartDatabase  Action = "StartDatabase"
	ActionStopDatabase   Action = "StopDatabase"
	ActionShowDatabase   Action = "ShowDatabase"
)

// Database and graph privilege actions, grantable at database/graph scope.
const (
	ActionAccess   Action = "Access"
	ActionTraverse Action = "Traverse"
	ActionRead     Action = "Read"
	ActionMatch    Action = "Match"
	ActionWrite    Action = "Write"
)

// String implements fmt.Stringer for plan rendering.
func (a Action) String() string {
	return string(a)
}
