// Package cypher models the administration command surface of VanirDB.
//
// A Statement is an immutable parsed administration command (user, role,
// privilege, or database lifecycle management) or, as a fallback, a raw
// query reduced to its clause shapes. Statements are produced by Parse and
// consumed exactly once by the adminplan builder.
package cypher

import "time"

// Statement is the closed union of administration command variants.
// The marker method keeps the set closed to this package.
type Statement interface {
	adminStatement()
}

// IfExistsDo governs pre-mutation existence handling on CREATE.
type IfExistsDo int

const (
	// IfExistsThrowError is the unmodified form: the mutation runs and its
	// failure on conflict is an execution-time concern.
	IfExistsThrowError IfExistsDo = iota

	// IfExistsReplace is OR REPLACE: drop any existing entity first.
	IfExistsReplace

	// IfExistsDoNothing is IF NOT EXISTS: short-circuit to a no-op when the
	// entity already exists.
	IfExistsDoNothing
)

// Wait is the WAIT/NOWAIT modifier on database lifecycle commands.
type Wait struct {
	Enabled bool
	Timeout time.Duration
}

// NoWait requests no completion waiting.
var NoWait = Wait{}

// DefaultWaitTimeout applies when WAIT is given without a duration.
const DefaultWaitTimeout = 300 * time.Second

// NameOrParam is a literal string value (a name or a password) that may
// instead be bound through a query parameter ($param).
type NameOrParam struct {
	Name  string
	Param string
}

// Lit wraps a literal name.
func Lit(name string) NameOrParam {
	return NameOrParam{Name: name}
}

// Param wraps a parameter reference.
func Param(name string) NameOrParam {
	return NameOrParam{Param: name}
}

// IsParam reports whether the value is parameter-bound.
func (n NameOrParam) IsParam() bool {
	return n.Param != ""
}

// CreateUser is CREATE USER name SET PASSWORD ... .
type CreateUser struct {
	User                  NameOrParam
	Password              NameOrParam
	RequirePasswordChange bool
	Suspended             bool
	IfExistsDo            IfExistsDo
}

// DropUser is DROP USER name [IF EXISTS].
type DropUser struct {
	User     NameOrParam
	IfExists bool
}

// AlterUser is ALTER USER name SET ... . Nil fields are left unchanged.
// At least one field must be set; the parser never produces the empty
// shape.
type AlterUser struct {
	User                  NameOrParam
	Password              *NameOrParam
	RequirePasswordChange *bool
	Suspended             *bool
}

// CreateRole is CREATE ROLE name [AS COPY OF other].
type CreateRole struct {
	Role       NameOrParam
	CopyOf     *NameOrParam
	IfExistsDo IfExistsDo
}

// DropRole is DROP ROLE name [IF EXISTS].
type DropRole struct {
	Role     NameOrParam
	IfExists bool
}

// GrantRolesToUsers is GRANT ROLE r1, r2 TO u1, u2.
type GrantRolesToUsers struct {
	Roles []NameOrParam
	Users []NameOrParam
}

// RevokeRolesFromUsers is REVOKE ROLE r1, r2 FROM u1, u2.
type RevokeRolesFromUsers struct {
	Roles []NameOrParam
	Users []NameOrParam
}

// ShowUsers is SHOW USERS.
type ShowUsers struct{}

// ShowRoles is SHOW ROLES.
type ShowRoles struct{}

// ShowPrivileges is SHOW PRIVILEGES [FOR role].
type ShowPrivileges struct {
	Role string // empty = all roles
}

// ShowDatabases is SHOW DATABASES.
type ShowDatabases struct{}

func (CreateUser) adminStatement()           {}
func (DropUser) adminStatement()             {}
func (AlterUser) adminStatement()            {}
func (CreateRole) adminStatement()           {}
func (DropRole) adminStatement()             {}
func (GrantRolesToUsers) adminStatement()    {}
func (RevokeRolesFromUsers) adminStatement() {}
func (ShowUsers) adminStatement()            {}
func (ShowRoles) adminStatement()            {}
func (ShowPrivileges) adminStatement()       {}
func (ShowDatabases) adminStatement()        {}
