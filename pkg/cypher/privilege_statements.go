package cypher

import "github.com/orneryd/vanirdb/pkg/auth"

// ScopeLevel is the privilege scope a GRANT/DENY/REVOKE applies at.
type ScopeLevel int

const (
	// DBMSLevel privileges cover the whole installation (no scope names).
	DBMSLevel ScopeLevel = iota

	// DatabaseLevel privileges cover one or more named databases.
	DatabaseLevel

	// GraphLevel privileges cover one or more named graphs and carry a
	// property resource.
	GraphLevel
)

func (l ScopeLevel) String() string {
	switch l {
	case DBMSLevel:
		return "DBMS"
	case DatabaseLevel:
		return "DATABASE"
	case GraphLevel:
		return "GRAPH"
	}
	return "UNKNOWN"
}

// GrantPrivilege is GRANT action ON scope ... TO roles.
type GrantPrivilege struct {
	Level     ScopeLevel
	Action    auth.Action
	Scope     auth.Scope
	Qualifier auth.Qualifier
	Resource  auth.Resource // graph level only
	Roles     []string
}

// DenyPrivilege is DENY action ON scope ... TO roles.
type DenyPrivilege struct {
	Level     ScopeLevel
	Action    auth.Action
	Scope     auth.Scope
	Qualifier auth.Qualifier
	Resource  auth.Resource
	Roles     []string
}

// RevokePrivilege is REVOKE [GRANT|DENY] action ON scope ... FROM roles.
// RevokeType auth.RevokeBoth is decomposed by the plan builder into a
// grant-revocation and a deny-revocation per target tuple.
type RevokePrivilege struct {
	Level      ScopeLevel
	Action     auth.Action
	Scope      auth.Scope
	Qualifier  auth.Qualifier
	Resource   auth.Resource
	Roles      []string
	RevokeType auth.RevokeType
}

// CreateDatabase is CREATE DATABASE name [IF NOT EXISTS | OR REPLACE] [WAIT].
type CreateDatabase struct {
	Database   NameOrParam
	IfExistsDo IfExistsDo
	Wait       Wait
}

// DropDatabase is DROP DATABASE name [IF EXISTS] [WAIT].
type DropDatabase struct {
	Database NameOrParam
	IfExists bool
	Wait     Wait
}

// StartDatabase is START DATABASE name [WAIT].
type StartDatabase struct {
	Database NameOrParam
	Wait     Wait
}

// StopDatabase is STOP DATABASE name [WAIT].
type StopDatabase struct {
	Database NameOrParam
	Wait     Wait
}

func (GrantPrivilege) adminStatement()  {}
func (DenyPrivilege) adminStatement()   {}
func (RevokePrivilege) adminStatement() {}
func (CreateDatabase) adminStatement()  {}
func (DropDatabase) adminStatement()    {}
func (StartDatabase) adminStatement()   {}
func (StopDatabase) adminStatement()    {}
