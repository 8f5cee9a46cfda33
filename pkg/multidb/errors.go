// Package multidb provides multi-database support for VanirDB.
//
// Multiple logical databases (tenants) share a single physical storage
// backend while maintaining complete data isolation. The administration
// plan runtime consults this package for the lifecycle preconditions its
// guard nodes evaluate (blocked state, system-database protection,
// database-count limits).
package multidb

import (
	"errors"
)

// Multi-database error types.
var (
	ErrDatabaseNotFound    = errors.New("database not found")
	ErrDatabaseExists      = errors.New("database already exists")
	ErrInvalidDatabaseName = errors.New("invalid database name")
	ErrMaxDatabasesReached = errors.New("maximum number of databases reached")
	ErrCannotDropSystemDB  = errors.New("cannot drop system database")
	ErrCannotStopSystemDB  = errors.New("cannot stop system database")
	ErrDatabaseOffline     = errors.New("database is offline")
	ErrDatabaseBlocked     = errors.New("database is blocked pending administrative action")
	ErrWaitTimeout         = errors.New("timed out waiting for database state")
)
