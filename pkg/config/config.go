// Package config resolves VanirDB administration tool settings from the
// environment. Flags override env vars; env vars override defaults.
package config

import (
	"time"

	"github.com/orneryd/vanirdb/pkg/envutil"
	"github.com/orneryd/vanirdb/pkg/multidb"
)

// Config holds the settings the administration tool runs with.
type Config struct {
	// DataDir is the Badger directory. Empty means in-memory storage.
	DataDir string

	// AuditLog is the path of the JSON-lines audit log. Empty disables
	// audit logging.
	AuditLog string

	DefaultDatabase  string
	SystemDatabase   string
	MaxDatabases     int
	AllowDropDefault bool
	WaitPollInterval time.Duration
}

// FromEnv builds a Config from VANIRDB_* environment variables.
func FromEnv() *Config {
	return &Config{
		DataDir:          envutil.Get("VANIRDB_DATA_DIR", ""),
		AuditLog:         envutil.Get("VANIRDB_AUDIT_LOG", ""),
		DefaultDatabase:  envutil.Get("VANIRDB_DEFAULT_DATABASE", "vanir"),
		SystemDatabase:   envutil.Get("VANIRDB_SYSTEM_DATABASE", "system"),
		MaxDatabases:     envutil.GetInt("VANIRDB_MAX_DATABASES", 0),
		AllowDropDefault: envutil.GetBool("VANIRDB_ALLOW_DROP_DEFAULT", false),
		WaitPollInterval: envutil.GetDuration("VANIRDB_WAIT_POLL_INTERVAL", 100*time.Millisecond),
	}
}

// MultiDB converts the settings into a database manager configuration.
func (c *Config) MultiDB() *multidb.Config {
	return &multidb.Config{
		DefaultDatabase:  c.DefaultDatabase,
		SystemDatabase:   c.SystemDatabase,
		MaxDatabases:     c.MaxDatabases,
		AllowDropDefault: c.AllowDropDefault,
		WaitPollInterval: c.WaitPollInterval,
	}
}
