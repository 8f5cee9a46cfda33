package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, "vanir", cfg.DefaultDatabase)
	assert.Equal(t, "system", cfg.SystemDatabase)
	assert.Zero(t, cfg.MaxDatabases)
	assert.False(t, cfg.AllowDropDefault)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("VANIRDB_DEFAULT_DATABASE", "main")
	t.Setenv("VANIRDB_MAX_DATABASES", "10")
	t.Setenv("VANIRDB_ALLOW_DROP_DEFAULT", "yes")
	t.Setenv("VANIRDB_WAIT_POLL_INTERVAL", "250ms")

	cfg := FromEnv()
	assert.Equal(t, "main", cfg.DefaultDatabase)
	assert.Equal(t, 10, cfg.MaxDatabases)
	assert.True(t, cfg.AllowDropDefault)
	assert.Equal(t, 250*time.Millisecond, cfg.WaitPollInterval)

	mdb := cfg.MultiDB()
	assert.Equal(t, "main", mdb.DefaultDatabase)
	assert.Equal(t, 10, mdb.MaxDatabases)
}
