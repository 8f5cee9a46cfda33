package multidb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vanirdb/pkg/storage"
)

func TestDatabaseManager_DefaultConfig(t *testing.T) {
	inner := storage.NewMemoryEngine()
	defer inner.Close()

	manager, err := NewDatabaseManager(inner, nil)
	require.NoError(t, err)
	defer manager.Close()

	assert.Equal(t, "vanir", manager.DefaultDatabaseName())
	assert.True(t, manager.Exists("system"))
	assert.True(t, manager.Exists("vanir"))

	info, err := manager.GetDatabase("vanir")
	require.NoError(t, err)
	assert.True(t, info.IsDefault)
	assert.Equal(t, TypeStandard, info.Type)
	assert.Equal(t, StatusOnline, info.Status)
}

func TestDatabaseManager_CreateDropLimits(t *testing.T) {
	inner := storage.NewMemoryEngine()
	defer inner.Close()

	config := DefaultConfig()
	config.MaxDatabases = 3 // system + default + one more
	manager, err := NewDatabaseManager(inner, config)
	require.NoError(t, err)
	defer manager.Close()

	require.NoError(t, manager.CreateDatabase("sales"))
	assert.Equal(t, ErrDatabaseExists, manager.CreateDatabase("sales"))
	assert.False(t, manager.WithinLimit())
	assert.Equal(t, ErrMaxDatabasesReached, manager.CreateDatabase("hr"))

	require.NoError(t, manager.DropDatabase("sales"))
	assert.Equal(t, ErrDatabaseNotFound, manager.DropDatabase("sales"))
	assert.True(t, manager.WithinLimit())
}

func TestDatabaseManager_SystemProtection(t *testing.T) {
	inner := storage.NewMemoryEngine()
	defer inner.Close()

	manager, err := NewDatabaseManager(inner, nil)
	require.NoError(t, err)
	defer manager.Close()

	assert.Equal(t, ErrCannotDropSystemDB, manager.DropDatabase("system"))
	assert.Equal(t, ErrCannotStopSystemDB, manager.StopDatabase("system"))
	assert.True(t, manager.IsSystem("system"))
	assert.False(t, manager.IsSystem("vanir"))
}

func TestDatabaseManager_StartStopBlocked(t *testing.T) {
	inner := storage.NewMemoryEngine()
	defer inner.Close()

	manager, err := NewDatabaseManager(inner, nil)
	require.NoError(t, err)
	defer manager.Close()

	require.NoError(t, manager.CreateDatabase("sales"))
	require.NoError(t, manager.StopDatabase("sales"))

	info, err := manager.GetDatabase("sales")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, info.Status)

	_, err = manager.GetStorage("sales")
	assert.Equal(t, ErrDatabaseOffline, err)

	require.NoError(t, manager.StartDatabase("sales"))
	_, err = manager.GetStorage("sales")
	assert.NoError(t, err)

	require.NoError(t, manager.SetBlocked("sales", true))
	assert.True(t, manager.IsBlocked("sales"))
	assert.Equal(t, ErrDatabaseBlocked, manager.DropDatabase("sales"))

	require.NoError(t, manager.SetBlocked("sales", false))
	assert.False(t, manager.IsBlocked("sales"))
	require.NoError(t, manager.DropDatabase("sales"))
}

func TestDatabaseManager_MetadataSurvivesReload(t *testing.T) {
	inner := storage.NewMemoryEngine()
	defer inner.Close()

	manager, err := NewDatabaseManager(inner, nil)
	require.NoError(t, err)
	require.NoError(t, manager.CreateDatabase("sales"))
	require.NoError(t, manager.StopDatabase("sales"))
	require.NoError(t, manager.Close())

	reloaded, err := NewDatabaseManager(inner, nil)
	require.NoError(t, err)
	defer reloaded.Close()

	info, err := reloaded.GetDatabase("sales")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, info.Status)
}

func TestDatabaseManager_WaitForStatus(t *testing.T) {
	inner := storage.NewMemoryEngine()
	defer inner.Close()

	config := DefaultConfig()
	config.WaitPollInterval = 5 * time.Millisecond
	manager, err := NewDatabaseManager(inner, config)
	require.NoError(t, err)
	defer manager.Close()

	require.NoError(t, manager.CreateDatabase("sales"))

	// Already in the requested state: returns immediately.
	err = manager.WaitForStatus(context.Background(), "sales", StatusOnline, 50*time.Millisecond)
	assert.NoError(t, err)

	// Never reaches offline: times out with the warning-grade error.
	err = manager.WaitForStatus(context.Background(), "sales", StatusOffline, 25*time.Millisecond)
	assert.Equal(t, ErrWaitTimeout, err)

	// Dropped-state wait observes a concurrent drop.
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = manager.DropDatabase("sales")
	}()
	err = manager.WaitForStatus(context.Background(), "sales", StatusDropped, 500*time.Millisecond)
	assert.NoError(t, err)

	// Context cancellation interrupts the poll.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = manager.WaitForStatus(ctx, "vanir", StatusOffline, time.Second)
	assert.Equal(t, context.Canceled, err)
}
