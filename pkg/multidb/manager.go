package multidb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/orneryd/vanirdb/pkg/storage"
)

// Database status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	// StatusBlocked marks a database administratively frozen: no lifecycle
	// command may touch it until an operator unblocks it.
	StatusBlocked = "blocked"
)

// Database types.
const (
	TypeStandard = "standard"
	TypeSystem   = "system"
)

const metadataNodeID = storage.NodeID("multidb:metadata")

// DatabaseInfo holds metadata about a database.
type DatabaseInfo struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	IsDefault bool      `json:"is_default"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config holds DatabaseManager configuration.
type Config struct {
	// DefaultDatabase is the database used when none is specified.
	DefaultDatabase string

	// SystemDatabase stores metadata and principals (default: "system").
	SystemDatabase string

	// MaxDatabases limits total databases (0 = unlimited).
	MaxDatabases int

	// AllowDropDefault allows dropping the default database.
	AllowDropDefault bool

	// WaitPollInterval is how often WaitForStatus re-checks (default 100ms).
	WaitPollInterval time.Duration
}

// DefaultConfig returns default configuration. The default database name
// is "vanir" (VanirDB's equivalent of Neo4j's "neo4j").
func DefaultConfig() *Config {
	return &Config{
		DefaultDatabase:  "vanir",
		SystemDatabase:   "system",
		MaxDatabases:     0,
		WaitPollInterval: 100 * time.Millisecond,
	}
}

// DatabaseManager manages multiple logical databases within a single
// storage engine.
//
// Thread-safe: all operations are protected by mutex. WaitForStatus never
// holds the mutex while sleeping.
type DatabaseManager struct {
	mu sync.RWMutex

	inner     storage.Engine
	databases map[string]*DatabaseInfo
	config    *Config
	engines   map[string]*storage.NamespacedEngine
}

// NewDatabaseManager creates a new database manager over the shared storage
// engine. The system and default databases are created if missing, and
// previously persisted metadata is reloaded.
func NewDatabaseManager(inner storage.Engine, config *Config) (*DatabaseManager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.WaitPollInterval <= 0 {
		config.WaitPollInterval = 100 * time.Millisecond
	}

	m := &DatabaseManager{
		inner:     inner,
		databases: make(map[string]*DatabaseInfo),
		config:    config,
		engines:   make(map[string]*storage.NamespacedEngine),
	}

	if err := m.loadMetadata(); err != nil {
		return nil, fmt.Errorf("failed to load database metadata: %w", err)
	}
	if err := m.ensureSystemDatabases(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatabaseManager) ensureSystemDatabases() error {
	now := time.Now()
	if _, exists := m.databases[m.config.SystemDatabase]; !exists {
		m.databases[m.config.SystemDatabase] = &DatabaseInfo{
			Name:      m.config.SystemDatabase,
			CreatedAt: now,
			Status:    StatusOnline,
			Type:      TypeSystem,
			UpdatedAt: now,
		}
	}
	if _, exists := m.databases[m.config.DefaultDatabase]; !exists {
		m.databases[m.config.DefaultDatabase] = &DatabaseInfo{
			Name:      m.config.DefaultDatabase,
			CreatedAt: now,
			Status:    StatusOnline,
			Type:      TypeStandard,
			IsDefault: true,
			UpdatedAt: now,
		}
	}
	return m.persistMetadata()
}

// CreateDatabase creates a new database.
//
// Returns ErrDatabaseExists if it already exists, ErrMaxDatabasesReached if
// the configured limit would be exceeded.
func (m *DatabaseManager) CreateDatabase(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return ErrInvalidDatabaseName
	}
	if _, exists := m.databases[name]; exists {
		return ErrDatabaseExists
	}
	if m.config.MaxDatabases > 0 && len(m.databases) >= m.config.MaxDatabases {
		return ErrMaxDatabasesReached
	}

	now := time.Now()
	m.databases[name] = &DatabaseInfo{
		Name:      name,
		CreatedAt: now,
		Status:    StatusOnline,
		Type:      TypeStandard,
		UpdatedAt: now,
	}
	return m.persistMetadata()
}

// DropDatabase removes a database and all its data.
func (m *DatabaseManager) DropDatabase(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, exists := m.databases[name]
	if !exists {
		return ErrDatabaseNotFound
	}
	if info.Type == TypeSystem {
		return ErrCannotDropSystemDB
	}
	if info.IsDefault && !m.config.AllowDropDefault {
		return ErrCannotDropSystemDB
	}
	if info.Status == StatusBlocked {
		return ErrDatabaseBlocked
	}

	if _, err := m.inner.DeleteByPrefix(name + ":"); err != nil {
		return fmt.Errorf("failed to delete database data: %w", err)
	}
	delete(m.databases, name)
	delete(m.engines, name)
	return m.persistMetadata()
}

// StartDatabase brings an offline database online.
func (m *DatabaseManager) StartDatabase(name string) error {
	return m.setStatus(name, StatusOnline)
}

// StopDatabase takes a database offline. The system database cannot be
// stopped.
func (m *DatabaseManager) StopDatabase(name string) error {
	m.mu.RLock()
	info, exists := m.databases[name]
	isSystem := exists && info.Type == TypeSystem
	m.mu.RUnlock()
	if !exists {
		return ErrDatabaseNotFound
	}
	if isSystem {
		return ErrCannotStopSystemDB
	}
	return m.setStatus(name, StatusOffline)
}

// SetBlocked freezes or unfreezes a database. While blocked, lifecycle
// commands against it fail with ErrDatabaseBlocked.
func (m *DatabaseManager) SetBlocked(name string, blocked bool) error {
	if blocked {
		return m.setStatus(name, StatusBlocked)
	}
	return m.setStatus(name, StatusOnline)
}

func (m *DatabaseManager) setStatus(name, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, exists := m.databases[name]
	if !exists {
		return ErrDatabaseNotFound
	}
	info.Status = status
	info.UpdatedAt = time.Now()
	if status != StatusOnline {
		delete(m.engines, name)
	}
	return m.persistMetadata()
}

// GetStorage returns a namespaced storage engine for the database.
func (m *DatabaseManager) GetStorage(name string) (storage.Engine, error) {
	m.mu.RLock()
	if engine, exists := m.engines[name]; exists {
		m.mu.RUnlock()
		return engine, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if engine, exists := m.engines[name]; exists {
		return engine, nil
	}
	info, exists := m.databases[name]
	if !exists {
		return nil, ErrDatabaseNotFound
	}
	if info.Status != StatusOnline {
		return nil, ErrDatabaseOffline
	}
	engine := storage.NewNamespacedEngine(m.inner, name)
	m.engines[name] = engine
	return engine, nil
}

// SystemStorage returns the namespaced engine for the system database.
func (m *DatabaseManager) SystemStorage() (storage.Engine, error) {
	return m.GetStorage(m.config.SystemDatabase)
}

// ListDatabases returns all database info, copied.
func (m *DatabaseManager) ListDatabases() []*DatabaseInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*DatabaseInfo, 0, len(m.databases))
	for _, info := range m.databases {
		infoCopy := *info
		result = append(result, &infoCopy)
	}
	return result
}

// GetDatabase returns info for a specific database.
func (m *DatabaseManager) GetDatabase(name string) (*DatabaseInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, exists := m.databases[name]
	if !exists {
		return nil, ErrDatabaseNotFound
	}
	infoCopy := *info
	return &infoCopy, nil
}

// Exists checks if a database exists.
func (m *DatabaseManager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.databases[name] != nil
}

// IsBlocked reports whether the database is administratively frozen.
// Unknown databases are not blocked; existence is checked separately.
func (m *DatabaseManager) IsBlocked(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, exists := m.databases[name]
	return exists && info.Status == StatusBlocked
}

// IsSystem reports whether the database is the system database.
func (m *DatabaseManager) IsSystem(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, exists := m.databases[name]
	return exists && info.Type == TypeSystem
}

// WithinLimit reports whether one more database can be created under the
// configured MaxDatabases limit.
func (m *DatabaseManager) WithinLimit() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.MaxDatabases <= 0 || len(m.databases) < m.config.MaxDatabases
}

// MaxDatabases returns the configured database-count limit (0 = unlimited).
func (m *DatabaseManager) MaxDatabases() int {
	return m.config.MaxDatabases
}

// DefaultDatabaseName returns the default database name.
func (m *DatabaseManager) DefaultDatabaseName() string {
	return m.config.DefaultDatabase
}

// SystemDatabaseName returns the system database name.
func (m *DatabaseManager) SystemDatabaseName() string {
	return m.config.SystemDatabase
}

// WaitForStatus polls until the database reaches the requested status, the
// database is dropped (wanted status "<dropped>"), the timeout elapses, or
// ctx is cancelled. The manager lock is only held during each poll, never
// while sleeping, so lifecycle commands proceed during a wait.
//
// Returns ErrWaitTimeout when the deadline passes first; callers treat that
// as a warning, not a failure.
func (m *DatabaseManager) WaitForStatus(ctx context.Context, name, status string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if m.statusReached(name, status) {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.WaitPollInterval):
		}
	}
}

// StatusDropped is the WaitForStatus target for DROP DATABASE ... WAIT.
const StatusDropped = "<dropped>"

func (m *DatabaseManager) statusReached(name, status string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, exists := m.databases[name]
	if status == StatusDropped {
		return !exists
	}
	return exists && info.Status == status
}

// Close releases resources. The underlying engine is left open; callers
// that own it close it themselves.
func (m *DatabaseManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines = make(map[string]*storage.NamespacedEngine)
	return nil
}

// persistMetadata writes the database map as a single metadata node in the
// raw (unprefixed) engine so it survives restarts.
func (m *DatabaseManager) persistMetadata() error {
	data, err := json.Marshal(m.databases)
	if err != nil {
		return fmt.Errorf("failed to encode database metadata: %w", err)
	}
	node := &storage.Node{
		ID:         metadataNodeID,
		Labels:     []string{"_DatabaseMetadata", "_System"},
		Properties: map[string]any{"databases": string(data)},
	}
	existing, err := m.inner.GetNode(metadataNodeID)
	if err == storage.ErrNotFound {
		_, err = m.inner.CreateNode(node)
		return err
	} else if err != nil {
		return err
	}
	node.CreatedAt = existing.CreatedAt
	return m.inner.UpdateNode(node)
}

func (m *DatabaseManager) loadMetadata() error {
	node, err := m.inner.GetNode(metadataNodeID)
	if err == storage.ErrNotFound {
		return nil
	} else if err != nil {
		return err
	}
	raw, ok := node.Properties["databases"].(string)
	if !ok {
		return nil
	}
	databases := make(map[string]*DatabaseInfo)
	if err := json.Unmarshal([]byte(raw), &databases); err != nil {
		return fmt.Errorf("failed to decode database metadata: %w", err)
	}
	m.databases = databases
	return nil
}
