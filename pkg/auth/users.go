// Package auth: user storage (system DB).
//
// Users are stored as _User nodes keyed "user:<name>". Passwords are salted
// SHA-256; password material never leaves this file.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/orneryd/vanirdb/pkg/storage"
)

const (
	userLabel   = "_User"
	userSystems = "_System"
	userPrefix  = "user:"
)

// User store errors.
var (
	ErrInvalidUserName = errors.New("invalid user name")
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
)

// User holds one principal's stored state.
type User struct {
	Name                  string
	PasswordHash          string
	Salt                  string
	RequirePasswordChange bool
	Suspended             bool
}

// UserStore persists users in the system database.
type UserStore struct {
	storage storage.Engine
	mu      sync.RWMutex
	users   map[string]*User
}

// NewUserStore creates a store that reads/writes _User nodes.
func NewUserStore(systemStorage storage.Engine) *UserStore {
	return &UserStore{storage: systemStorage, users: make(map[string]*User)}
}

// Load reads all _User nodes from storage into memory.
func (u *UserStore) Load(ctx context.Context) error {
	m := make(map[string]*User)
	err := storage.StreamNodes(ctx, u.storage, func(n *storage.Node) error {
		if !n.HasLabel(userLabel) {
			return nil
		}
		name := strings.TrimPrefix(string(n.ID), userPrefix)
		if name == string(n.ID) || name == "" {
			return nil
		}
		m[name] = userFromProperties(name, n.Properties)
		return nil
	})
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.users = m
	u.mu.Unlock()
	return nil
}

// Create adds a user with the given initial password.
func (u *UserStore) Create(name, password string, requirePasswordChange, suspended bool) error {
	name = normalizeUserName(name)
	if name == "" {
		return ErrInvalidUserName
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.users[name]; exists {
		return ErrUserExists
	}
	salt, hash := hashPassword(password)
	user := &User{
		Name:                  name,
		PasswordHash:          hash,
		Salt:                  salt,
		RequirePasswordChange: requirePasswordChange,
		Suspended:             suspended,
	}
	if err := u.persistLocked(user, true); err != nil {
		return err
	}
	u.users[name] = user
	return nil
}

// Drop removes a user.
func (u *UserStore) Drop(name string) error {
	name = normalizeUserName(name)
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.users[name]; !exists {
		return ErrUserNotFound
	}
	if err := u.storage.DeleteNode(storage.NodeID(userPrefix + name)); err != nil {
		return err
	}
	delete(u.users, name)
	return nil
}

// AlterOptions carries the fields an ALTER USER statement may change.
// Nil pointer means "leave unchanged".
type AlterOptions struct {
	Password              *string
	RequirePasswordChange *bool
	Suspended             *bool
}

// Alter applies the given changes to an existing user.
func (u *UserStore) Alter(name string, opts AlterOptions) error {
	name = normalizeUserName(name)
	u.mu.Lock()
	defer u.mu.Unlock()
	user, exists := u.users[name]
	if !exists {
		return ErrUserNotFound
	}
	updated := *user
	if opts.Password != nil {
		updated.Salt, updated.PasswordHash = hashPassword(*opts.Password)
	}
	if opts.RequirePasswordChange != nil {
		updated.RequirePasswordChange = *opts.RequirePasswordChange
	}
	if opts.Suspended != nil {
		updated.Suspended = *opts.Suspended
	}
	if err := u.persistLocked(&updated, false); err != nil {
		return err
	}
	u.users[name] = &updated
	return nil
}

// Exists returns true if the user exists.
func (u *UserStore) Exists(name string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.users[normalizeUserName(name)]
	return ok
}

// Get returns a copy of the stored user.
func (u *UserStore) Get(name string) (*User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[normalizeUserName(name)]
	if !ok {
		return nil, ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

// ListUsers returns all user names, unordered.
func (u *UserStore) ListUsers() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]string, 0, len(u.users))
	for name := range u.users {
		out = append(out, name)
	}
	return out
}

// CheckPassword verifies a candidate password in constant time.
func (u *UserStore) CheckPassword(name, password string) bool {
	u.mu.RLock()
	user, ok := u.users[normalizeUserName(name)]
	u.mu.RUnlock()
	if !ok {
		return false
	}
	candidate := hashWithSalt(user.Salt, password)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(user.PasswordHash)) == 1
}

func (u *UserStore) persistLocked(user *User, creating bool) error {
	node := &storage.Node{
		ID:     storage.NodeID(userPrefix + user.Name),
		Labels: []string{userLabel, userSystems},
		Properties: map[string]any{
			"name":                    user.Name,
			"password_hash":           user.PasswordHash,
			"salt":                    user.Salt,
			"require_password_change": user.RequirePasswordChange,
			"suspended":               user.Suspended,
		},
	}
	if creating {
		_, err := u.storage.CreateNode(node)
		return err
	}
	existing, err := u.storage.GetNode(node.ID)
	if err != nil {
		return err
	}
	node.CreatedAt = existing.CreatedAt
	return u.storage.UpdateNode(node)
}

func normalizeUserName(name string) string {
	return strings.TrimSpace(name)
}

func hashPassword(password string) (salt, hash string) {
	raw := make([]byte, 16)
	_, _ = rand.Read(raw)
	salt = hex.EncodeToString(raw)
	return salt, hashWithSalt(salt, password)
}

func hashWithSalt(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

func userFromProperties(name string, props map[string]any) *User {
	user := &User{Name: name}
	if v, ok := props["password_hash"].(string); ok {
		user.PasswordHash = v
	}
	if v, ok := props["salt"].(string); ok {
		user.Salt = v
	}
	if v, ok := props["require_password_change"].(bool); ok {
		user.RequirePasswordChange = v
	}
	if v, ok := props["suspended"].(bool); ok {
		user.Suspended = v
	}
	return user
}
