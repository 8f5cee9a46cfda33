// Package auth: role storage and role-to-user assignment (system DB).
//
// User-defined roles are stored as _Role nodes; built-in roles (admin,
// public) are not stored but always exist. Assignments are _RoleAssignment
// nodes keyed "role_assign:<role>:<user>".
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/orneryd/vanirdb/pkg/storage"
)

const (
	roleLabel        = "_Role"
	roleSystems      = "_System"
	rolePrefix       = "role:"
	assignmentLabel  = "_RoleAssignment"
	assignmentPrefix = "role_assign:"
)

// Role store errors.
var (
	ErrInvalidRoleName         = errors.New("invalid role name")
	ErrRoleExists              = errors.New("role already exists")
	ErrRoleNotFound            = errors.New("role not found")
	ErrCannotDeleteBuiltinRole = errors.New("cannot delete built-in role")
	ErrRoleAlreadyAssigned     = errors.New("role already assigned to user")
	ErrRoleNotAssigned         = errors.New("role not assigned to user")
)

// Built-in role names, always present.
var builtinRoleNames = []string{"admin", "public"}

// IsBuiltinRole returns true if the role name is a built-in.
func IsBuiltinRole(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, b := range builtinRoleNames {
		if b == n {
			return true
		}
	}
	return false
}

// RoleStore persists user-defined roles and role assignments.
type RoleStore struct {
	storage storage.Engine
	mu      sync.RWMutex
	roles   map[string]struct{}
	// role -> set of user names
	assignments map[string]map[string]struct{}
}

// NewRoleStore creates a store over the given system storage.
func NewRoleStore(systemStorage storage.Engine) *RoleStore {
	return &RoleStore{
		storage:     systemStorage,
		roles:       make(map[string]struct{}),
		assignments: make(map[string]map[string]struct{}),
	}
}

// Load reads all _Role and _RoleAssignment nodes from storage into memory.
func (r *RoleStore) Load(ctx context.Context) error {
	roles := make(map[string]struct{})
	assignments := make(map[string]map[string]struct{})
	err := storage.StreamNodes(ctx, r.storage, func(n *storage.Node) error {
		switch {
		case n.HasLabel(roleLabel):
			name := strings.TrimPrefix(string(n.ID), rolePrefix)
			if name != string(n.ID) && name != "" {
				roles[name] = struct{}{}
			}
		case n.HasLabel(assignmentLabel):
			role, user := splitAssignmentID(string(n.ID))
			if role == "" || user == "" {
				return nil
			}
			if assignments[role] == nil {
				assignments[role] = make(map[string]struct{})
			}
			assignments[role][user] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.roles = roles
	r.assignments = assignments
	r.mu.Unlock()
	return nil
}

// Create adds a user-defined role. Fails if the name is built-in or taken.
func (r *RoleStore) Create(name string) error {
	name = normalizeRoleName(name)
	if name == "" {
		return ErrInvalidRoleName
	}
	if IsBuiltinRole(name) {
		return ErrRoleExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.roles[name]; exists {
		return ErrRoleExists
	}
	node := &storage.Node{
		ID:         storage.NodeID(rolePrefix + name),
		Labels:     []string{roleLabel, roleSystems},
		Properties: map[string]any{"name": name},
	}
	if _, err := r.storage.CreateNode(node); err != nil {
		return err
	}
	r.roles[name] = struct{}{}
	return nil
}

// Drop removes a user-defined role and its assignments.
func (r *RoleStore) Drop(name string) error {
	name = normalizeRoleName(name)
	if IsBuiltinRole(name) {
		return ErrCannotDeleteBuiltinRole
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.roles[name]; !exists {
		return ErrRoleNotFound
	}
	if err := r.storage.DeleteNode(storage.NodeID(rolePrefix + name)); err != nil {
		return err
	}
	if _, err := r.storage.DeleteByPrefix(assignmentPrefix + name + ":"); err != nil {
		return err
	}
	delete(r.roles, name)
	delete(r.assignments, name)
	return nil
}

// Exists returns true if the role exists (built-in or user-defined).
func (r *RoleStore) Exists(name string) bool {
	name = normalizeRoleName(name)
	if IsBuiltinRole(name) {
		return true
	}
	r.mu.RLock()
	_, ok := r.roles[name]
	r.mu.RUnlock()
	return ok
}

// AllRoles returns built-in role names plus all user-defined role names.
func (r *RoleStore) AllRoles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(builtinRoleNames)+len(r.roles))
	out = append(out, builtinRoleNames...)
	for name := range r.roles {
		out = append(out, name)
	}
	return out
}

// GrantToUser assigns a role to a user.
func (r *RoleStore) GrantToUser(role, user string) error {
	role = normalizeRoleName(role)
	if !r.Exists(role) {
		return ErrRoleNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[role][user]; ok {
		return ErrRoleAlreadyAssigned
	}
	node := &storage.Node{
		ID:         storage.NodeID(assignmentPrefix + role + ":" + user),
		Labels:     []string{assignmentLabel, roleSystems},
		Properties: map[string]any{"role": role, "user": user},
	}
	if _, err := r.storage.CreateNode(node); err != nil {
		return err
	}
	if r.assignments[role] == nil {
		r.assignments[role] = make(map[string]struct{})
	}
	r.assignments[role][user] = struct{}{}
	return nil
}

// RevokeFromUser removes a role assignment from a user.
func (r *RoleStore) RevokeFromUser(role, user string) error {
	role = normalizeRoleName(role)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[role][user]; !ok {
		return ErrRoleNotAssigned
	}
	if err := r.storage.DeleteNode(storage.NodeID(assignmentPrefix + role + ":" + user)); err != nil {
		return err
	}
	delete(r.assignments[role], user)
	return nil
}

// RolesOf returns the roles assigned to a user. Every user implicitly
// holds "public".
func (r *RoleStore) RolesOf(user string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []string{"public"}
	for role, users := range r.assignments {
		if _, ok := users[user]; ok {
			out = append(out, role)
		}
	}
	return out
}

func normalizeRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func splitAssignmentID(id string) (role, user string) {
	if !strings.HasPrefix(id, assignmentPrefix) {
		return "", ""
	}
	rest := id[len(assignmentPrefix):]
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return "", ""
	}
	return rest[:idx], rest[idx+1:]
}
