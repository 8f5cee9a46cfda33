// Package auth: graph privilege storage and the privilege algebra (system DB).
//
// A privilege row is one atomic (flavor, action, role, scope, qualifier,
// resource) tuple stored as a _Privilege node. Compound specifications
// (several labels, several properties, several databases) are expanded by
// Simplify before they reach storage or a plan node.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/orneryd/vanirdb/pkg/storage"
)

const (
	privilegeLabel  = "_Privilege"
	privilegePrefix = "priv:"
)

// ErrPrivilegeNotFound is returned when revoking a privilege row that was
// never granted or denied.
var ErrPrivilegeNotFound = errors.New("privilege not found")

// PrivilegeFlavor distinguishes granted from denied privilege rows.
type PrivilegeFlavor string

const (
	FlavorGranted PrivilegeFlavor = "GRANTED"
	FlavorDenied  PrivilegeFlavor = "DENIED"
)

// RevokeType selects which flavors a REVOKE statement removes.
// RevokeBoth is not atomic: the plan builder decomposes it into a
// grant-revoke step followed by a deny-revoke step per target tuple.
type RevokeType string

const (
	RevokeGrant RevokeType = "GRANT"
	RevokeDeny  RevokeType = "DENY"
	RevokeBoth  RevokeType = "BOTH"
)

// Qualifier narrows a privilege to particular graph elements.
// Kind "all" matches everything; other kinds carry one value each once
// simplified.
type Qualifier struct {
	Kind   string   // "all", "label", "type", "property"
	Values []string // empty for "all"
}

// AllQualifier matches every graph element.
func AllQualifier() Qualifier {
	return Qualifier{Kind: "all"}
}

// LabelQualifier narrows to the given node labels.
func LabelQualifier(labels ...string) Qualifier {
	return Qualifier{Kind: "label", Values: labels}
}

// Simplify expands a compound qualifier into atomic qualifiers, one per
// value. An "all" qualifier is already atomic.
func (q Qualifier) Simplify() []Qualifier {
	if q.Kind == "all" || len(q.Values) == 0 {
		return []Qualifier{{Kind: q.Kind}}
	}
	out := make([]Qualifier, 0, len(q.Values))
	for _, v := range q.Values {
		out = append(out, Qualifier{Kind: q.Kind, Values: []string{v}})
	}
	return out
}

// Key renders an atomic qualifier for storage keys and plan arguments.
func (q Qualifier) Key() string {
	if q.Kind == "all" || len(q.Values) == 0 {
		return q.Kind
	}
	return q.Kind + "(" + strings.Join(q.Values, ",") + ")"
}

// Resource is the property/entity target of a graph-scoped privilege.
type Resource struct {
	Kind   string   // "graph", "all_properties", "property"
	Values []string // property names for "property"
}

// AllPropertiesResource targets every property.
func AllPropertiesResource() Resource {
	return Resource{Kind: "all_properties"}
}

// PropertyResource targets the named properties.
func PropertyResource(properties ...string) Resource {
	return Resource{Kind: "property", Values: properties}
}

// Simplify expands a compound resource into atomic resources.
func (r Resource) Simplify() []Resource {
	if r.Kind != "property" || len(r.Values) == 0 {
		return []Resource{{Kind: r.Kind}}
	}
	out := make([]Resource, 0, len(r.Values))
	for _, v := range r.Values {
		out = append(out, Resource{Kind: r.Kind, Values: []string{v}})
	}
	return out
}

// Key renders an atomic resource for storage keys and plan arguments.
func (r Resource) Key() string {
	if r.Kind != "property" || len(r.Values) == 0 {
		return r.Kind
	}
	return r.Kind + "(" + strings.Join(r.Values, ",") + ")"
}

// Scope names the database(s) or graph(s) a privilege applies to.
// The zero Scope (no names, not All) is the DBMS-wide scope.
type Scope struct {
	All   bool
	Names []string
}

// AllScope covers every database or graph.
func AllScope() Scope {
	return Scope{All: true}
}

// NamedScope covers the given databases or graphs.
func NamedScope(names ...string) Scope {
	return Scope{Names: names}
}

// Simplify expands a multi-name scope into atomic single-name scopes.
func (s Scope) Simplify() []Scope {
	if s.All || len(s.Names) == 0 {
		return []Scope{s}
	}
	out := make([]Scope, 0, len(s.Names))
	for _, n := range s.Names {
		out = append(out, Scope{Names: []string{n}})
	}
	return out
}

// Key renders an atomic scope for storage keys and plan arguments.
func (s Scope) Key() string {
	if s.All {
		return "*"
	}
	if len(s.Names) == 0 {
		return "dbms"
	}
	return strings.Join(s.Names, ",")
}

// Privilege is one atomic privilege row.
type Privilege struct {
	Flavor    PrivilegeFlavor
	Action    Action
	Role      string
	Scope     Scope
	Qualifier Qualifier
	Resource  Resource
}

func (p Privilege) nodeID() storage.NodeID {
	parts := []string{
		string(p.Flavor), string(p.Action), p.Role,
		p.Scope.Key(), p.Qualifier.Key(), p.Resource.Key(),
	}
	return storage.NodeID(privilegePrefix + strings.Join(parts, "|"))
}

// PrivilegeStore persists privilege rows in the system database.
type PrivilegeStore struct {
	storage storage.Engine
	mu      sync.RWMutex
	rows    map[storage.NodeID]Privilege
}

// NewPrivilegeStore creates a store over the given system storage.
func NewPrivilegeStore(systemStorage storage.Engine) *PrivilegeStore {
	return &PrivilegeStore{storage: systemStorage, rows: make(map[storage.NodeID]Privilege)}
}

// Load reads all _Privilege nodes from storage into memory.
func (p *PrivilegeStore) Load(ctx context.Context) error {
	rows := make(map[storage.NodeID]Privilege)
	err := storage.StreamNodes(ctx, p.storage, func(n *storage.Node) error {
		if !n.HasLabel(privilegeLabel) {
			return nil
		}
		priv, ok := privilegeFromProperties(n.Properties)
		if ok {
			rows[n.ID] = priv
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.rows = rows
	p.mu.Unlock()
	return nil
}

// Grant stores a granted privilege row. Re-granting is a no-op.
func (p *PrivilegeStore) Grant(priv Privilege) error {
	priv.Flavor = FlavorGranted
	return p.put(priv)
}

// Deny stores a denied privilege row. Re-denying is a no-op.
func (p *PrivilegeStore) Deny(priv Privilege) error {
	priv.Flavor = FlavorDenied
	return p.put(priv)
}

// Revoke removes the row with the given flavor. Revoking an absent row is
// a no-op: REVOKE is idempotent.
func (p *PrivilegeStore) Revoke(priv Privilege, flavor PrivilegeFlavor) error {
	priv.Flavor = flavor
	id := priv.nodeID()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rows[id]; !ok {
		return nil
	}
	if err := p.storage.DeleteNode(id); err != nil && err != storage.ErrNotFound {
		return err
	}
	delete(p.rows, id)
	return nil
}

// RolePrivileges returns all rows for the given role, both flavors.
func (p *PrivilegeStore) RolePrivileges(role string) []Privilege {
	role = normalizeRoleName(role)
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Privilege
	for _, priv := range p.rows {
		if priv.Role == role {
			out = append(out, priv)
		}
	}
	return out
}

// AllPrivileges returns every stored row.
func (p *PrivilegeStore) AllPrivileges() []Privilege {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Privilege, 0, len(p.rows))
	for _, priv := range p.rows {
		out = append(out, priv)
	}
	return out
}

// CopyPrivileges copies all rows of one flavor from one role to another.
// Used by CREATE ROLE ... AS COPY OF.
func (p *PrivilegeStore) CopyPrivileges(from, to string, flavor PrivilegeFlavor) error {
	from = normalizeRoleName(from)
	to = normalizeRoleName(to)
	for _, priv := range p.RolePrivileges(from) {
		if priv.Flavor != flavor {
			continue
		}
		priv.Role = to
		if err := p.put(priv); err != nil {
			return err
		}
	}
	return nil
}

// AllowsAction reports whether any of the principal's roles holds the
// action DBMS-wide. "admin" holds everything. A denied row for the action
// beats a granted one.
func (p *PrivilegeStore) AllowsAction(principalRoles []string, action Action) bool {
	granted := false
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, role := range principalRoles {
		role = normalizeRoleName(role)
		if role == "admin" {
			granted = true
			continue
		}
		for _, priv := range p.rows {
			if priv.Role != role || priv.Action != action {
				continue
			}
			if priv.Flavor == FlavorDenied {
				return false
			}
			granted = true
		}
	}
	return granted
}

func (p *PrivilegeStore) put(priv Privilege) error {
	priv.Role = normalizeRoleName(priv.Role)
	id := priv.nodeID()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rows[id]; ok {
		return nil
	}
	node := &storage.Node{
		ID:     id,
		Labels: []string{privilegeLabel, roleSystems},
		Properties: map[string]any{
			"flavor":    string(priv.Flavor),
			"action":    string(priv.Action),
			"role":      priv.Role,
			"scope":     priv.Scope.Key(),
			"scope_all": priv.Scope.All,
			"qualifier": priv.Qualifier.Key(),
			"resource":  priv.Resource.Key(),
		},
	}
	if _, err := p.storage.CreateNode(node); err != nil && err != storage.ErrAlreadyExists {
		return err
	}
	p.rows[id] = priv
	return nil
}

func privilegeFromProperties(props map[string]any) (Privilege, bool) {
	flavor, _ := props["flavor"].(string)
	action, _ := props["action"].(string)
	role, _ := props["role"].(string)
	if flavor == "" || action == "" || role == "" {
		return Privilege{}, false
	}
	priv := Privilege{
		Flavor: PrivilegeFlavor(flavor),
		Action: Action(action),
		Role:   role,
	}
	if all, _ := props["scope_all"].(bool); all {
		priv.Scope = AllScope()
	} else if s, _ := props["scope"].(string); s != "" && s != "dbms" {
		priv.Scope = NamedScope(strings.Split(s, ",")...)
	}
	priv.Qualifier = qualifierFromKey(props["qualifier"])
	priv.Resource = resourceFromKey(props["resource"])
	return priv, true
}

func qualifierFromKey(v any) Qualifier {
	s, _ := v.(string)
	kind, values := splitKey(s)
	if kind == "" {
		return AllQualifier()
	}
	return Qualifier{Kind: kind, Values: values}
}

func resourceFromKey(v any) Resource {
	s, _ := v.(string)
	kind, values := splitKey(s)
	if kind == "" {
		return Resource{Kind: "graph"}
	}
	return Resource{Kind: kind, Values: values}
}

// splitKey parses "kind(v1,v2)" back into kind and values.
func splitKey(s string) (string, []string) {
	if s == "" {
		return "", nil
	}
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return s, nil
	}
	inner := s[open+1 : len(s)-1]
	if inner == "" {
		return s[:open], nil
	}
	return s[:open], strings.Split(inner, ",")
}
