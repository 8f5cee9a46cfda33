package storage

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryEngine is an in-memory Engine for tests and ephemeral deployments.
//
// Thread-safe. Nodes are deep-copied on the way in and out so callers can
// never alias engine-internal state.
type MemoryEngine struct {
	mu     sync.RWMutex
	nodes  map[NodeID]*Node
	closed bool
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{nodes: make(map[NodeID]*Node)}
}

func (m *MemoryEngine) CreateNode(node *Node) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrEngineClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return nil, ErrAlreadyExists
	}
	stored := copyNode(node)
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.nodes[node.ID] = stored
	return copyNode(stored), nil
}

func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrEngineClosed
	}
	node, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

func (m *MemoryEngine) UpdateNode(node *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrEngineClosed
	}
	existing, ok := m.nodes[node.ID]
	if !ok {
		return ErrNotFound
	}
	stored := copyNode(node)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	m.nodes[node.ID] = stored
	return nil
}

func (m *MemoryEngine) DeleteNode(id NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrEngineClosed
	}
	if _, ok := m.nodes[id]; !ok {
		return ErrNotFound
	}
	delete(m.nodes, id)
	return nil
}

// AllNodes visits nodes in sorted-ID order so scans are deterministic.
func (m *MemoryEngine) AllNodes(fn func(*Node) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrEngineClosed
	}
	ids := make([]NodeID, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	snapshot := make([]*Node, 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		snapshot = append(snapshot, copyNode(m.nodes[id]))
	}
	m.mu.RUnlock()

	for _, node := range snapshot {
		if err := fn(node); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryEngine) DeleteByPrefix(prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrEngineClosed
	}
	deleted := 0
	for id := range m.nodes {
		if strings.HasPrefix(string(id), prefix) {
			delete(m.nodes, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.nodes = make(map[NodeID]*Node)
	return nil
}

func copyNode(n *Node) *Node {
	out := &Node{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if n.Labels != nil {
		out.Labels = append([]string(nil), n.Labels...)
	}
	if n.Properties != nil {
		out.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			out.Properties[k] = v
		}
	}
	return out
}
