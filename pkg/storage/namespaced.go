// Package storage - namespaced engine wrapper for multi-database isolation.
//
// NamespacedEngine wraps any Engine with automatic key prefixing so multiple
// logical databases share one physical backend without seeing each other's
// data. Node IDs are stored as "tenant_a:123"; callers see "123".
// DROP DATABASE reduces to deleting every key with the namespace prefix.
package storage

import "strings"

// NamespacedEngine is a database-scoped view of a shared engine.
//
// Thread-safe: delegates to the underlying engine's guarantees.
type NamespacedEngine struct {
	inner     Engine
	namespace string
	separator string
}

// NewNamespacedEngine creates a namespaced view of the storage engine.
func NewNamespacedEngine(inner Engine, namespace string) *NamespacedEngine {
	return &NamespacedEngine{inner: inner, namespace: namespace, separator: ":"}
}

// Namespace returns the database namespace this view is scoped to.
func (n *NamespacedEngine) Namespace() string {
	return n.namespace
}

func (n *NamespacedEngine) prefix() string {
	return n.namespace + n.separator
}

func (n *NamespacedEngine) prefixID(id NodeID) NodeID {
	return NodeID(n.prefix() + string(id))
}

func (n *NamespacedEngine) unprefixID(id NodeID) NodeID {
	return NodeID(strings.TrimPrefix(string(id), n.prefix()))
}

func (n *NamespacedEngine) CreateNode(node *Node) (*Node, error) {
	scoped := copyNode(node)
	scoped.ID = n.prefixID(node.ID)
	created, err := n.inner.CreateNode(scoped)
	if err != nil {
		return nil, err
	}
	created.ID = n.unprefixID(created.ID)
	return created, nil
}

func (n *NamespacedEngine) GetNode(id NodeID) (*Node, error) {
	node, err := n.inner.GetNode(n.prefixID(id))
	if err != nil {
		return nil, err
	}
	node.ID = n.unprefixID(node.ID)
	return node, nil
}

func (n *NamespacedEngine) UpdateNode(node *Node) error {
	scoped := copyNode(node)
	scoped.ID = n.prefixID(node.ID)
	return n.inner.UpdateNode(scoped)
}

func (n *NamespacedEngine) DeleteNode(id NodeID) error {
	return n.inner.DeleteNode(n.prefixID(id))
}

// AllNodes only visits nodes within this namespace.
func (n *NamespacedEngine) AllNodes(fn func(*Node) error) error {
	return n.inner.AllNodes(func(node *Node) error {
		if !strings.HasPrefix(string(node.ID), n.prefix()) {
			return nil
		}
		node.ID = n.unprefixID(node.ID)
		return fn(node)
	})
}

func (n *NamespacedEngine) DeleteByPrefix(prefix string) (int, error) {
	return n.inner.DeleteByPrefix(n.prefix() + prefix)
}

// Close is a no-op: the shared inner engine outlives namespace views.
func (n *NamespacedEngine) Close() error {
	return nil
}
