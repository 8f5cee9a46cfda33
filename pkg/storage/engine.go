// Package storage provides the system-database storage engine for VanirDB.
//
// The administration subsystem persists users, roles, privileges, and
// database metadata as labeled nodes in a dedicated "system" namespace.
// Engine is the minimal node-store contract those stores are written
// against; MemoryEngine backs tests and the in-memory CLI mode, and
// BadgerEngine backs on-disk deployments.
package storage

import (
	"context"
	"errors"
	"time"
)

// NodeID uniquely identifies a node within an engine (or a namespace view).
type NodeID string

// Node is a labeled property record in the system database.
type Node struct {
	ID         NodeID         `json:"id" msgpack:"id"`
	Labels     []string       `json:"labels" msgpack:"labels"`
	Properties map[string]any `json:"properties" msgpack:"properties"`
	CreatedAt  time.Time      `json:"created_at" msgpack:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" msgpack:"updated_at"`
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Storage errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrIterationStopped = errors.New("iteration stopped")
	ErrEngineClosed     = errors.New("storage engine closed")
)

// Engine is the node-store contract shared by all backends.
//
// Thread-safe: all implementations guard internal state with their own
// synchronization. IDs are opaque; namespaced views prefix them.
type Engine interface {
	// CreateNode stores a new node. Returns ErrAlreadyExists if the ID is taken.
	CreateNode(node *Node) (*Node, error)

	// GetNode returns the node with the given ID, or ErrNotFound.
	GetNode(id NodeID) (*Node, error)

	// UpdateNode replaces an existing node. Returns ErrNotFound if absent.
	UpdateNode(node *Node) error

	// DeleteNode removes a node. Returns ErrNotFound if absent.
	DeleteNode(id NodeID) error

	// AllNodes streams every node to fn. Returning ErrIterationStopped from
	// fn ends the scan early without error.
	AllNodes(fn func(*Node) error) error

	// DeleteByPrefix removes all nodes whose ID starts with prefix.
	// Returns the number of nodes deleted.
	DeleteByPrefix(prefix string) (int, error)

	// Close releases backend resources.
	Close() error
}

// StreamNodes iterates an engine's nodes with context cancellation.
// fn may return ErrIterationStopped to end the scan early.
func StreamNodes(ctx context.Context, engine Engine, fn func(*Node) error) error {
	err := engine.AllNodes(func(n *Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(n)
	})
	if err == ErrIterationStopped {
		return nil
	}
	return err
}
