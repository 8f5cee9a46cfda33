package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEngine_CreateGetDelete(t *testing.T) {
	eng := NewMemoryEngine()
	defer eng.Close()

	node := &Node{
		ID:         "user:alice",
		Labels:     []string{"_User", "_System"},
		Properties: map[string]any{"name": "alice"},
	}
	created, err := eng.CreateNode(node)
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = eng.CreateNode(node)
	assert.Equal(t, ErrAlreadyExists, err)

	got, err := eng.GetNode("user:alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Properties["name"])
	assert.True(t, got.HasLabel("_User"))

	// Mutating the returned node must not leak into the engine.
	got.Properties["name"] = "mallory"
	again, err := eng.GetNode("user:alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Properties["name"])

	require.NoError(t, eng.DeleteNode("user:alice"))
	_, err = eng.GetNode("user:alice")
	assert.Equal(t, ErrNotFound, err)
	assert.Equal(t, ErrNotFound, eng.DeleteNode("user:alice"))
}

func TestMemoryEngine_UpdatePreservesCreatedAt(t *testing.T) {
	eng := NewMemoryEngine()
	defer eng.Close()

	created, err := eng.CreateNode(&Node{ID: "role:analyst", Properties: map[string]any{"name": "analyst"}})
	require.NoError(t, err)

	err = eng.UpdateNode(&Node{ID: "role:analyst", Properties: map[string]any{"name": "analyst", "renamed": true}})
	require.NoError(t, err)

	got, err := eng.GetNode("role:analyst")
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
	assert.Equal(t, true, got.Properties["renamed"])

	err = eng.UpdateNode(&Node{ID: "role:missing"})
	assert.Equal(t, ErrNotFound, err)
}

func TestMemoryEngine_DeleteByPrefix(t *testing.T) {
	eng := NewMemoryEngine()
	defer eng.Close()

	for _, id := range []NodeID{"tenant_a:1", "tenant_a:2", "tenant_b:1"} {
		_, err := eng.CreateNode(&Node{ID: id})
		require.NoError(t, err)
	}

	deleted, err := eng.DeleteByPrefix("tenant_a:")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = eng.GetNode("tenant_b:1")
	assert.NoError(t, err)
}

func TestStreamNodes_StopAndCancel(t *testing.T) {
	eng := NewMemoryEngine()
	defer eng.Close()

	for _, id := range []NodeID{"a", "b", "c"} {
		_, err := eng.CreateNode(&Node{ID: id})
		require.NoError(t, err)
	}

	seen := 0
	err := StreamNodes(context.Background(), eng, func(n *Node) error {
		seen++
		if seen == 2 {
			return ErrIterationStopped
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = StreamNodes(ctx, eng, func(n *Node) error { return nil })
	assert.Error(t, err)
}
