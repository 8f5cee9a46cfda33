package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespacedEngine_Isolation(t *testing.T) {
	inner := NewMemoryEngine()
	defer inner.Close()

	tenantA := NewNamespacedEngine(inner, "tenant_a")
	tenantB := NewNamespacedEngine(inner, "tenant_b")

	_, err := tenantA.CreateNode(&Node{ID: "123", Labels: []string{"Person"}})
	require.NoError(t, err)

	// Visible in A with unprefixed ID, invisible in B.
	got, err := tenantA.GetNode("123")
	require.NoError(t, err)
	assert.Equal(t, NodeID("123"), got.ID)

	_, err = tenantB.GetNode("123")
	assert.Equal(t, ErrNotFound, err)

	// Underlying engine stores the prefixed key.
	raw, err := inner.GetNode("tenant_a:123")
	require.NoError(t, err)
	assert.Equal(t, NodeID("tenant_a:123"), raw.ID)
}

func TestNamespacedEngine_AllNodesScoped(t *testing.T) {
	inner := NewMemoryEngine()
	defer inner.Close()

	tenantA := NewNamespacedEngine(inner, "tenant_a")
	tenantB := NewNamespacedEngine(inner, "tenant_b")

	for _, id := range []NodeID{"1", "2"} {
		_, err := tenantA.CreateNode(&Node{ID: id})
		require.NoError(t, err)
	}
	_, err := tenantB.CreateNode(&Node{ID: "1"})
	require.NoError(t, err)

	var ids []NodeID
	err = tenantA.AllNodes(func(n *Node) error {
		ids = append(ids, n.ID)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []NodeID{"1", "2"}, ids)
}

func TestNamespacedEngine_DeleteByPrefixDropsNamespaceOnly(t *testing.T) {
	inner := NewMemoryEngine()
	defer inner.Close()

	tenantA := NewNamespacedEngine(inner, "tenant_a")
	tenantB := NewNamespacedEngine(inner, "tenant_b")

	_, err := tenantA.CreateNode(&Node{ID: "1"})
	require.NoError(t, err)
	_, err = tenantB.CreateNode(&Node{ID: "1"})
	require.NoError(t, err)

	deleted, err := tenantA.DeleteByPrefix("")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = tenantB.GetNode("1")
	assert.NoError(t, err)
}

func TestSerializationRoundTrip(t *testing.T) {
	node := &Node{
		ID:     "db_priv:analyst:sales",
		Labels: []string{"_DbPrivilege", "_System"},
		Properties: map[string]any{
			"role":     "analyst",
			"database": "sales",
			"read":     true,
		},
	}
	data, err := encodeNode(node)
	require.NoError(t, err)

	decoded, err := decodeNode(data)
	require.NoError(t, err)
	assert.Equal(t, node.ID, decoded.ID)
	assert.Equal(t, node.Labels, decoded.Labels)
	assert.Equal(t, "analyst", decoded.Properties["role"])

	_, err = decodeNode([]byte("junk"))
	assert.Error(t, err)
}
