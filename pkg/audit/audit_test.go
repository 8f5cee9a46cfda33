package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Record(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	require.NoError(t, l.Record("alice", "CREATE USER bob SET PASSWORD '******'", true, ""))
	require.NoError(t, l.Record("alice", "DROP USER carol", false, "user not found"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "alice", first.Principal)
	assert.True(t, first.Success)
	assert.Empty(t, first.Reason)
	assert.False(t, second.Success)
	assert.Equal(t, "user not found", second.Reason)
	assert.NotContains(t, lines[0], "secret")
}

func TestLogger_NilWriter(t *testing.T) {
	l := NewLogger(nil)
	require.NoError(t, l.Record("alice", "SHOW USERS", true, ""))
}
