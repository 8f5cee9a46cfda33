package adminplan

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vanirdb/pkg/audit"
	"github.com/orneryd/vanirdb/pkg/auth"
	"github.com/orneryd/vanirdb/pkg/cypher"
	"github.com/orneryd/vanirdb/pkg/multidb"
	"github.com/orneryd/vanirdb/pkg/storage"
)

type testHarness struct {
	rt       *Runtime
	auditLog *bytes.Buffer
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	engine := storage.NewMemoryEngine()
	mgr, err := multidb.NewDatabaseManager(engine, &multidb.Config{
		DefaultDatabase:  "vanir",
		SystemDatabase:   "system",
		MaxDatabases:     5,
		WaitPollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	sys, err := mgr.SystemStorage()
	require.NoError(t, err)

	users := auth.NewUserStore(sys)
	roles := auth.NewRoleStore(sys)
	privs := auth.NewPrivilegeStore(sys)

	require.NoError(t, users.Create("root", "rootpw", false, false))
	require.NoError(t, roles.GrantToUser("admin", "root"))

	var auditLog bytes.Buffer
	return &testHarness{
		rt: &Runtime{
			Users:      users,
			Roles:      roles,
			Privileges: privs,
			Procedures: auth.DefaultProcedureAllowlist(),
			Databases:  mgr,
			Audit:      audit.NewLogger(&auditLog),
		},
		auditLog: &auditLog,
	}
}

func (h *testHarness) run(t *testing.T, query, principal string) *Result {
	t.Helper()
	res, err := h.rt.Run(context.Background(), query, principal, nil)
	require.NoError(t, err)
	return res
}

func TestRuntime_UserLifecycle(t *testing.T) {
	h := newHarness(t)

	h.run(t, "CREATE USER alice SET PASSWORD 'wonder'", "root")
	assert.True(t, h.rt.Users.Exists("alice"))
	assert.True(t, h.rt.Users.CheckPassword("alice", "wonder"))

	h.run(t, "ALTER USER alice SET PASSWORD 'land'", "root")
	assert.True(t, h.rt.Users.CheckPassword("alice", "land"))

	h.run(t, "DROP USER alice", "root")
	assert.False(t, h.rt.Users.Exists("alice"))
}

func TestRuntime_ParameterizedPassword(t *testing.T) {
	h := newHarness(t)

	params := map[string]any{"pw": "wonder"}
	_, err := h.rt.Run(context.Background(), "CREATE USER alice SET PASSWORD $pw", "root", params)
	require.NoError(t, err)
	assert.True(t, h.rt.Users.CheckPassword("alice", "wonder"))
	assert.False(t, h.rt.Users.CheckPassword("alice", "pw"), "the parameter name must never become the password")

	params["pw"] = "land"
	_, err = h.rt.Run(context.Background(), "ALTER USER alice SET PASSWORD $pw", "root", params)
	require.NoError(t, err)
	assert.True(t, h.rt.Users.CheckPassword("alice", "land"))

	_, err = h.rt.Run(context.Background(), "CREATE USER bob SET PASSWORD $nope", "root", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected parameter: $nope")
	assert.False(t, h.rt.Users.Exists("bob"))
}

func TestRuntime_DropUserSelfProtection(t *testing.T) {
	h := newHarness(t)

	_, err := h.rt.Run(context.Background(), "DROP USER root", "root", nil)
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Contains(t, forbidden.Reason, "Deleting yourself is not allowed")
	assert.True(t, h.rt.Users.Exists("root"))

	// Self-protection fires before existence resolution.
	require.NoError(t, h.rt.Users.Create("alice", "pw", false, false))
	require.NoError(t, h.rt.Roles.GrantToUser("admin", "alice"))
	_, err = h.rt.Run(context.Background(), "DROP USER alice", "alice", nil)
	require.ErrorAs(t, err, &forbidden)
}

func TestRuntime_AlterOwnSuspensionForbidden(t *testing.T) {
	h := newHarness(t)

	_, err := h.rt.Run(context.Background(), "ALTER USER root SET STATUS SUSPENDED", "root", nil)
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	// Changing one's own password stays allowed.
	h.run(t, "ALTER USER root SET PASSWORD 'fresh'", "root")
	assert.True(t, h.rt.Users.CheckPassword("root", "fresh"))
}

func TestRuntime_Unauthorized(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rt.Users.Create("mallory", "pw", false, false))

	_, err := h.rt.Run(context.Background(), "CREATE USER eve SET PASSWORD 'pw'", "mallory", nil)
	var unauthorized *UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, "mallory", unauthorized.Principal)
	assert.False(t, h.rt.Users.Exists("eve"))
}

func TestRuntime_IdempotentCreateRole(t *testing.T) {
	h := newHarness(t)

	h.run(t, "CREATE ROLE reader", "root")

	res := h.run(t, "CREATE ROLE reader IF NOT EXISTS", "root")
	assert.True(t, res.NoOp)
	require.Len(t, res.Notifications, 1)
	assert.Contains(t, res.Notifications[0], "already exists")

	// Without the modifier the mutation is reached and fails.
	_, err := h.rt.Run(context.Background(), "CREATE ROLE reader", "root", nil)
	require.ErrorIs(t, err, auth.ErrRoleExists)
}

func TestRuntime_CreateRoleAsCopyOf(t *testing.T) {
	h := newHarness(t)

	h.run(t, "CREATE ROLE editor", "root")
	require.NoError(t, h.rt.Privileges.Grant(auth.Privilege{
		Action: auth.ActionAccess, Role: "editor",
		Scope: auth.NamedScope("vanir"), Qualifier: auth.AllQualifier(),
	}))
	require.NoError(t, h.rt.Privileges.Deny(auth.Privilege{
		Action: auth.ActionWrite, Role: "editor",
		Scope: auth.NamedScope("vanir"), Qualifier: auth.AllQualifier(),
	}))

	h.run(t, "CREATE ROLE junior AS COPY OF editor", "root")
	copied := h.rt.Privileges.RolePrivileges("junior")
	assert.Len(t, copied, 2)

	_, err := h.rt.Run(context.Background(), "CREATE ROLE orphan AS COPY OF ghost", "root", nil)
	require.ErrorIs(t, err, auth.ErrRoleNotFound)
	assert.False(t, h.rt.Roles.Exists("orphan"))
}

func TestRuntime_GrantAndRevokePrivileges(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE ROLE reader", "root")

	h.run(t, "GRANT ACCESS ON DATABASE vanir TO reader", "root")
	privs := h.rt.Privileges.RolePrivileges("reader")
	require.Len(t, privs, 1)
	assert.Equal(t, auth.FlavorGranted, privs[0].Flavor)

	h.run(t, "DENY ACCESS ON DATABASE vanir TO reader", "root")
	assert.Len(t, h.rt.Privileges.RolePrivileges("reader"), 2)

	h.run(t, "REVOKE ACCESS ON DATABASE vanir FROM reader", "root")
	assert.Empty(t, h.rt.Privileges.RolePrivileges("reader"))
}

func TestRuntime_DatabaseLifecycleWithWait(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "CREATE DATABASE movies WAIT 5 SECONDS", "root")
	assert.Empty(t, res.Notifications)
	assert.True(t, h.rt.Databases.Exists("movies"))

	h.run(t, "STOP DATABASE movies WAIT", "root")
	info, err := h.rt.Databases.GetDatabase("movies")
	require.NoError(t, err)
	assert.Equal(t, multidb.StatusOffline, info.Status)

	h.run(t, "START DATABASE movies", "root")
	h.run(t, "DROP DATABASE movies WAIT", "root")
	assert.False(t, h.rt.Databases.Exists("movies"))
}

// auditHook runs fn on the first audit write. The audit record lands after
// the mutation and before the wait polling starts, so the hook stands in
// for a second session acting on the database during the wait.
type auditHook struct {
	fn   func()
	once sync.Once
}

func (w *auditHook) Write(p []byte) (int, error) {
	w.once.Do(w.fn)
	return len(p), nil
}

func TestRuntime_WaitTimeoutIsANotification(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE DATABASE movies", "root")

	h.rt.Audit = audit.NewLogger(&auditHook{fn: func() {
		require.NoError(t, h.rt.Databases.SetBlocked("movies", true))
	}})

	plan, err := BuildPlan(cypher.StopDatabase{
		Database: cypher.Lit("movies"),
		Wait:     cypher.Wait{Enabled: true, Timeout: 10 * time.Millisecond},
	}, &Context{Principal: "root"})
	require.NoError(t, err)

	res, err := h.rt.Execute(context.Background(), plan, "root")
	require.NoError(t, err, "a wait timeout must not fail the statement")
	assert.False(t, res.NoOp)
	require.Len(t, res.Notifications, 1)
	assert.Contains(t, res.Notifications[0], "did not reach the requested state within 10ms")
	assert.Contains(t, res.Notifications[0], "continues in the background")
}

func TestRuntime_SystemDatabaseProtected(t *testing.T) {
	h := newHarness(t)

	_, err := h.rt.Run(context.Background(), "DROP DATABASE system", "root", nil)
	require.ErrorIs(t, err, multidb.ErrCannotDropSystemDB)

	_, err = h.rt.Run(context.Background(), "STOP DATABASE system", "root", nil)
	require.ErrorIs(t, err, multidb.ErrCannotStopSystemDB)
}

func TestRuntime_BlockedDatabaseRejectsLifecycle(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE DATABASE frozen", "root")
	require.NoError(t, h.rt.Databases.SetBlocked("frozen", true))

	_, err := h.rt.Run(context.Background(), "DROP DATABASE frozen", "root", nil)
	require.ErrorIs(t, err, multidb.ErrDatabaseBlocked)
}

func TestRuntime_DatabaseLimit(t *testing.T) {
	h := newHarness(t)
	// system + vanir exist; limit is 5.
	h.run(t, "CREATE DATABASE d1", "root")
	h.run(t, "CREATE DATABASE d2", "root")
	h.run(t, "CREATE DATABASE d3", "root")

	_, err := h.rt.Run(context.Background(), "CREATE DATABASE d4", "root", nil)
	require.ErrorIs(t, err, multidb.ErrMaxDatabasesReached)
}

func TestRuntime_RestrictedProcedureCall(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "CALL dbms.showCurrentUser()", "root")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "root", res.Rows[0][0])

	res = h.run(t, "CALL db.ping()", "root")
	assert.Equal(t, []any{true}, res.Rows[0])
}

func TestRuntime_ChangePasswordWhileExpired(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.rt.Users.Create("expired", "oldpw", true, false))

	// Expired credentials block ordinary system procedures.
	_, err := h.rt.Run(context.Background(), "CALL dbms.showCurrentUser()", "expired", nil)
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	// But not the password change itself.
	h.run(t, "CALL dbms.security.changePassword('newpw')", "expired")
	assert.True(t, h.rt.Users.CheckPassword("expired", "newpw"))

	res := h.run(t, "CALL dbms.showCurrentUser()", "expired")
	require.Len(t, res.Rows, 1)
}

func TestRuntime_UnsupportedCommand(t *testing.T) {
	h := newHarness(t)

	_, err := h.rt.Run(context.Background(), "RETURN 1", "root", nil)
	var unsupported *UnsupportedCommandError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Query, "RETURN 1")
}

func TestRuntime_ShowCommands(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE USER alice SET PASSWORD 'pw'", "root")
	h.run(t, "CREATE ROLE reader", "root")

	res := h.run(t, "SHOW USERS", "root")
	assert.Len(t, res.Rows, 2)

	res = h.run(t, "SHOW ROLES", "root")
	assert.Contains(t, flatten(res), "reader")
	assert.Contains(t, flatten(res), "admin")

	res = h.run(t, "SHOW DATABASES", "root")
	assert.Contains(t, flatten(res), "system")
	assert.Contains(t, flatten(res), "vanir")
}

func TestRuntime_AuditTrail(t *testing.T) {
	h := newHarness(t)

	h.run(t, "CREATE USER alice SET PASSWORD 'supersecret'", "root")
	_, err := h.rt.Run(context.Background(), "DROP USER root", "root", nil)
	require.Error(t, err)
	h.run(t, "SHOW USERS", "root")

	lines := strings.Split(strings.TrimSpace(h.auditLog.String()), "\n")
	require.Len(t, lines, 2) // SHOW commands are not logged

	var created, refused audit.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &created))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &refused))

	assert.True(t, created.Success)
	assert.NotContains(t, created.Command, "supersecret")
	assert.Contains(t, created.Command, "'******'")
	assert.False(t, refused.Success)
	assert.Contains(t, refused.Reason, "Deleting yourself")
}

func flatten(res *Result) string {
	var sb strings.Builder
	for _, row := range res.Rows {
		for _, cell := range row {
			if s, ok := cell.(string); ok {
				sb.WriteString(s)
				sb.WriteString(" ")
			}
		}
	}
	return sb.String()
}
