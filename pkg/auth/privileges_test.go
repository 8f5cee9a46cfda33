package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vanirdb/pkg/storage"
)

func TestQualifierSimplify(t *testing.T) {
	atoms := LabelQualifier("Person", "Movie").Simplify()
	require.Len(t, atoms, 2)
	assert.Equal(t, []string{"Person"}, atoms[0].Values)
	assert.Equal(t, []string{"Movie"}, atoms[1].Values)

	all := AllQualifier().Simplify()
	require.Len(t, all, 1)
	assert.Equal(t, "all", all[0].Key())
}

func TestResourceAndScopeSimplify(t *testing.T) {
	props := PropertyResource("name", "age").Simplify()
	require.Len(t, props, 2)
	assert.Equal(t, "property(name)", props[0].Key())

	require.Len(t, AllPropertiesResource().Simplify(), 1)

	scopes := NamedScope("sales", "hr").Simplify()
	require.Len(t, scopes, 2)
	assert.Equal(t, "sales", scopes[0].Key())
	assert.Equal(t, "hr", scopes[1].Key())

	require.Len(t, AllScope().Simplify(), 1)
	assert.Equal(t, "*", AllScope().Key())
	assert.Equal(t, "dbms", Scope{}.Key())
}

func TestPrivilegeStore_GrantDenyRevoke(t *testing.T) {
	ctx := context.Background()
	eng := storage.NewMemoryEngine()
	defer eng.Close()

	store := NewPrivilegeStore(eng)
	require.NoError(t, store.Load(ctx))

	priv := Privilege{
		Action:    ActionShowUser,
		Role:      "analyst",
		Qualifier: AllQualifier(),
	}
	require.NoError(t, store.Grant(priv))
	require.NoError(t, store.Grant(priv)) // idempotent
	require.NoError(t, store.Deny(priv))

	rows := store.RolePrivileges("analyst")
	assert.Len(t, rows, 2)

	require.NoError(t, store.Revoke(priv, FlavorDenied))
	rows = store.RolePrivileges("analyst")
	require.Len(t, rows, 1)
	assert.Equal(t, FlavorGranted, rows[0].Flavor)

	// Revoking an absent row is a no-op.
	require.NoError(t, store.Revoke(priv, FlavorDenied))
}

func TestPrivilegeStore_AllowsAction(t *testing.T) {
	ctx := context.Background()
	eng := storage.NewMemoryEngine()
	defer eng.Close()

	store := NewPrivilegeStore(eng)
	require.NoError(t, store.Load(ctx))

	assert.True(t, store.AllowsAction([]string{"admin"}, ActionCreateUser))
	assert.False(t, store.AllowsAction([]string{"public"}, ActionCreateUser))

	priv := Privilege{Action: ActionShowUser, Role: "auditor", Qualifier: AllQualifier()}
	require.NoError(t, store.Grant(priv))
	assert.True(t, store.AllowsAction([]string{"auditor"}, ActionShowUser))

	// A deny beats the grant.
	require.NoError(t, store.Deny(priv))
	assert.False(t, store.AllowsAction([]string{"auditor"}, ActionShowUser))
}

func TestPrivilegeStore_CopyAndReload(t *testing.T) {
	ctx := context.Background()
	eng := storage.NewMemoryEngine()
	defer eng.Close()

	store := NewPrivilegeStore(eng)
	require.NoError(t, store.Load(ctx))

	granted := Privilege{
		Action:    ActionShowUser,
		Role:      "reader",
		Scope:     NamedScope("sales"),
		Qualifier: LabelQualifier("Person"),
		Resource:  PropertyResource("name"),
	}
	denied := Privilege{
		Action:    ActionShowRole,
		Role:      "reader",
		Qualifier: AllQualifier(),
	}
	require.NoError(t, store.Grant(granted))
	require.NoError(t, store.Deny(denied))

	require.NoError(t, store.CopyPrivileges("reader", "trainee", FlavorGranted))
	rows := store.RolePrivileges("trainee")
	require.Len(t, rows, 1)
	assert.Equal(t, FlavorGranted, rows[0].Flavor)
	assert.Equal(t, "sales", rows[0].Scope.Key())

	reloaded := NewPrivilegeStore(eng)
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, reloaded.AllPrivileges(), 3)
	round := reloaded.RolePrivileges("trainee")
	require.Len(t, round, 1)
	assert.Equal(t, "label(Person)", round[0].Qualifier.Key())
	assert.Equal(t, "property(name)", round[0].Resource.Key())
}

func TestProcedureAllowlist(t *testing.T) {
	allow := DefaultProcedureAllowlist()

	assert.True(t, allow.IsSystemProcedure("dbms.security.changePassword"))
	assert.False(t, allow.IsSystemProcedure("db.labels"))
	assert.True(t, allow.BypassesCredentialExpiry("dbms.security.changePassword"))
	assert.False(t, allow.BypassesCredentialExpiry("db.ping"))

	problems := allow.CheckCall("dbms.security.changePassword", 1, nil)
	assert.Empty(t, problems)

	problems = allow.CheckCall("dbms.security.changePassword", 0, []string{"nope"})
	assert.Len(t, problems, 2)

	problems = allow.CheckCall("db.missing", 0, nil)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "db.missing")
}
