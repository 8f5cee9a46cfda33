package auth

import (
	"context"
	"testing"

	"github.com/orneryd/vanirdb/pkg/storage"
)

func TestRoleStore_CreateDropBuiltins(t *testing.T) {
	ctx := context.Background()
	eng := storage.NewMemoryEngine()
	defer eng.Close()

	store := NewRoleStore(eng)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(store.AllRoles()) != 2 {
		t.Errorf("expected 2 built-in roles, got %v", store.AllRoles())
	}

	if err := store.Create("analyst"); err != nil {
		t.Fatalf("Create analyst: %v", err)
	}
	if err := store.Create("admin"); err != ErrRoleExists {
		t.Errorf("Create admin should fail with ErrRoleExists, got %v", err)
	}
	if err := store.Drop("admin"); err != ErrCannotDeleteBuiltinRole {
		t.Errorf("Drop admin should fail, got %v", err)
	}
	if err := store.Drop("analyst"); err != nil {
		t.Fatalf("Drop analyst: %v", err)
	}
	if err := store.Drop("analyst"); err != ErrRoleNotFound {
		t.Errorf("double drop should fail with ErrRoleNotFound, got %v", err)
	}
}

func TestRoleStore_Assignments(t *testing.T) {
	ctx := context.Background()
	eng := storage.NewMemoryEngine()
	defer eng.Close()

	store := NewRoleStore(eng)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Create("analyst"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.GrantToUser("analyst", "alice"); err != nil {
		t.Fatalf("GrantToUser: %v", err)
	}
	if err := store.GrantToUser("analyst", "alice"); err != ErrRoleAlreadyAssigned {
		t.Errorf("re-grant should fail with ErrRoleAlreadyAssigned, got %v", err)
	}
	if err := store.GrantToUser("missing", "alice"); err != ErrRoleNotFound {
		t.Errorf("grant of unknown role should fail, got %v", err)
	}

	roles := store.RolesOf("alice")
	if len(roles) != 2 { // public + analyst
		t.Errorf("expected public+analyst, got %v", roles)
	}

	if err := store.RevokeFromUser("analyst", "alice"); err != nil {
		t.Fatalf("RevokeFromUser: %v", err)
	}
	if err := store.RevokeFromUser("analyst", "alice"); err != ErrRoleNotAssigned {
		t.Errorf("double revoke should fail with ErrRoleNotAssigned, got %v", err)
	}

	// Dropping a role clears its assignments.
	if err := store.GrantToUser("analyst", "bob"); err != nil {
		t.Fatalf("GrantToUser bob: %v", err)
	}
	if err := store.Drop("analyst"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if len(store.RolesOf("bob")) != 1 {
		t.Errorf("bob should only hold public after role drop, got %v", store.RolesOf("bob"))
	}
}
