package auth

import (
	"context"
	"testing"

	"github.com/orneryd/vanirdb/pkg/storage"
)

func TestUserStore_CreateDropAlter(t *testing.T) {
	ctx := context.Background()
	eng := storage.NewMemoryEngine()
	defer eng.Close()

	store := NewUserStore(eng)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := store.Create("alice", "secret", true, false); err != nil {
		t.Fatalf("Create alice: %v", err)
	}
	if err := store.Create("alice", "other", false, false); err != ErrUserExists {
		t.Errorf("duplicate create should fail with ErrUserExists, got %v", err)
	}
	if !store.Exists("alice") {
		t.Error("alice should exist")
	}
	if !store.CheckPassword("alice", "secret") {
		t.Error("CheckPassword should accept the initial password")
	}
	if store.CheckPassword("alice", "wrong") {
		t.Error("CheckPassword should reject a wrong password")
	}

	suspended := true
	if err := store.Alter("alice", AlterOptions{Suspended: &suspended}); err != nil {
		t.Fatalf("Alter: %v", err)
	}
	user, err := store.Get("alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !user.Suspended {
		t.Error("alice should be suspended after Alter")
	}

	if err := store.Drop("alice"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if err := store.Drop("alice"); err != ErrUserNotFound {
		t.Errorf("double drop should fail with ErrUserNotFound, got %v", err)
	}
}

func TestUserStore_LoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng := storage.NewMemoryEngine()
	defer eng.Close()

	store := NewUserStore(eng)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Create("bob", "hunter2", false, true); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reloaded := NewUserStore(eng)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	user, err := reloaded.Get("bob")
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if !user.Suspended {
		t.Error("suspended flag should survive reload")
	}
	if !reloaded.CheckPassword("bob", "hunter2") {
		t.Error("password should verify after reload")
	}
}
