package wallet

import (
	"errors"
	"testing"

	"sniper-core/pkg/db"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return NewRegistry(database.Queries())
}

func TestRegisterAndAddress(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Address("u1"); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}

	if err := r.Register("u1", "not-a-pubkey"); err == nil {
		t.Fatal("expected validation error for bad pubkey")
	}

	const pk = "11111111111111111111111111111111"
	if err := r.Register("u1", pk); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := r.Address("u1")
	if err != nil || got != pk {
		t.Fatalf("Address = %q, %v", got, err)
	}
}
