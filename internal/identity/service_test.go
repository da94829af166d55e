package identity

import (
	"context"
	"errors"
	"testing"
)

func newIdentity(email, phone string) *Identity {
	return &Identity{
		Email:        email,
		Phone:        phone,
		FirstName:    "Awa",
		LastName:     "Mbarga",
		PasswordHash: "x",
	}
}

func TestRegisterValidatesAndActivates(t *testing.T) {
	svc, err := NewService(NewInMemory())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	ctx := context.Background()

	id := newIdentity("  Awa.Mbarga@Scolaris.TEST ", "+237699000001")
	if err := svc.Register(ctx, id); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if id.ID == "" || !id.Active {
		t.Fatalf("expected active identity with id, got %+v", id)
	}
	if id.Email != "awa.mbarga@scolaris.test" {
		t.Fatalf("email not normalized: %q", id.Email)
	}

	if err := svc.Register(ctx, newIdentity("no-at-sign", "+237699000002")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad email, got %v", err)
	}
	if err := svc.Register(ctx, newIdentity("dup@scolaris.test", "")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing phone, got %v", err)
	}
	if err := svc.Register(ctx, newIdentity("awa.mbarga@scolaris.test", "+237699000003")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestAssignRoleUniqueWhileActive(t *testing.T) {
	svc, _ := NewService(NewInMemory())
	ctx := context.Background()

	id := newIdentity("dean@scolaris.test", "+237699000010")
	if err := svc.Register(ctx, id); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.AssignRole(ctx, id.ID, " doyen ", "FSA", "admin-1"); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
	if err := svc.AssignRole(ctx, id.ID, "DOYEN", "FSA", "admin-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate assignment, got %v", err)
	}
	// Same role with a different scope is a distinct assignment.
	if err := svc.AssignRole(ctx, id.ID, "DOYEN", "FSJP", "admin-1"); err != nil {
		t.Fatalf("AssignRole with new scope failed: %v", err)
	}

	if err := svc.RevokeRole(ctx, id.ID, "DOYEN", "FSA"); err != nil {
		t.Fatalf("RevokeRole failed: %v", err)
	}
	// Revoked, the original triple can be granted again.
	if err := svc.AssignRole(ctx, id.ID, "DOYEN", "FSA", "admin-1"); err != nil {
		t.Fatalf("re-AssignRole failed: %v", err)
	}

	_, assignments, err := svc.Lookup(ctx, id.ID)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 active assignments, got %+v", assignments)
	}
	for _, a := range assignments {
		if a.Role != RoleDoyen {
			t.Fatalf("role not normalized: %+v", a)
		}
	}
}

func TestDeactivateKeepsRecord(t *testing.T) {
	store := NewInMemory()
	svc, _ := NewService(store)
	ctx := context.Background()

	id := newIdentity("gone@scolaris.test", "+237699000020")
	if err := svc.Register(ctx, id); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := svc.Deactivate(ctx, id.ID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	got, err := store.Find(ctx, id.ID)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got.Active {
		t.Fatal("expected deactivated identity")
	}
}
