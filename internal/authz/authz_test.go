package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"scolaris.org/internal/audit"
	"scolaris.org/internal/auth"
	"scolaris.org/internal/finance"
	"scolaris.org/internal/identity"
)

func testClaims(subject, active string, roles []string, scopes map[string]string) *auth.Claims {
	return &auth.Claims{
		Roles:      roles,
		Scopes:     scopes,
		ActiveRole: active,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
		},
	}
}

func TestResolveDefaultsToActiveRole(t *testing.T) {
	claims := testClaims("u-1", identity.RoleTeacher, []string{identity.RoleTeacher, identity.RoleDoyen}, map[string]string{identity.RoleDoyen: "FST"})

	rc, err := Resolve(claims, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rc.Role != identity.RoleTeacher {
		t.Fatalf("expected TEACHER active, got %s", rc.Role)
	}
	if rc.Scope != "" {
		t.Fatalf("TEACHER carries no scope, got %q", rc.Scope)
	}
}

func TestResolveOverrideSwitchesRoleAndScope(t *testing.T) {
	claims := testClaims("u-1", identity.RoleTeacher, []string{identity.RoleTeacher, identity.RoleDoyen}, map[string]string{identity.RoleDoyen: "FST"})

	rc, err := Resolve(claims, " doyen ")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rc.Role != identity.RoleDoyen {
		t.Fatalf("expected DOYEN, got %s", rc.Role)
	}
	if rc.Scope != "FST" {
		t.Fatalf("expected faculty scope FST, got %q", rc.Scope)
	}
}

func TestResolveRejectsUnheldOverride(t *testing.T) {
	claims := testClaims("u-1", identity.RoleTeacher, []string{identity.RoleTeacher}, nil)

	if _, err := Resolve(claims, identity.RoleRecteur); !errors.Is(err, ErrRoleMismatch) {
		t.Fatalf("expected ErrRoleMismatch, got %v", err)
	}
	if _, err := Resolve(nil, ""); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorizeMissingCredential(t *testing.T) {
	authz := NewAuthorizer(DefaultActions(nil), NewGuard(audit.NewInMemory()))
	err := authz.Authorize(context.Background(), nil, ActionGradesRead, Target{Type: "student", ID: "st-1"})
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorizeRoleMembership(t *testing.T) {
	authz := NewAuthorizer(DefaultActions(nil), NewGuard(audit.NewInMemory()))
	ctx := context.Background()

	student := &ActiveRoleContext{IdentityID: "std-1", Role: identity.RoleStudent, Roles: []string{identity.RoleStudent}}
	if err := authz.Authorize(ctx, student, ActionGradesSubmit, Target{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	teacher := &ActiveRoleContext{IdentityID: "t-1", Role: identity.RoleTeacher, Roles: []string{identity.RoleTeacher}}
	if err := authz.Authorize(ctx, teacher, ActionGradesSubmit, Target{}); err != nil {
		t.Fatalf("teacher should submit grades, got %v", err)
	}

	if err := authz.Authorize(ctx, teacher, "grades.export", Target{}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestAuthorizeFacultyScope(t *testing.T) {
	authz := NewAuthorizer(DefaultActions(nil), NewGuard(audit.NewInMemory()))
	ctx := context.Background()

	doyen := &ActiveRoleContext{IdentityID: "d-1", Role: identity.RoleDoyen, Scope: "FST", Roles: []string{identity.RoleDoyen}}
	if err := authz.Authorize(ctx, doyen, ActionGradesRead, Target{Type: "unit", FacultyCode: "FSE"}); !errors.Is(err, ErrOutOfScope) {
		t.Fatalf("expected ErrOutOfScope, got %v", err)
	}
	if err := authz.Authorize(ctx, doyen, ActionGradesRead, Target{Type: "unit", FacultyCode: "FST"}); err != nil {
		t.Fatalf("in-faculty read should pass, got %v", err)
	}
}

func TestAuthorizeStudentSelfReadThroughGate(t *testing.T) {
	store := finance.NewInMemory()
	gate := finance.NewGate(store)
	authz := NewAuthorizer(DefaultActions(gate), NewGuard(audit.NewInMemory()))
	ctx := context.Background()

	student := &ActiveRoleContext{IdentityID: "std-1", Role: identity.RoleStudent, Roles: []string{identity.RoleStudent}}

	// Another student's grades are out of scope regardless of finances.
	if err := authz.Authorize(ctx, student, ActionGradesRead, Target{Type: "student", OwnerID: "std-2"}); !errors.Is(err, ErrOutOfScope) {
		t.Fatalf("expected ErrOutOfScope, got %v", err)
	}

	// Clean account: own grades readable.
	if err := authz.Authorize(ctx, student, ActionGradesRead, Target{Type: "student", OwnerID: "std-1"}); err != nil {
		t.Fatalf("expected access, got %v", err)
	}

	// Unpaid invoice flips the gate to Blocked.
	err := store.CreateInvoice(ctx, &finance.Invoice{
		StudentID: "std-1",
		Number:    finance.FormatInvoiceNumber(2026, 1),
		Lines: []finance.InvoiceLine{
			{ProductCode: "SCOL", Amount: finance.Money{Currency: finance.DefaultCurrency, Amount: 150000}},
		},
		Total: finance.Money{Currency: finance.DefaultCurrency, Amount: 150000},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if err := authz.Authorize(ctx, student, ActionGradesRead, Target{Type: "student", OwnerID: "std-1"}); !errors.Is(err, finance.ErrFinancialBlock) {
		t.Fatalf("expected ErrFinancialBlock, got %v", err)
	}
}
