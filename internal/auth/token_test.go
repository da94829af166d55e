package auth

import (
	"errors"
	"slices"
	"testing"
	"time"

	"scolaris.org/internal/identity"
)

func testIssuer(t *testing.T, opts ...IssuerOption) *Issuer {
	t.Helper()
	iss, err := NewIssuer("test-secret", opts...)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func teacherAssignments() []identity.RoleAssignment {
	return []identity.RoleAssignment{
		{IdentityID: "id-1", Role: "TEACHER", Active: true},
		{IdentityID: "id-1", Role: "doyen", Scope: "FST", Active: true},
		{IdentityID: "id-1", Role: "TEACHER", Active: true},
		{IdentityID: "id-1", Role: "SCOLARITE", Active: false},
	}
}

func TestIssueAndParse(t *testing.T) {
	iss := testIssuer(t)
	cred, err := iss.Issue(&identity.Identity{ID: "id-1"}, teacherAssignments())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if cred.ActiveRole != "TEACHER" {
		t.Fatalf("unexpected active role: %s", cred.ActiveRole)
	}
	if len(cred.Roles) != 2 {
		t.Fatalf("expected deduplicated active roles, got %v", cred.Roles)
	}
	if !slices.Contains(cred.Roles, "DOYEN") {
		t.Fatalf("role codes not normalized: %v", cred.Roles)
	}

	claims, err := iss.ParseAndValidate(cred.Token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "id-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.ActiveRole != "TEACHER" {
		t.Fatalf("unexpected active role claim: %s", claims.ActiveRole)
	}
	if claims.Scopes["DOYEN"] != "FST" {
		t.Fatalf("scope lost: %v", claims.Scopes)
	}
}

func TestIssueRequiresActiveRole(t *testing.T) {
	iss := testIssuer(t)
	_, err := iss.Issue(&identity.Identity{ID: "id-2"}, []identity.RoleAssignment{
		{IdentityID: "id-2", Role: "TEACHER", Active: false},
	})
	if !errors.Is(err, ErrRoleNotAssigned) {
		t.Fatalf("expected ErrRoleNotAssigned, got %v", err)
	}
}

func TestReissueSwitchesActiveRole(t *testing.T) {
	iss := testIssuer(t)
	cred, err := iss.Issue(&identity.Identity{ID: "id-1"}, teacherAssignments())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := iss.ParseAndValidate(cred.Token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}

	switched, err := iss.Reissue(claims, "doyen")
	if err != nil {
		t.Fatalf("Reissue: %v", err)
	}
	if switched.ActiveRole != "DOYEN" {
		t.Fatalf("unexpected active role: %s", switched.ActiveRole)
	}

	// The prior credential stays valid until its own expiry.
	if _, err := iss.ParseAndValidate(cred.Token); err != nil {
		t.Fatalf("prior credential invalidated: %v", err)
	}

	newClaims, err := iss.ParseAndValidate(switched.Token)
	if err != nil {
		t.Fatalf("parse switched credential: %v", err)
	}
	if newClaims.ActiveRole != "DOYEN" || newClaims.Scopes["DOYEN"] != "FST" {
		t.Fatalf("switched claims wrong: %+v", newClaims)
	}
}

func TestReissueRejectsUnassignedRole(t *testing.T) {
	iss := testIssuer(t)
	cred, _ := iss.Issue(&identity.Identity{ID: "id-1"}, teacherAssignments())
	claims, _ := iss.ParseAndValidate(cred.Token)

	if _, err := iss.Reissue(claims, "DAF"); !errors.Is(err, ErrRoleNotAssigned) {
		t.Fatalf("expected ErrRoleNotAssigned, got %v", err)
	}
	// Prior credential remains valid after the failed switch.
	if _, err := iss.ParseAndValidate(cred.Token); err != nil {
		t.Fatalf("prior credential invalidated: %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	base := time.Now().UTC()
	current := base
	iss := testIssuer(t, WithTTL(time.Minute), WithClock(func() time.Time { return current }))

	cred, err := iss.Issue(&identity.Identity{ID: "id-1"}, teacherAssignments())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	current = base.Add(2 * time.Minute)
	if _, err := iss.ParseAndValidate(cred.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired credential, got %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	iss := testIssuer(t)
	other, _ := NewIssuer("other-secret")
	cred, _ := other.Issue(&identity.Identity{ID: "id-1"}, teacherAssignments())
	if _, err := iss.ParseAndValidate(cred.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
