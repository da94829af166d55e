package authz

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"scolaris.org/internal/audit"
	"scolaris.org/internal/identity"
	"scolaris.org/internal/obs"
)

type failingAuditStore struct{}

func (failingAuditStore) Append(ctx context.Context, entry *audit.Entry) error {
	return errors.New("trail unavailable")
}

func (failingAuditStore) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	return nil, nil
}

func TestGuardBlocksSelfSubmittedApproval(t *testing.T) {
	trail := audit.NewInMemory()
	authz := NewAuthorizer(DefaultActions(nil), NewGuard(trail))
	ctx := context.Background()

	// One person holds both roles; switching roles must not let them
	// approve their own submission.
	actor := &ActiveRoleContext{
		IdentityID: "u-7",
		Role:       identity.RoleDoyen,
		Roles:      []string{identity.RoleTeacher, identity.RoleDoyen},
	}
	err := authz.Authorize(ctx, actor, ActionJuryClose, Target{
		Type:        "unit",
		ID:          "unit-1",
		SubmitterID: "u-7",
	})
	if !errors.Is(err, ErrSoDViolation) {
		t.Fatalf("expected ErrSoDViolation, got %v", err)
	}
	if err.Error() != "separation of duties violation" {
		t.Fatalf("error message must stay stable, got %q", err.Error())
	}

	entries, listErr := trail.List(ctx, audit.Filter{ActorID: "u-7"})
	if listErr != nil {
		t.Fatalf("List failed: %v", listErr)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(entries))
	}
	if entries[0].Outcome != audit.OutcomeBlocked {
		t.Fatalf("expected blocked outcome, got %s", entries[0].Outcome)
	}
}

func TestGuardRecordsAllowedBeforeEffect(t *testing.T) {
	trail := audit.NewInMemory()
	authz := NewAuthorizer(DefaultActions(nil), NewGuard(trail))
	ctx := context.Background()

	actor := &ActiveRoleContext{IdentityID: "d-1", Role: identity.RoleDoyen, Roles: []string{identity.RoleDoyen}}
	err := authz.Authorize(ctx, actor, ActionJuryClose, Target{
		Type:        "unit",
		ID:          "unit-1",
		SubmitterID: "t-9",
	})
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}

	entries, listErr := trail.List(ctx, audit.Filter{Action: ActionJuryClose})
	if listErr != nil {
		t.Fatalf("List failed: %v", listErr)
	}
	if len(entries) != 1 || entries[0].Outcome != audit.OutcomeAllowed {
		t.Fatalf("expected one allowed entry, got %+v", entries)
	}
}

func TestGuardFailsClosedWhenTrailUnavailable(t *testing.T) {
	authz := NewAuthorizer(DefaultActions(nil), NewGuard(failingAuditStore{}))
	ctx := context.Background()

	actor := &ActiveRoleContext{IdentityID: "d-1", Role: identity.RoleDoyen, Roles: []string{identity.RoleDoyen}}
	err := authz.Authorize(ctx, actor, ActionJuryClose, Target{Type: "unit", ID: "unit-1"})
	if err == nil {
		t.Fatal("expected denial when the audit trail cannot be written")
	}
}

func TestGuardLogsTrailFailureOnBlockedAction(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	authz := NewAuthorizer(DefaultActions(nil), NewGuard(failingAuditStore{}))
	ctx := context.Background()

	actor := &ActiveRoleContext{IdentityID: "d-1", Role: identity.RoleDoyen, Roles: []string{identity.RoleDoyen}}
	err := authz.Authorize(ctx, actor, ActionJuryClose, Target{
		Type:        "unit",
		ID:          "unit-1",
		SubmitterID: "d-1",
	})
	if !errors.Is(err, ErrSoDViolation) {
		t.Fatalf("expected ErrSoDViolation, got %v", err)
	}
	if !strings.Contains(buf.String(), "audit append failed on blocked action") {
		t.Fatalf("expected trail failure to be logged, got %q", buf.String())
	}
}

func TestGuardBlocksPayrollRoleSelfApproval(t *testing.T) {
	trail := audit.NewInMemory()
	authz := NewAuthorizer(DefaultActions(nil), NewGuard(trail))
	ctx := context.Background()

	manager := &ActiveRoleContext{IdentityID: "rh-2", Role: identity.RoleManagerRHPay, Roles: []string{identity.RoleManagerRHPay}}
	err := authz.Authorize(ctx, manager, ActionPayrollApprove, Target{
		Type:          "payroll_run",
		ID:            "run-3",
		SubmitterID:   "rh-1",
		SubmitterRole: identity.RoleManagerRHPay,
	})
	if !errors.Is(err, ErrSoDViolation) {
		t.Fatalf("expected ErrSoDViolation, got %v", err)
	}

	// A different role approving the same run passes.
	daf := &ActiveRoleContext{IdentityID: "daf-1", Role: identity.RoleDAF, Roles: []string{identity.RoleDAF}}
	err = authz.Authorize(ctx, daf, ActionPayrollApprove, Target{
		Type:          "payroll_run",
		ID:            "run-3",
		SubmitterID:   "rh-1",
		SubmitterRole: identity.RoleManagerRHPay,
	})
	if err != nil {
		t.Fatalf("expected allow for DAF, got %v", err)
	}
}

func TestGuardBlocksSelfBeneficiary(t *testing.T) {
	trail := audit.NewInMemory()
	authz := NewAuthorizer(DefaultActions(nil), NewGuard(trail))
	ctx := context.Background()

	daf := &ActiveRoleContext{IdentityID: "daf-1", Role: identity.RoleDAF, Roles: []string{identity.RoleDAF}}
	err := authz.Authorize(ctx, daf, ActionPayrollApprove, Target{
		Type:          "payroll_run",
		ID:            "run-4",
		SubmitterID:   "rh-1",
		BeneficiaryID: "daf-1",
	})
	if !errors.Is(err, ErrSoDViolation) {
		t.Fatalf("expected ErrSoDViolation, got %v", err)
	}
}
