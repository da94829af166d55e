package authz

import (
	"context"
	"fmt"

	"scolaris.org/internal/audit"
	"scolaris.org/internal/identity"
	"scolaris.org/internal/obs"
)

// Guard enforces separation of duties on sensitive actions. Every decision
// is written to the audit trail before the action is allowed to proceed.
type Guard struct {
	audit audit.Store
}

func NewGuard(store audit.Store) *Guard {
	return &Guard{audit: store}
}

// Check evaluates the separation rules for one sensitive action. On a
// violation it records a blocked audit entry and returns ErrSoDViolation
// with no rule detail. On success it records the allowed entry first; if
// that write fails the action must not proceed.
func (g *Guard) Check(ctx context.Context, rc *ActiveRoleContext, action Action, t Target) error {
	reason := violation(rc, action, t)
	entry := &audit.Entry{
		ActorID:    rc.IdentityID,
		ActiveRole: rc.Role,
		Action:     action.Name,
		TargetType: t.Type,
		TargetID:   t.ID,
	}
	if reason != "" {
		entry.Outcome = audit.OutcomeBlocked
		entry.Detail = map[string]string{"rule": reason}
		// Best effort: the block stands even if the trail write fails,
		// but an unavailable trail must be visible to operators.
		if err := g.audit.Append(ctx, entry); err != nil {
			obs.LogRequest(map[string]any{
				"level":  "error",
				"msg":    "audit append failed on blocked action",
				"action": action.Name,
				"error":  err.Error(),
			})
		}
		_ = audit.LogEvent(ctx, "sod.blocked", map[string]any{"action": action.Name, "target": t.ID})
		obs.SodBlocks.WithLabelValues(action.Name).Inc()
		return ErrSoDViolation
	}
	entry.Outcome = audit.OutcomeAllowed
	if err := g.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("authz: audit append failed, action denied: %w", err)
	}
	_ = audit.LogEvent(ctx, "sod.allowed", map[string]any{"action": action.Name, "target": t.ID})
	return nil
}

// violation names the separation rule that fires, or returns "".
func violation(rc *ActiveRoleContext, action Action, t Target) string {
	if t.SubmitterID != "" && t.SubmitterID == rc.IdentityID {
		return "self_submission"
	}
	if t.BeneficiaryID != "" && t.BeneficiaryID == rc.IdentityID {
		return "self_benefit"
	}
	if action.Name == ActionPayrollApprove &&
		rc.Role == identity.RoleManagerRHPay && t.SubmitterRole == identity.RoleManagerRHPay {
		return "role_self_approval"
	}
	return ""
}
