package authz

import (
	"context"
	"errors"

	"scolaris.org/internal/auth"
	"scolaris.org/internal/obs"
)

// Authorizer is the single entry point for access decisions. It combines
// the action registry with the separation-of-duties guard.
type Authorizer struct {
	actions Registry
	guard   *Guard
}

func NewAuthorizer(actions Registry, guard *Guard) *Authorizer {
	return &Authorizer{actions: actions, guard: guard}
}

// Authorize decides whether the resolved active role may perform the named
// action on the target. The checks run in a fixed order: registry lookup,
// role membership, scope, then separation of duties for sensitive actions.
func (a *Authorizer) Authorize(ctx context.Context, rc *ActiveRoleContext, actionName string, t Target) error {
	if rc == nil {
		return auth.ErrUnauthenticated
	}
	action, ok := a.actions[actionName]
	if !ok {
		obs.AuthzDenials.WithLabelValues("unknown_action").Inc()
		return ErrUnknownAction
	}

	allowed := false
	for _, r := range action.Roles {
		if r == rc.Role {
			allowed = true
			break
		}
	}
	if !allowed {
		obs.AuthzDenials.WithLabelValues("role").Inc()
		return ErrUnauthorized
	}

	if action.Scope != nil {
		if err := action.Scope(ctx, rc, t); err != nil {
			if errors.Is(err, ErrOutOfScope) {
				obs.AuthzDenials.WithLabelValues("scope").Inc()
			} else {
				obs.AuthzDenials.WithLabelValues("financial_gate").Inc()
			}
			return err
		}
	}

	if action.Sensitive && a.guard != nil {
		if err := a.guard.Check(ctx, rc, action, t); err != nil {
			return err
		}
	}
	return nil
}
