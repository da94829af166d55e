package authz

import (
	"context"
	"strings"

	"scolaris.org/internal/auth"
	"scolaris.org/internal/identity"
)

// ActiveRoleContext is the resolved per-request authorization view. Handlers
// read it instead of re-deriving from raw claims.
type ActiveRoleContext struct {
	IdentityID string
	Role       string
	Scope      string
	Roles      []string
}

// HasRole reports whether the credential carries the given role, regardless
// of which one is active.
func (rc *ActiveRoleContext) HasRole(role string) bool {
	role = identity.NormalizeRole(role)
	for _, r := range rc.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Resolve derives the request's active role from verified claims plus the
// optional override header value. An override must name a role the
// credential already carries; it never widens the role set.
func Resolve(claims *auth.Claims, override string) (*ActiveRoleContext, error) {
	if claims == nil {
		return nil, auth.ErrUnauthenticated
	}
	role := claims.ActiveRole
	if v := strings.TrimSpace(override); v != "" {
		v = identity.NormalizeRole(v)
		found := false
		for _, r := range claims.Roles {
			if r == v {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrRoleMismatch
		}
		role = v
	}
	rc := &ActiveRoleContext{
		IdentityID: claims.Subject,
		Role:       role,
		Roles:      append([]string(nil), claims.Roles...),
	}
	if claims.Scopes != nil {
		rc.Scope = claims.Scopes[role]
	}
	return rc, nil
}

type roleContextKey struct{}

// ContextWithActiveRole attaches the resolved role context to the request.
func ContextWithActiveRole(ctx context.Context, rc *ActiveRoleContext) context.Context {
	if rc == nil {
		return ctx
	}
	return context.WithValue(ctx, roleContextKey{}, rc)
}

// ActiveRoleFromContext extracts the resolved role context if present.
func ActiveRoleFromContext(ctx context.Context) (*ActiveRoleContext, bool) {
	if ctx == nil {
		return nil, false
	}
	rc, ok := ctx.Value(roleContextKey{}).(*ActiveRoleContext)
	if !ok || rc == nil {
		return nil, false
	}
	return rc, true
}
