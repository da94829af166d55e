package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"scolaris.org/internal/auth"
	"scolaris.org/internal/authz"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/session/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth verifies the bearer credential and resolves the request's active
// role, honoring the role override header for multi-role holders.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.issuer == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.issuer.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		rc, err := authz.Resolve(claims, r.Header.Get(a.overrideHeader))
		if err != nil {
			if errors.Is(err, authz.ErrRoleMismatch) {
				writeError(w, r, http.StatusForbidden, "requested role not held by credential")
				return
			}
			writeError(w, r, http.StatusUnauthorized, "invalid credential")
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		ctx = authz.ContextWithActiveRole(ctx, rc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// activeRole extracts the resolved role context or writes a 401.
func activeRole(w http.ResponseWriter, r *http.Request) (*authz.ActiveRoleContext, bool) {
	rc, ok := authz.ActiveRoleFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return rc, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
