package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"scolaris.org/internal/audit"
	"scolaris.org/internal/auth"
	"scolaris.org/internal/identity"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type switchRoleRequest struct {
	Role string `json:"role"`
}

type credentialResponse struct {
	Token      string   `json:"token"`
	ExpiresAt  string   `json:"expires_at"`
	Roles      []string `json:"roles"`
	ActiveRole string   `json:"active_role"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	id, err := a.identity.FindByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !id.Active || auth.VerifyPassword(id.PasswordHash, req.Password) != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	_, assignments, err := a.identity.Lookup(r.Context(), id.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	cred, err := a.issuer.Issue(id, assignments)
	if err != nil {
		if errors.Is(err, auth.ErrRoleNotAssigned) {
			writeError(w, r, http.StatusForbidden, "no active role assignment")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "session.login", map[string]any{
		"identity": id.ID, "active_role": cred.ActiveRole,
	})
	writeJSON(w, http.StatusOK, credentialView(cred))
}

func (a *API) handleSwitchRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req switchRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role := identity.NormalizeRole(req.Role)
	if role == "" {
		writeError(w, r, http.StatusBadRequest, "role is required")
		return
	}

	cred, err := a.issuer.Reissue(claims, role)
	if err != nil {
		if errors.Is(err, auth.ErrRoleNotAssigned) {
			writeError(w, r, http.StatusConflict, "role not assigned")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "session.switch_role", map[string]any{
		"identity": claims.Subject, "from": claims.ActiveRole, "to": role,
	})
	writeJSON(w, http.StatusOK, credentialView(cred))
}

func credentialView(cred auth.Credential) credentialResponse {
	return credentialResponse{
		Token:      cred.Token,
		ExpiresAt:  cred.ExpiresAt.UTC().Format(time.RFC3339),
		Roles:      cred.Roles,
		ActiveRole: cred.ActiveRole,
	}
}
