package httpapi

import (
	"net/http"

	"scolaris.org/internal/audit"
	"scolaris.org/internal/auth"
	"scolaris.org/internal/authz"
	"scolaris.org/internal/identity"
)

type createIdentityRequest struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type identityView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Active    bool   `json:"active"`
}

type roleAssignmentRequest struct {
	IdentityID string `json:"identity_id"`
	Role       string `json:"role"`
	Scope      string `json:"scope"`
}

func (a *API) handleIdentities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionIdentityManage, authz.Target{Type: "identity"}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req createIdentityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	id := &identity.Identity{
		Email:        req.Email,
		Phone:        req.Phone,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	}
	if err := a.identity.Register(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "identity.registered", map[string]any{
		"identity": id.ID,
	})
	writeJSON(w, http.StatusCreated, identityView{
		ID: id.ID, Email: id.Email, Phone: id.Phone,
		FirstName: id.FirstName, LastName: id.LastName, Active: id.Active,
	})
}

// handleIdentityRoles grants a role with POST and revokes it with DELETE.
func (a *API) handleIdentityRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionIdentityManage, authz.Target{Type: "role_assignment"}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req roleAssignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.IdentityID == "" || req.Role == "" {
		writeError(w, r, http.StatusBadRequest, "identity_id and role are required")
		return
	}

	if r.Method == http.MethodDelete {
		if err := a.identity.RevokeRole(r.Context(), req.IdentityID, req.Role, req.Scope); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "role.revoked", map[string]any{
			"identity": req.IdentityID, "role": identity.NormalizeRole(req.Role),
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
		return
	}

	if err := a.identity.AssignRole(r.Context(), req.IdentityID, req.Role, req.Scope, rc.IdentityID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.assigned", map[string]any{
		"identity": req.IdentityID, "role": identity.NormalizeRole(req.Role), "scope": req.Scope,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"status": "assigned"})
}
