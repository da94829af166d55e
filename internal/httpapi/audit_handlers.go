package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"scolaris.org/internal/audit"
	"scolaris.org/internal/authz"
)

type auditExportResponse struct {
	Items []audit.Entry `json:"items"`
	AsOf  time.Time     `json:"as_of"`
}

// handleAuditExport serves the compliance export with optional actor_id,
// action, from, to and limit query parameters.
func (a *API) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionAuditRead, authz.Target{Type: "audit_log"}); err != nil {
		handleDomainError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		ActorID: q.Get("actor_id"),
		Action:  q.Get("action"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		filter.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	entries, err := a.audit.List(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, auditExportResponse{Items: entries, AsOf: time.Now().UTC()})
}
