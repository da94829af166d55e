package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"scolaris.org/internal/academic"
	"scolaris.org/internal/audit"
	"scolaris.org/internal/authz"
	"scolaris.org/internal/rules"
)

type createProgramRequest struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	FacultyCode string          `json:"faculty_code"`
	Rules       json.RawMessage `json:"rules"`
}

type programView struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	FacultyCode string          `json:"faculty_code"`
	Rules       json.RawMessage `json:"rules"`
}

// handlePrograms creates a program. The rule document is validated up
// front; a program with a malformed document is never stored.
func (a *API) handlePrograms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionRulesManage, authz.Target{Type: "program"}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req createProgramRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Code == "" || req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "code and name are required")
		return
	}
	if _, err := rules.Parse(req.Code, req.Rules); err != nil {
		handleDomainError(w, r, err)
		return
	}
	program := &academic.Program{
		Code:        req.Code,
		Name:        req.Name,
		FacultyCode: req.FacultyCode,
		RulesJSON:   req.Rules,
	}
	if err := a.academicStore.CreateProgram(r.Context(), program); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "program.created", map[string]any{
		"program": program.Code, "faculty": program.FacultyCode,
	})
	writeJSON(w, http.StatusCreated, programView{
		Code: program.Code, Name: program.Name,
		FacultyCode: program.FacultyCode, Rules: program.RulesJSON,
	})
}

// handleProgramResource serves /v1/programs/{code}.
func (a *API) handleProgramResource(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/v1/programs/")
	if code == "" || strings.Contains(code, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionRulesManage, authz.Target{Type: "program", ID: code}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	program, err := a.academicStore.Program(r.Context(), code)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programView{
		Code: program.Code, Name: program.Name,
		FacultyCode: program.FacultyCode, Rules: program.RulesJSON,
	})
}
