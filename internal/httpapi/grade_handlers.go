package httpapi

import (
	"net/http"
	"strings"

	"scolaris.org/internal/academic"
	"scolaris.org/internal/authz"
)

type bulkSubmitRequest struct {
	Entries []academic.GradeSubmission `json:"entries"`
}

type juryCloseRequest struct {
	UnitID string `json:"unit_id"`
}

type compensateRequest struct {
	ProgramCode string `json:"program_code"`
	Period      string `json:"period"`
}

func (a *API) handleBulkSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	var req bulkSubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, r, http.StatusBadRequest, "entries are required")
		return
	}
	res, err := a.academic.BulkSubmit(r.Context(), rc, req.Entries)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type finalizeRequest struct {
	EvaluationID string `json:"evaluation_id"`
}

func (a *API) handleEvaluationFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	var req finalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.EvaluationID) == "" {
		writeError(w, r, http.StatusBadRequest, "evaluation_id is required")
		return
	}
	eval, err := a.academic.FinalizeEvaluation(r.Context(), rc, req.EvaluationID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

func (a *API) handleJuryClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	var req juryCloseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UnitID) == "" {
		writeError(w, r, http.StatusBadRequest, "unit_id is required")
		return
	}
	res, err := a.academic.CloseJury(r.Context(), rc, req.UnitID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleCompensate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	var req compensateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProgramCode == "" || req.Period == "" {
		writeError(w, r, http.StatusBadRequest, "program_code and period are required")
		return
	}
	target := authz.Target{Type: "program", ID: req.ProgramCode}
	if err := a.authz.Authorize(r.Context(), rc, authz.ActionJuryClose, target); err != nil {
		handleDomainError(w, r, err)
		return
	}
	res, err := a.engine.CompensatePeriod(r.Context(), req.ProgramCode, req.Period)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStudentResource serves /v1/students/{id}/grades.
func (a *API) handleStudentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/students/")
	if path == "" || !strings.HasSuffix(path, "/grades") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	studentID := strings.TrimSuffix(strings.TrimSuffix(path, "/grades"), "/")
	if studentID == "" || strings.Contains(studentID, "/") {
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
	transcript, err := a.academic.StudentGrades(r.Context(), rc, studentID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}
