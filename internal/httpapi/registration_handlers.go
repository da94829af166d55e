package httpapi

import "net/http"

type registrationRequest struct {
	StudentID string `json:"student_id"`
	UnitID    string `json:"unit_id"`
}

func (a *API) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	var req registrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.StudentID == "" || req.UnitID == "" {
		writeError(w, r, http.StatusBadRequest, "student_id and unit_id are required")
		return
	}
	reg, err := a.academic.RegisterStudent(r.Context(), rc, req.StudentID, req.UnitID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (a *API) handleRegistrationValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	var req registrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.StudentID == "" || req.UnitID == "" {
		writeError(w, r, http.StatusBadRequest, "student_id and unit_id are required")
		return
	}
	reg, err := a.academic.ValidateRegistration(r.Context(), rc, req.StudentID, req.UnitID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (a *API) handleRegistrationReopen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rc, ok := activeRole(w, r)
	if !ok {
		return
	}
	var req registrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.StudentID == "" || req.UnitID == "" {
		writeError(w, r, http.StatusBadRequest, "student_id and unit_id are required")
		return
	}
	reg, err := a.academic.ReopenRegistration(r.Context(), rc, req.StudentID, req.UnitID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}
