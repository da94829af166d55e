package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"scolaris.org/internal/academic"
	"scolaris.org/internal/auth"
	"scolaris.org/internal/authz"
	"scolaris.org/internal/finance"
	"scolaris.org/internal/identity"
	"scolaris.org/internal/rules"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps service errors to HTTP responses. Authorization
// failures keep deliberately terse messages.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, authz.ErrSoDViolation):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, authz.ErrRoleMismatch):
		writeError(w, r, http.StatusForbidden, "requested role not held by credential")
	case errors.Is(err, authz.ErrUnauthorized), errors.Is(err, authz.ErrUnknownAction):
		writeError(w, r, http.StatusForbidden, "action not permitted")
	case errors.Is(err, authz.ErrOutOfScope):
		writeError(w, r, http.StatusForbidden, "target outside active role scope")
	case errors.Is(err, finance.ErrFinancialBlock):
		writeError(w, r, http.StatusForbidden, "financial block")
	case errors.Is(err, identity.ErrConflict):
		writeError(w, r, http.StatusConflict, "identity already exists")
	case errors.Is(err, academic.ErrRegistrationTerminal):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, academic.ErrDuplicateRegistration):
		writeError(w, r, http.StatusConflict, "student already registered")
	case errors.Is(err, academic.ErrEvaluationClosed):
		writeError(w, r, http.StatusConflict, "evaluation closed")
	case errors.Is(err, rules.ErrPeriodOpen):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, rules.ErrInvalidRuleDocument):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, academic.ErrInvalidInput),
		errors.Is(err, finance.ErrInvalidInput),
		errors.Is(err, finance.ErrInvalidAmount),
		errors.Is(err, finance.ErrInvalidMethod),
		errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, academic.ErrNotFound),
		errors.Is(err, finance.ErrNotFound),
		errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
