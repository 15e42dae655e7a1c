package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"makerdesk/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
// Validation and not-found carry full detail; guard and permission stay
// terse; consistency violations are additionally logged for manual
// reconciliation.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *core.ValidationError
		notFoundErr *core.NotFoundError
		permission  *core.PermissionError
		guard       *core.GuardError
		unavailable *core.ServiceUnavailableError
		consistency *core.ConsistencyError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, r, validation.Error(), "VALIDATION", http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		writeError(w, r, notFoundErr.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &permission):
		writeError(w, r, permission.Error(), "PERMISSION_DENIED", http.StatusForbidden)
	case errors.As(err, &guard):
		writeError(w, r, guard.Error(), "GUARDED", http.StatusConflict)
	case errors.As(err, &unavailable):
		writeError(w, r, unavailable.Error(), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable)
	case errors.As(err, &consistency):
		log.Printf("ERROR: request %s hit consistency violation: %v", requestIDFromContext(r.Context()), err)
		writeError(w, r, consistency.Error(), "CONSISTENCY", http.StatusInternalServerError)
	default:
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
// Returns false when the caller should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
