package web

import (
	"encoding/json"
	"log"
	"net/http"

	"credired/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
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

// writeServiceError translates a core.Error into the matching HTTP
// status. Unclassified errors are logged and masked as 500 so driver
// details never reach clients.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	de := core.AsError(err)
	if de == nil {
		log.Printf("unhandled service error: %v", err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch de.Kind {
	case core.KindValidation, core.KindBusinessRule:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindConflict:
		status = http.StatusConflict
	case core.KindUnauthorized:
		status = http.StatusUnauthorized
	case core.KindForbidden:
		status = http.StatusForbidden
	case core.KindInternal:
		log.Printf("internal service error: %v", err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeError(w, r, de.Message, de.Code, status)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
