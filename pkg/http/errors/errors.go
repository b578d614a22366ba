package errors

import (
	"encoding/json"
	"net/http"
)

// requestIDHeader is echoed into error bodies when a middleware already set it
// on the response.
const requestIDHeader = "X-Request-ID"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Field     string                 `json:"field,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
}

// RespondJSON writes payload as a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respond(w http.ResponseWriter, status int, body ErrorResponse) {
	body.RequestID = w.Header().Get(requestIDHeader)
	RespondJSON(w, status, body)
}

// RespondError writes an error body with a machine-readable code.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	respond(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondValidationError is a 400 naming the offending field.
func RespondValidationError(w http.ResponseWriter, code, message, field string) {
	respond(w, http.StatusBadRequest, ErrorResponse{Error: code, Message: message, Field: field})
}

// RespondErrorWithDetails adds structured context to an error body.
func RespondErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	respond(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

func RespondInternalError(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

func RespondNotFound(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusNotFound, code, message)
}

func RespondUnauthorized(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusUnauthorized, code, message)
}

func RespondBadRequest(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusBadRequest, code, message)
}

func RespondServiceUnavailable(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusServiceUnavailable, code, message)
}
