package devserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// Error codes carried in the "code" field of error responses
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeConflict     = "CONFLICT"
	CodeNotFound     = "NOT_FOUND"
	CodeServerError  = "SERVER_ERROR"
)

// apiError is an error with the HTTP status and body it is reported with
type apiError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *apiError) Error() string {
	return e.Message
}

func validationError(fields map[string]string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: CodeValidation, Message: "Invalid request", Fields: fields}
}

func badRequest(message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: CodeValidation, Message: message}
}

func unauthorized(message string) *apiError {
	return &apiError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

func conflict(message string) *apiError {
	return &apiError{Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

func notFound(message string) *apiError {
	return &apiError{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// writeError sends err as {code, message, fields}. Errors that are not
// *apiError are logged and reported as 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		apiErr = &apiError{Status: http.StatusInternalServerError, Code: CodeServerError, Message: "Internal server error"}
	}
	if apiErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	writeJSON(w, apiErr.Status, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "err", err)
	}
}

// decodeJSON reads a JSON request body into v
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestSize)).Decode(v); err != nil {
		return badRequest("Invalid request body")
	}
	return nil
}
