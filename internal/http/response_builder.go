package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"payplan/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal","message":"failed to encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
}

// APIError is the error body every failing route returns.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorEnvelope{Error: APIError{Code: code, Message: message}})
}

// statusForError maps the engine's error taxonomy to an HTTP status and a
// stable error code. Malformed day tokens are caller mistakes even though
// they also refuse computation.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidDayToken):
		return http.StatusBadRequest, "invalid_day_token"
	case errors.Is(err, core.ErrUnresolvedInstrument):
		return http.StatusUnprocessableEntity, "unresolved_instrument"
	case errors.Is(err, core.ErrUnresolvedAccount):
		return http.StatusUnprocessableEntity, "unresolved_account"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrInvalidFixPatch):
		return http.StatusBadRequest, "invalid_fix_patch"
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidShift),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrEmptyInstrument),
		errors.Is(err, core.ErrEmptyDescription):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, errServiceUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError logs err and writes the mapped error response. Internal errors
// never leak their message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	msg := err.Error()
	logger := s.loggerFor(r)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		msg = "internal error"
	} else {
		logger.WarnContext(r.Context(), "Request rejected", "error", err, "code", code, "path", r.URL.Path)
	}
	ErrorResponse(status, code, msg).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
