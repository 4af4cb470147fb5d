package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budgetledger/internal/core"
	"budgetledger/internal/log"
)

// ResponseBuilder assembles a JSON response with a fluent API.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body with a 204 status writes no content.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil && b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Hint  string `json:"hint,omitempty"`
}

// ErrorResponse creates an error response with an explicit status.
func ErrorResponse(statusCode int, kind, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: message, Kind: kind})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func MethodNotAllowedError(allowed string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed").
		Header("Allow", allowed)
}

// FromError maps an engine error onto a response: parse errors are 400 with a
// retry hint, validation 422, config 400, not found 404, anything else 500
// without leaking the underlying message.
func FromError(err error) *ResponseBuilder {
	switch core.Kind(err) {
	case core.ErrParse:
		return NewResponse().Status(http.StatusBadRequest).JSON(ErrorBody{
			Error: err.Error(),
			Kind:  "parse",
			Hint:  "check the file is a CSV, XLSX or XLS statement with a date and amount column, then retry",
		})
	case core.ErrValidation:
		return ErrorResponse(http.StatusUnprocessableEntity, "validation", err.Error())
	case core.ErrConfig:
		return ErrorResponse(http.StatusBadRequest, "config", err.Error())
	case core.ErrNotFound:
		return ErrorResponse(http.StatusNotFound, "not_found", err.Error())
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrorResponse(http.StatusRequestEntityTooLarge, "too_large", err.Error())
	}
	return ErrorResponse(http.StatusInternalServerError, "internal", "internal error")
}

// errorType names err's kind for structured logs.
func errorType(err error) string {
	switch core.Kind(err) {
	case core.ErrParse:
		return log.ErrorTypeParse
	case core.ErrValidation:
		return log.ErrorTypeValidation
	case core.ErrConfig:
		return log.ErrorTypeConfig
	case core.ErrNotFound:
		return log.ErrorTypeNotFound
	}
	return log.ErrorTypeInternal
}
