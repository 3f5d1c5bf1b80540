package models

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	// Error is a human-readable message, shown to end users as is.
	Error string `json:"error"`

	// RequestID correlates the response with server logs.
	RequestID string `json:"requestId,omitempty"`

	// Fields lists validation failures, when any.
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewError creates an error body.
func NewError(requestID, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:     message,
		RequestID: requestID,
	}
}

// Write writes the error as JSON with status.
func (e *ErrorResponse) Write(w http.ResponseWriter, status int) {
	if e.RequestID != "" {
		w.Header().Set("X-Request-Id", e.RequestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}
