// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/fairweather/fairweather/internal/api/middleware"
	"github.com/fairweather/fairweather/internal/api/models"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes an error body with message and status.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	models.NewError(middleware.GetRequestID(r.Context()), message).Write(w, status)
}

// BadRequest writes a 400 error, listing field failures when present.
func BadRequest(w http.ResponseWriter, r *http.Request, message string, fields []models.FieldError) {
	body := models.NewError(middleware.GetRequestID(r.Context()), message)
	body.Fields = fields
	body.Write(w, http.StatusBadRequest)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, message)
}

// InternalError writes a 500 error.
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusInternalServerError, message)
}

// ServiceUnavailable writes a 503 error.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusServiceUnavailable, message)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	w.WriteHeader(http.StatusNoContent)
}
