// Package response provides shared response helpers for HTTP handlers.
package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the standard failure envelope for JSON endpoints.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// UploadEnvelope is returned by a successful upload.
type UploadEnvelope struct {
	Success  bool   `json:"success" example:"true"`
	Filename string `json:"filename" example:"current-image"`
	URL      string `json:"url" example:"http://localhost:8080/image"`
	Message  string `json:"message" example:"Photo uploaded successfully!"`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with the given payload.
func OK(w http.ResponseWriter, payload interface{}) {
	JSON(w, http.StatusOK, payload)
}

// Error writes a JSON error envelope with the given status and message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Error: message})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// TooLarge writes a 413 response.
func TooLarge(w http.ResponseWriter, message string) {
	Error(w, http.StatusRequestEntityTooLarge, message)
}

// InternalError writes a 500 response carrying the underlying message.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}

// Text writes a plain-text response with the given status.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// NotFound writes a plain-text 404 response.
func NotFound(w http.ResponseWriter, message string) {
	Text(w, http.StatusNotFound, message)
}

// Forbidden writes a plain-text 403 response.
func Forbidden(w http.ResponseWriter, message string) {
	Text(w, http.StatusForbidden, message)
}
