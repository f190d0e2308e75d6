// Package handlers provides HTTP handlers for the web API.
// Handlers are thin: they parse the request, call the recognition services and map
// business errors to status codes.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charukad/traceiq/internal/constants"
	"github.com/charukad/traceiq/internal/event"
	"github.com/charukad/traceiq/internal/recognition"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var log = event.Log

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a recognition error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, recognition.ErrIdentityNotFound), errors.Is(err, recognition.ErrFaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, recognition.ErrNoFaceDetected), errors.Is(err, recognition.ErrMultipleFacesDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, recognition.ErrInvalidImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with the matching status. Infrastructure details are
// logged and replaced by a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorf("api: %s %s failed: %v", r.Method, sanitizeForLog(r.URL.Path), err)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

// uuidParam parses a chi URL parameter as a UUID, responding 400 when it is malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// readUpload reads the "file" part of a multipart form. It returns the bytes and the
// client-supplied filename.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(constants.MaxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, "", false
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return nil, "", false
	}
	if len(data) > constants.MaxUploadSize {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return nil, "", false
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "file is empty")
		return nil, "", false
	}
	return data, header.Filename, true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
