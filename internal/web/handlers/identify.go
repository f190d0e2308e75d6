package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/charukad/traceiq/internal/recognition"
	"github.com/charukad/traceiq/internal/web/middleware"
)

// Identifier is the matching surface used by IdentifyHandler.
type Identifier interface {
	Identify(ctx context.Context, req recognition.IdentifyRequest) ([]recognition.IdentificationResult, error)
}

// IdentifyHandler handles probe image identification
type IdentifyHandler struct {
	matcher Identifier
}

// NewIdentifyHandler creates a new identify handler
func NewIdentifyHandler(matcher Identifier) *IdentifyHandler {
	return &IdentifyHandler{matcher: matcher}
}

// IdentifyResponse wraps the per-face results
type IdentifyResponse struct {
	Results []recognition.IdentificationResult `json:"results"`
	Count   int                                `json:"count"`
}

// parseDistance reads an optional distance parameter in (0, 2].
func parseDistance(r *http.Request, name string) (float64, bool) {
	v := r.FormValue(name)
	if v == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || f > 2 {
		return 0, false
	}
	return f, true
}

// Identify matches the faces of a multipart upload ("file") against the enrolled faces.
// Optional form fields: threshold, ambiguity_margin, single_face.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r)
	if !ok {
		return
	}

	threshold, ok := parseDistance(r, "threshold")
	if !ok {
		respondError(w, http.StatusBadRequest, "threshold must be a number in (0, 2]")
		return
	}
	margin, ok := parseDistance(r, "ambiguity_margin")
	if !ok {
		respondError(w, http.StatusBadRequest, "ambiguity_margin must be a number in (0, 2]")
		return
	}

	req := recognition.IdentifyRequest{
		Image:           data,
		Threshold:       threshold,
		AmbiguityMargin: margin,
		ActorID:         middleware.GetActorFromContext(r.Context()),
	}
	if v := r.FormValue("single_face"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "single_face must be a boolean")
			return
		}
		req.SingleFaceOnly = &b
	}

	results, err := h.matcher.Identify(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if results == nil {
		results = []recognition.IdentificationResult{}
	}

	respondJSON(w, http.StatusOK, IdentifyResponse{Results: results, Count: len(results)})
}
