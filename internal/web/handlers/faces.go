package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/charukad/traceiq/internal/recognition"
	"github.com/charukad/traceiq/internal/web/middleware"
	"github.com/google/uuid"
)

// FaceManager is the enrollment surface used by FacesHandler.
type FaceManager interface {
	Enroll(ctx context.Context, req recognition.EnrollRequest) (*database.EnrolledFace, error)
	Delete(ctx context.Context, identityID, faceID uuid.UUID, actorID *uuid.UUID) (*recognition.DeletionOutcome, error)
	SetPrimary(ctx context.Context, identityID, faceID uuid.UUID, actorID *uuid.UUID) error
	ListFaces(ctx context.Context, identityID uuid.UUID) ([]database.EnrolledFace, error)
}

// FacesHandler handles enrollment endpoints of an identity
type FacesHandler struct {
	faces FaceManager
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(faces FaceManager) *FacesHandler {
	return &FacesHandler{faces: faces}
}

// FaceResponse is an enrolled face without its embedding
type FaceResponse struct {
	ID               uuid.UUID      `json:"id"`
	IdentityID       uuid.UUID      `json:"identity_id"`
	ImageURL         string         `json:"image_url"`
	IsPrimary        bool           `json:"is_primary"`
	EmbeddingVersion string         `json:"embedding_version"`
	Box              *facematch.Box `json:"box,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func faceResponse(f *database.EnrolledFace) FaceResponse {
	return FaceResponse{
		ID:               f.ID,
		IdentityID:       f.IdentityID,
		ImageURL:         f.ImageURL,
		IsPrimary:        f.IsPrimary,
		EmbeddingVersion: f.EmbeddingVersion,
		Box:              f.Box,
		CreatedAt:        f.CreatedAt,
	}
}

// List returns the faces of an identity, primary first
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	identityID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	faces, err := h.faces.ListFaces(r.Context(), identityID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]FaceResponse, len(faces))
	for i := range faces {
		out[i] = faceResponse(&faces[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// Enroll adds a reference face from a multipart upload ("file", optional "is_primary")
func (h *FacesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	identityID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	data, filename, ok := readUpload(w, r)
	if !ok {
		return
	}

	primary := false
	if v := r.FormValue("is_primary"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "is_primary must be a boolean")
			return
		}
		primary = b
	}

	face, err := h.faces.Enroll(r.Context(), recognition.EnrollRequest{
		IdentityID: identityID,
		Image:      data,
		Filename:   filename,
		IsPrimary:  primary,
		ActorID:    middleware.GetActorFromContext(r.Context()),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, faceResponse(face))
}

// Delete removes a face and reports which face was promoted, if any
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identityID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	faceID, ok := uuidParam(w, r, "faceID")
	if !ok {
		return
	}

	outcome, err := h.faces.Delete(r.Context(), identityID, faceID, middleware.GetActorFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// SetPrimary makes a face the identity's primary face
func (h *FacesHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	identityID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	faceID, ok := uuidParam(w, r, "faceID")
	if !ok {
		return
	}

	if err := h.faces.SetPrimary(r.Context(), identityID, faceID, middleware.GetActorFromContext(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"face_id":    faceID,
		"is_primary": true,
	})
}
