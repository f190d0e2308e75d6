package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/charukad/traceiq/internal/recognition"
	"github.com/charukad/traceiq/internal/web/middleware"
	"github.com/google/uuid"
)

func TestFacesHandler_List(t *testing.T) {
	identityID := uuid.New()
	box := facematch.Box{X: 1, Y: 2, W: 30, H: 40}
	fake := &fakeFaceManager{faces: []database.EnrolledFace{
		{ID: uuid.New(), IdentityID: identityID, IsPrimary: true, Box: &box, Embedding: []float32{0.1, 0.2}},
		{ID: uuid.New(), IdentityID: identityID, CreatedAt: time.Now()},
	}}
	h := NewFacesHandler(fake)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": identityID.String()})
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got []map[string]any
	decodeBody(t, rec, &got)
	if len(got) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(got))
	}
	if got[0]["is_primary"] != true {
		t.Error("expected first face to be primary")
	}
	if _, ok := got[0]["embedding"]; ok {
		t.Error("embedding must not be exposed")
	}
	if _, ok := got[1]["box"]; ok {
		t.Error("nil box should be omitted")
	}
}

func TestFacesHandler_ListEmpty(t *testing.T) {
	h := NewFacesHandler(&fakeFaceManager{})

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": uuid.NewString()})
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Body.String() != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", rec.Body.String())
	}
}

func TestFacesHandler_InvalidIdentityID(t *testing.T) {
	h := NewFacesHandler(&fakeFaceManager{})

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "42"})
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestFacesHandler_Enroll(t *testing.T) {
	identityID := uuid.New()
	actor := uuid.New()
	fake := &fakeFaceManager{enrollFace: &database.EnrolledFace{
		ID:         uuid.New(),
		IdentityID: identityID,
		ImageURL:   identityID.String() + "/face.jpg",
		IsPrimary:  true,
	}}
	h := NewFacesHandler(fake)

	req := multipartRequest(t, "/", []byte("jpeg bytes"), map[string]string{"is_primary": "true"})
	req = requestWithChiParams(req, map[string]string{"id": identityID.String()})
	req = req.WithContext(middleware.SetActorInContext(req.Context(), actor))
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if fake.enrollReq.IdentityID != identityID {
		t.Errorf("identity = %v, want %v", fake.enrollReq.IdentityID, identityID)
	}
	if !fake.enrollReq.IsPrimary {
		t.Error("expected is_primary to be passed through")
	}
	if string(fake.enrollReq.Image) != "jpeg bytes" {
		t.Errorf("image = %q", fake.enrollReq.Image)
	}
	if fake.enrollReq.Filename != "probe.jpg" {
		t.Errorf("filename = %q, want probe.jpg", fake.enrollReq.Filename)
	}
	if fake.enrollReq.ActorID == nil || *fake.enrollReq.ActorID != actor {
		t.Errorf("actor = %v, want %v", fake.enrollReq.ActorID, actor)
	}
}

func TestFacesHandler_EnrollValidation(t *testing.T) {
	tests := []struct {
		name       string
		file       []byte
		fields     map[string]string
		wantStatus int
	}{
		{"missing file", nil, nil, http.StatusBadRequest},
		{"empty file", []byte{}, nil, http.StatusBadRequest},
		{"bad is_primary", []byte("x"), map[string]string{"is_primary": "maybe"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeFaceManager{}
			h := NewFacesHandler(fake)

			req := multipartRequest(t, "/", tt.file, tt.fields)
			req = requestWithChiParams(req, map[string]string{"id": uuid.NewString()})
			rec := httptest.NewRecorder()
			h.Enroll(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if fake.enrollReq.Image != nil {
				t.Error("service should not be called")
			}
		})
	}
}

func TestFacesHandler_EnrollErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"no face", recognition.ErrNoFaceDetected, http.StatusUnprocessableEntity},
		{"multiple faces", fmt.Errorf("%w (found 2)", recognition.ErrMultipleFacesDetected), http.StatusUnprocessableEntity},
		{"unknown identity", recognition.ErrIdentityNotFound, http.StatusNotFound},
		{"undecodable", recognition.ErrInvalidImage, http.StatusBadRequest},
		{"storage down", fmt.Errorf("%w: store image: disk full", recognition.ErrInfrastructure), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewFacesHandler(&fakeFaceManager{err: tt.err})

			req := multipartRequest(t, "/", []byte("x"), nil)
			req = requestWithChiParams(req, map[string]string{"id": uuid.NewString()})
			rec := httptest.NewRecorder()
			h.Enroll(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestFacesHandler_Delete(t *testing.T) {
	faceID, promoted := uuid.New(), uuid.New()
	fake := &fakeFaceManager{outcome: &recognition.DeletionOutcome{FaceID: faceID, PromotedFaceID: &promoted}}
	h := NewFacesHandler(fake)

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{
		"id":     uuid.NewString(),
		"faceID": faceID.String(),
	})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["promoted_face_id"] != promoted.String() {
		t.Errorf("promoted_face_id = %q, want %s", body["promoted_face_id"], promoted)
	}
	if fake.deleteActor != nil {
		t.Error("anonymous request should have no actor")
	}
}

func TestFacesHandler_DeleteMissing(t *testing.T) {
	h := NewFacesHandler(&fakeFaceManager{err: recognition.ErrFaceNotFound})

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{
		"id":     uuid.NewString(),
		"faceID": uuid.NewString(),
	})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestFacesHandler_SetPrimary(t *testing.T) {
	faceID := uuid.New()
	fake := &fakeFaceManager{}
	h := NewFacesHandler(fake)

	req := requestWithChiParams(httptest.NewRequest(http.MethodPut, "/", nil), map[string]string{
		"id":     uuid.NewString(),
		"faceID": faceID.String(),
	})
	rec := httptest.NewRecorder()
	h.SetPrimary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if fake.primaryID != faceID {
		t.Errorf("face = %v, want %v", fake.primaryID, faceID)
	}
}

func TestFacesHandler_SetPrimaryInvalidFaceID(t *testing.T) {
	h := NewFacesHandler(&fakeFaceManager{})

	req := requestWithChiParams(httptest.NewRequest(http.MethodPut, "/", nil), map[string]string{
		"id":     uuid.NewString(),
		"faceID": "not-a-uuid",
	})
	rec := httptest.NewRecorder()
	h.SetPrimary(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
