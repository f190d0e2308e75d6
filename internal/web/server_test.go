package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/database/mock"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/charukad/traceiq/internal/pipeline"
	"github.com/charukad/traceiq/internal/recognition"
	"github.com/charukad/traceiq/internal/storage"
	"github.com/charukad/traceiq/internal/web/handlers"
	"github.com/charukad/traceiq/internal/web/middleware"
	"github.com/google/uuid"
)

// stubProcessor reports one face with a fixed embedding for every image
type stubProcessor struct{}

func (stubProcessor) Process(ctx context.Context, img image.Image) ([]pipeline.DetectedFace, error) {
	return []pipeline.DetectedFace{{
		Box:       facematch.Box{X: 8, Y: 8, W: 48, H: 48},
		Embedding: []float32{1, 0, 0, 0},
	}}, nil
}

func (stubProcessor) Version() string { return "tracenet_v1" }

type testEnv struct {
	server   *Server
	identity database.Identity
	audit    *mock.MockAuditRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	faces := mock.NewMockFaceRepository()
	identities := mock.NewMockIdentityReader()
	audit := mock.NewMockAuditRepository()

	identity := database.Identity{ID: uuid.New(), FirstName: "Kasun", LastName: "Silva", ThreatLevel: database.ThreatCritical}
	identities.AddIdentity(identity)

	var p stubProcessor
	svc := Services{
		Faces:      recognition.NewEnrollmentService(p, faces, identities, store, audit),
		Identifier: recognition.NewMatchingService(p, faces, identities, audit, recognition.DefaultMatchingOptions()),
		Stats:      handlers.NewStatsHandler(audit, faces),
		Images:     store,
		Checks: map[string]handlers.CheckFunc{
			"database": func(ctx context.Context) error { return nil },
		},
	}
	return &testEnv{server: NewServer(svc, "127.0.0.1", 0), identity: identity, audit: audit}
}

func pngUpload(t *testing.T, path string, actor *uuid.UUID) *http.Request {
	t.Helper()
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 64, 64))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "face.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(img.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if actor != nil {
		req.Header.Set(middleware.ActorHeader, actor.String())
	}
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestEnrollIdentifyFlow(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.New()
	facesPath := "/api/v1/identities/" + env.identity.ID.String() + "/faces"

	rec := env.do(pngUpload(t, facesPath, &actor))
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll: expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var enrolled handlers.FaceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &enrolled); err != nil {
		t.Fatalf("decode enroll response: %v", err)
	}
	if !enrolled.IsPrimary {
		t.Error("first face should be primary")
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, facesPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected status 200, got %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/images/"+enrolled.ImageURL, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("image: expected status 200, got %d", rec.Code)
	}

	rec = env.do(pngUpload(t, "/api/v1/identify", &actor))
	if rec.Code != http.StatusOK {
		t.Fatalf("identify: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var identified handlers.IdentifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &identified); err != nil {
		t.Fatalf("decode identify response: %v", err)
	}
	if identified.Count != 1 || identified.Results[0].Status != recognition.StatusMatch {
		t.Fatalf("expected one match, got %+v", identified)
	}
	if got := identified.Results[0].Identity; got == nil || got.ID != env.identity.ID || got.PrimaryImageURL != enrolled.ImageURL {
		t.Errorf("unexpected identity %+v", got)
	}

	events := env.audit.EventsByAction(database.AuditIdentify)
	if len(events) != 1 || events[0].UserID == nil || *events[0].UserID != actor {
		t.Errorf("expected one IDENTIFY event by %s, got %+v", actor, events)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/stats/identifications", nil))
	var stats handlers.StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats response: %v", err)
	}
	if stats.Identifications != 1 || stats.EnrolledFaces != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, facesPath+"/"+enrolled.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(httptest.NewRequest(http.MethodPut, facesPath+"/"+enrolled.ID.String()+"/primary", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("set primary on deleted face: expected status 404, got %d", rec.Code)
	}
}

func TestRoutes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
	}{
		{"health", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"ready", http.MethodGet, "/api/v1/ready", "", http.StatusOK},
		{"unknown identity", http.MethodGet, "/api/v1/identities/" + uuid.NewString() + "/faces", "", http.StatusNotFound},
		{"malformed actor", http.MethodGet, "/api/v1/identities/" + uuid.NewString() + "/faces", "badge-12", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/v1/photos", "", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/v1/identify", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(middleware.ActorHeader, tt.header)
			}
			rec := env.do(req)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
