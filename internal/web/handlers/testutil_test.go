package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/recognition"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a multipart POST with an optional "file" part and extra fields
func multipartRequest(t *testing.T, path string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		part, err := mw.CreateFormFile("file", "probe.jpg")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(file)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

// fakeFaceManager records the last request and returns canned results
type fakeFaceManager struct {
	enrollReq   recognition.EnrollRequest
	enrollFace  *database.EnrolledFace
	deleteActor *uuid.UUID
	outcome     *recognition.DeletionOutcome
	faces       []database.EnrolledFace
	primaryID   uuid.UUID
	err         error
}

func (f *fakeFaceManager) Enroll(ctx context.Context, req recognition.EnrollRequest) (*database.EnrolledFace, error) {
	f.enrollReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.enrollFace, nil
}

func (f *fakeFaceManager) Delete(
	ctx context.Context, identityID, faceID uuid.UUID, actorID *uuid.UUID,
) (*recognition.DeletionOutcome, error) {
	f.deleteActor = actorID
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeFaceManager) SetPrimary(ctx context.Context, identityID, faceID uuid.UUID, actorID *uuid.UUID) error {
	f.primaryID = faceID
	return f.err
}

func (f *fakeFaceManager) ListFaces(ctx context.Context, identityID uuid.UUID) ([]database.EnrolledFace, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.faces, nil
}

// fakeIdentifier records the last request and returns canned results
type fakeIdentifier struct {
	req     recognition.IdentifyRequest
	results []recognition.IdentificationResult
	err     error
}

func (f *fakeIdentifier) Identify(
	ctx context.Context, req recognition.IdentifyRequest,
) ([]recognition.IdentificationResult, error) {
	f.req = req
	return f.results, f.err
}
