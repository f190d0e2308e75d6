package embedding

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/disintegration/imaging"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "", 5*time.Second)
}

func testImage() image.Image {
	return imaging.New(64, 64, color.White)
}

// requireJPEGUpload checks the request carries a decodable JPEG in the "file" field.
func requireJPEGUpload(t *testing.T, r *http.Request) {
	t.Helper()
	file, header, err := r.FormFile("file")
	if err != nil {
		t.Errorf("missing file field: %v", err)
		return
	}
	defer file.Close()
	if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	if _, err := imaging.Decode(file); err != nil {
		t.Errorf("uploaded image is not decodable: %v", err)
	}
}

func TestDetect(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		requireJPEGUpload(t, r)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"faces_count": 2,
			"faces": []map[string]any{
				{"bbox": []float64{10, 20, 50, 80}, "det_score": 0.99},
				{"bbox": []float64{-5, 0, 15, 30}, "det_score": 0.7},
			},
		})
	})

	boxes, err := client.Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	want := []facematch.Box{{X: 10, Y: 20, W: 40, H: 60}, {X: -5, Y: 0, W: 20, H: 30}}
	if len(boxes) != len(want) {
		t.Fatalf("expected %d boxes, got %d", len(want), len(boxes))
	}
	for i := range want {
		if boxes[i] != want[i] {
			t.Errorf("box %d = %v, want %v", i, boxes[i], want[i])
		}
	}
}

func TestDetectMalformedBBox(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces_count":1,"faces":[{"bbox":[1,2,3]}]}`))
	})

	if _, err := client.Detect(context.Background(), testImage()); err == nil {
		t.Error("expected error for malformed bbox")
	}
}

func TestDetectServerError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	if _, err := client.Detect(context.Background(), testImage()); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestEmbedNormalizes(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		requireJPEGUpload(t, r)
		emb := make([]float32, database.FaceEmbeddingDim)
		emb[0], emb[1] = 3, 4
		_ = json.NewEncoder(w).Encode(map[string]any{"dim": len(emb), "embedding": emb, "model": "tracenet"})
	})

	emb, err := client.Embed(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(emb) != database.FaceEmbeddingDim {
		t.Fatalf("len = %d, want %d", len(emb), database.FaceEmbeddingDim)
	}
	if math.Abs(float64(emb[0])-0.6) > 1e-6 || math.Abs(float64(emb[1])-0.8) > 1e-6 {
		t.Errorf("embedding not normalized: %v %v", emb[0], emb[1])
	}
}

func TestEmbedWrongDimension(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dim":3,"embedding":[1,0,0]}`))
	})

	if _, err := client.Embed(context.Background(), testImage()); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestEmbedEmpty(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dim":0,"embedding":[]}`))
	})

	if _, err := client.Embed(context.Background(), testImage()); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
	healthy.Store(false)
	if err := client.Health(context.Background()); err == nil {
		t.Error("expected unhealthy error")
	}
}

func TestDefaults(t *testing.T) {
	c := NewClient("", "", 0)
	if c.baseURL != defaultURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, defaultURL)
	}
	if c.Version() != "tracenet_v1" {
		t.Errorf("Version() = %q, want tracenet_v1", c.Version())
	}
}
