// Package embedding is the HTTP client for the face inference service.
// It implements pipeline.Backend: /detect returns face boxes for a full image,
// /embed/face returns the embedding of a single cropped face.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/disintegration/imaging"
)

const (
	defaultURL     = "http://localhost:8000"
	defaultVersion = "tracenet_v1"
	jpegQuality    = 95
)

// Client talks to the inference service.
type Client struct {
	baseURL string
	version string
	dim     int
	client  *http.Client
}

// NewClient creates a new inference client. timeout bounds each request; zero means none.
func NewClient(baseURL, version string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if version == "" {
		version = defaultVersion
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: version,
		dim:     database.FaceEmbeddingDim,
		client:  &http.Client{Timeout: timeout},
	}
}

// detection is one face as reported by /detect
type detection struct {
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore float64   `json:"det_score"`
}

type detectResponse struct {
	FacesCount int         `json:"faces_count"`
	Faces      []detection `json:"faces"`
}

type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// postImage JPEG-encodes img into a multipart form and posts it to the given endpoint.
func (c *Client) postImage(ctx context.Context, endpoint string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Detect returns the face boxes found in img.
func (c *Client) Detect(ctx context.Context, img image.Image) ([]facematch.Box, error) {
	body, err := c.postImage(ctx, "/detect", img)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	boxes := make([]facematch.Box, 0, len(resp.Faces))
	for i, f := range resp.Faces {
		box, ok := facematch.FromCorners(f.BBox)
		if !ok {
			return nil, fmt.Errorf("face %d: malformed bbox %v", i, f.BBox)
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// Embed returns the unit-length embedding of a cropped face.
func (c *Client) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	body, err := c.postImage(ctx, "/embed/face", face)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	if len(resp.Embedding) != c.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(resp.Embedding), c.dim)
	}

	return database.Normalize(resp.Embedding), nil
}

// Version returns the embedding version tag stored with every face.
func (c *Client) Version() string {
	return c.version
}

// Health checks that the inference service is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
