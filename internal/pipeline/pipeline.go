// Package pipeline turns an image into per-face embeddings.
//
// Detection and embedding are delegated to a Backend chosen at start-up. The
// pipeline filters out detections too small to be faces, clips the remaining
// boxes to the image, crops and embeds each face. A face whose embedding fails
// is dropped and logged; only a failed detection fails the whole call.
package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/charukad/traceiq/internal/event"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/disintegration/imaging"
)

var log = event.Log

// DefaultMinFaceSize is the smallest width or height in pixels accepted as a face.
const DefaultMinFaceSize = 20

// Detector finds face boxes in an image. Boxes may extend outside the image bounds.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]facematch.Box, error)
}

// Embedder computes a unit-length embedding for a cropped face.
type Embedder interface {
	Embed(ctx context.Context, face image.Image) ([]float32, error)
}

// Backend combines detection and embedding with the tag of the embedding model.
type Backend interface {
	Detector
	Embedder
	Version() string
}

// DetectedFace is one embedded face. Box is as reported by the detector, not clipped.
type DetectedFace struct {
	Box       facematch.Box
	Embedding []float32
}

// Pipeline is stateless and safe for concurrent use.
type Pipeline struct {
	backend     Backend
	minFaceSize int
}

// New creates a pipeline over backend. A non-positive minFaceSize selects DefaultMinFaceSize.
func New(backend Backend, minFaceSize int) *Pipeline {
	if minFaceSize <= 0 {
		minFaceSize = DefaultMinFaceSize
	}
	return &Pipeline{backend: backend, minFaceSize: minFaceSize}
}

// Version returns the embedding version tag of the backend.
func (p *Pipeline) Version() string {
	return p.backend.Version()
}

// Process detects and embeds every usable face in img, in detection order.
// An empty result is not an error.
func (p *Pipeline) Process(ctx context.Context, img image.Image) ([]DetectedFace, error) {
	boxes, err := p.backend.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	bounds := img.Bounds()
	faces := make([]DetectedFace, 0, len(boxes))

	for _, box := range boxes {
		if box.TooSmall(p.minFaceSize) {
			log.WithField("box", box.String()).Debug("pipeline: skipping small detection")
			continue
		}

		region, ok := box.Clip(bounds)
		if !ok {
			log.WithField("box", box.String()).Debug("pipeline: detection outside image")
			continue
		}

		crop := imaging.Crop(img, region)

		embedding, err := p.backend.Embed(ctx, crop)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithField("box", box.String()).Warnf("pipeline: embedding failed, skipping face: %v", err)
			continue
		}

		faces = append(faces, DetectedFace{Box: box, Embedding: embedding})
	}

	return faces, nil
}
