package recognition

import (
	"context"
	"fmt"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/charukad/traceiq/internal/pipeline"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Matching defaults.
const (
	DefaultThreshold       = 0.45
	DefaultAmbiguityMargin = 0.08
)

// MatchStatus is the outcome for one probe face.
type MatchStatus string

const (
	StatusMatch   MatchStatus = "match"
	StatusUnknown MatchStatus = "unknown"
)

// MatchedIdentity is the public profile returned with a match.
type MatchedIdentity struct {
	ID              uuid.UUID            `json:"id"`
	Name            string               `json:"name"`
	NIC             string               `json:"nic,omitempty"`
	ThreatLevel     database.ThreatLevel `json:"threat_level"`
	PrimaryImageURL string               `json:"primary_image_url,omitempty"`
}

// IdentificationResult is the decision for one probe face.
// Distance is the best candidate's distance and is nil when there was no candidate.
type IdentificationResult struct {
	Box                facematch.Box    `json:"box"`
	Status             MatchStatus      `json:"status"`
	Confidence         float64          `json:"confidence"`
	Distance           *float64         `json:"distance,omitempty"`
	CalibrationVersion string           `json:"calibration_version"`
	Identity           *MatchedIdentity `json:"identity,omitempty"`
}

// IdentifyRequest is a probe image with optional per-call tunables.
// Zero Threshold or AmbiguityMargin and nil SingleFaceOnly use the service defaults.
type IdentifyRequest struct {
	Image           []byte
	Threshold       float64
	AmbiguityMargin float64
	SingleFaceOnly  *bool
	ActorID         *uuid.UUID
}

// MatchingOptions are the service-wide defaults.
type MatchingOptions struct {
	Threshold       float64
	AmbiguityMargin float64
	TopK            int
	// AllFaces scores every detected face; by default only the largest one is used.
	AllFaces    bool
	Calibration Calibration
}

// DefaultMatchingOptions returns the tuned defaults.
func DefaultMatchingOptions() MatchingOptions {
	return MatchingOptions{
		Threshold:       DefaultThreshold,
		AmbiguityMargin: DefaultAmbiguityMargin,
		TopK:            database.DefaultNeighbors,
		Calibration:     DefaultCalibration(),
	}
}

// MatchingService identifies probe faces against the enrolled faces.
type MatchingService struct {
	pipeline   FaceProcessor
	faces      database.FaceReader
	identities database.IdentityReader
	audit      database.AuditWriter
	opts       MatchingOptions
}

// NewMatchingService creates a matching service. Zero-valued options take their defaults.
// audit may be nil.
func NewMatchingService(
	p FaceProcessor,
	faces database.FaceReader,
	identities database.IdentityReader,
	audit database.AuditWriter,
	opts MatchingOptions,
) *MatchingService {
	def := DefaultMatchingOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.AmbiguityMargin <= 0 {
		opts.AmbiguityMargin = def.AmbiguityMargin
	}
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.Calibration.Version == "" {
		opts.Calibration = def.Calibration
	}
	return &MatchingService{
		pipeline:   p,
		faces:      faces,
		identities: identities,
		audit:      audit,
		opts:       opts,
	}
}

// Options returns the effective service defaults.
func (s *MatchingService) Options() MatchingOptions {
	return s.opts
}

// Identify returns one result per retained probe face, in detection order.
// Exactly one IDENTIFY audit event is recorded per call, including failed calls.
func (s *MatchingService) Identify(ctx context.Context, req IdentifyRequest) (results []IdentificationResult, err error) {
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.opts.Threshold
	}
	margin := req.AmbiguityMargin
	if margin <= 0 {
		margin = s.opts.AmbiguityMargin
	}
	singleFace := !s.opts.AllFaces
	if req.SingleFaceOnly != nil {
		singleFace = *req.SingleFaceOnly
	}

	defer func() {
		s.recordIdentify(ctx, req.ActorID, results, err)
	}()

	img, err := pipeline.Decode(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	detected, err := s.pipeline.Process(ctx, img)
	if err != nil {
		return nil, infraError("process image", err)
	}

	if singleFace && len(detected) > 1 {
		boxes := make([]facematch.Box, len(detected))
		for i, f := range detected {
			boxes[i] = f.Box
		}
		i := facematch.Largest(boxes)
		detected = detected[i : i+1]
	}

	out := make([]IdentificationResult, len(detected))
	g, gctx := errgroup.WithContext(ctx)
	for i, face := range detected {
		g.Go(func() error {
			r, err := s.score(gctx, face, threshold, margin)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// competingDistance returns the distance of the first candidate, in ascending order,
// that belongs to an identity other than bestIdentity.
func competingDistance(candidates []database.MatchCandidate, bestIdentity uuid.UUID) (float64, bool) {
	for _, c := range candidates[1:] {
		if c.Face.IdentityID != bestIdentity {
			return c.Distance, true
		}
	}
	return 0, false
}

// score decides match or unknown for a single probe face.
func (s *MatchingService) score(
	ctx context.Context, face pipeline.DetectedFace, threshold, margin float64,
) (IdentificationResult, error) {
	cal := s.opts.Calibration
	result := IdentificationResult{
		Box:                face.Box,
		Status:             StatusUnknown,
		CalibrationVersion: cal.Version,
	}

	candidates, err := s.faces.NearestNeighbors(ctx, face.Embedding, s.opts.TopK)
	if err != nil {
		return result, infraError("nearest neighbours", err)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	best := candidates[0]
	bestDistance := best.Distance
	result.Distance = &bestDistance

	fields := logrus.Fields{
		"box":           face.Box.String(),
		"best_distance": bestDistance,
		"identity":      best.Face.IdentityID,
	}

	if bestDistance > threshold {
		log.WithFields(fields).WithField("threshold", threshold).Debug("matching: best candidate above threshold")
		return result, nil
	}

	if second, ok := competingDistance(candidates, best.Face.IdentityID); ok && second-bestDistance < margin {
		log.WithFields(fields).WithFields(logrus.Fields{
			"second_distance": second,
			"margin":          margin,
		}).Info("matching: rejected ambiguous match")
		return result, nil
	}

	identity, err := s.identities.Get(ctx, best.Face.IdentityID)
	if err != nil {
		return result, infraError("get identity", err)
	}
	if identity == nil {
		log.WithFields(fields).Warn("matching: matched identity no longer exists")
		return result, nil
	}

	primaries, err := s.faces.PrimaryFacesFor(ctx, []uuid.UUID{identity.ID})
	if err != nil {
		return result, infraError("primary faces", err)
	}

	matched := &MatchedIdentity{
		ID:          identity.ID,
		Name:        identity.Name(),
		NIC:         identity.NIC,
		ThreatLevel: identity.ThreatLevel,
	}
	if len(primaries) > 0 {
		matched.PrimaryImageURL = primaries[0].ImageURL
	}

	result.Status = StatusMatch
	result.Confidence = cal.Confidence(bestDistance)
	result.Identity = matched

	log.WithFields(fields).WithField("confidence", result.Confidence).Info("matching: identified")
	return result, nil
}

func (s *MatchingService) recordIdentify(
	ctx context.Context, actorID *uuid.UUID, results []IdentificationResult, err error,
) {
	matches := 0
	for _, r := range results {
		if r.Status == StatusMatch {
			matches++
		}
	}

	details := fmt.Sprintf("Identification: %d match(es) in %d result(s), calibration %s",
		matches, len(results), s.opts.Calibration.Version)
	if err != nil {
		details += fmt.Sprintf(", failed: %v", err)
	}

	recordAudit(ctx, s.audit, database.AuditEvent{
		Action:  database.AuditIdentify,
		Details: details,
		UserID:  actorID,
	})
}
