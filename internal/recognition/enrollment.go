package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/pipeline"
	"github.com/charukad/traceiq/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnrollRequest is a reference image to add to an identity.
type EnrollRequest struct {
	IdentityID uuid.UUID
	Image      []byte
	Filename   string // used as the extension hint for the stored asset
	IsPrimary  bool
	ActorID    *uuid.UUID
}

// DeletionOutcome reports which face, if any, became primary after a delete.
type DeletionOutcome struct {
	FaceID         uuid.UUID  `json:"face_id"`
	PromotedFaceID *uuid.UUID `json:"promoted_face_id,omitempty"`
}

// EnrollmentService adds, removes and re-ranks the reference faces of identities.
type EnrollmentService struct {
	pipeline   FaceProcessor
	faces      database.FaceWriter
	identities database.IdentityReader
	store      storage.Store
	audit      database.AuditWriter
	now        func() time.Time
}

// NewEnrollmentService creates an enrollment service. audit may be nil.
func NewEnrollmentService(
	p FaceProcessor,
	faces database.FaceWriter,
	identities database.IdentityReader,
	store storage.Store,
	audit database.AuditWriter,
) *EnrollmentService {
	return &EnrollmentService{
		pipeline:   p,
		faces:      faces,
		identities: identities,
		store:      store,
		audit:      audit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *EnrollmentService) requireIdentity(ctx context.Context, id uuid.UUID) (*database.Identity, error) {
	identity, err := s.identities.Get(ctx, id)
	if err != nil {
		return nil, infraError("get identity", err)
	}
	if identity == nil {
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, id)
	}
	return identity, nil
}

// faceOf loads a face inside tx and checks it belongs to identityID.
func faceOf(ctx context.Context, tx database.FaceTx, identityID, faceID uuid.UUID) (*database.EnrolledFace, error) {
	face, err := tx.Get(ctx, faceID)
	if err != nil {
		return nil, err
	}
	if face == nil || face.IdentityID != identityID {
		return nil, fmt.Errorf("%w: %s", ErrFaceNotFound, faceID)
	}
	return face, nil
}

// txError keeps business errors raised inside a transaction and wraps everything else.
func txError(op string, err error) error {
	if IsClientError(err) {
		return err
	}
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrFaceNotFound, err)
	}
	return infraError(op, err)
}

// Enroll stores a new reference face for an identity. The image must contain exactly one face.
// The first face of an identity always becomes primary.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*database.EnrolledFace, error) {
	if _, err := s.requireIdentity(ctx, req.IdentityID); err != nil {
		return nil, err
	}

	img, err := pipeline.Decode(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	detected, err := s.pipeline.Process(ctx, img)
	if err != nil {
		return nil, infraError("process image", err)
	}
	switch {
	case len(detected) == 0:
		return nil, ErrNoFaceDetected
	case len(detected) > 1:
		return nil, fmt.Errorf("%w (found %d)", ErrMultipleFacesDetected, len(detected))
	}

	box := detected[0].Box
	face := database.EnrolledFace{
		ID:               uuid.New(),
		IdentityID:       req.IdentityID,
		IsPrimary:        req.IsPrimary,
		EmbeddingVersion: s.pipeline.Version(),
		Box:              &box,
		Embedding:        detected[0].Embedding,
		CreatedAt:        s.now(),
	}

	locator, err := s.store.Save(req.IdentityID, face.ID, req.Image, req.Filename)
	if err != nil {
		return nil, infraError("store image", err)
	}
	face.ImageURL = locator

	err = s.faces.WithIdentityLock(ctx, req.IdentityID, func(tx database.FaceTx) error {
		existing, err := tx.ListByIdentity(ctx, req.IdentityID)
		if err != nil {
			return err
		}

		hasPrimary := false
		for _, f := range existing {
			if f.IsPrimary {
				hasPrimary = true
				break
			}
		}

		switch {
		case !hasPrimary:
			face.IsPrimary = true
		case face.IsPrimary:
			if err := tx.UnsetPrimaryForIdentity(ctx, req.IdentityID); err != nil {
				return err
			}
		}

		return tx.Create(ctx, &face)
	})
	if err != nil {
		if delErr := s.store.Delete(locator); delErr != nil {
			log.Warnf("enroll: failed to remove image %s after failed save: %v", locator, delErr)
		}
		return nil, txError("save face", err)
	}

	log.WithFields(logrus.Fields{
		"identity": req.IdentityID,
		"face":     face.ID,
		"primary":  face.IsPrimary,
	}).Info("enroll: face enrolled")

	recordAudit(ctx, s.audit, database.AuditEvent{
		Action:     database.AuditFaceEnroll,
		Details:    fmt.Sprintf("Enrolled face %s (primary=%t, box=%s)", face.ID, face.IsPrimary, box),
		UserID:     req.ActorID,
		IdentityID: uuidPtr(req.IdentityID),
	})

	return &face, nil
}

// newestFace picks the most recently created face; equal timestamps fall back to the larger id.
func newestFace(faces []database.EnrolledFace) *database.EnrolledFace {
	var best *database.EnrolledFace
	for i := range faces {
		f := &faces[i]
		if best == nil ||
			f.CreatedAt.After(best.CreatedAt) ||
			(f.CreatedAt.Equal(best.CreatedAt) && f.ID.String() > best.ID.String()) {
			best = f
		}
	}
	return best
}

// Delete removes a face. When it was primary the newest remaining face is promoted.
// The image asset is removed after the record; failing to remove it is only logged.
func (s *EnrollmentService) Delete(
	ctx context.Context, identityID, faceID uuid.UUID, actorID *uuid.UUID,
) (*DeletionOutcome, error) {
	if _, err := s.requireIdentity(ctx, identityID); err != nil {
		return nil, err
	}

	outcome := &DeletionOutcome{FaceID: faceID}
	var locator string

	err := s.faces.WithIdentityLock(ctx, identityID, func(tx database.FaceTx) error {
		outcome.PromotedFaceID = nil

		face, err := faceOf(ctx, tx, identityID, faceID)
		if err != nil {
			return err
		}
		locator = face.ImageURL

		if err := tx.Delete(ctx, faceID); err != nil {
			return err
		}
		if !face.IsPrimary {
			return nil
		}

		remaining, err := tx.ListByIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		next := newestFace(remaining)
		if next == nil {
			return nil
		}
		if err := tx.SetPrimary(ctx, next.ID); err != nil {
			return err
		}
		outcome.PromotedFaceID = uuidPtr(next.ID)
		return nil
	})
	if err != nil {
		return nil, txError("delete face", err)
	}

	if locator != "" {
		if err := s.store.Delete(locator); err != nil {
			log.Warnf("delete: failed to remove image %s: %v", locator, err)
		}
	}

	details := fmt.Sprintf("Deleted face %s", faceID)
	if outcome.PromotedFaceID != nil {
		details += fmt.Sprintf(", promoted %s to primary", *outcome.PromotedFaceID)
	}

	log.WithFields(logrus.Fields{
		"identity": identityID,
		"face":     faceID,
		"promoted": outcome.PromotedFaceID,
	}).Info("delete: face deleted")

	recordAudit(ctx, s.audit, database.AuditEvent{
		Action:     database.AuditFaceDelete,
		Details:    details,
		UserID:     actorID,
		IdentityID: uuidPtr(identityID),
	})

	return outcome, nil
}

// SetPrimary makes faceID the identity's primary face. Already primary is a no-op,
// but the request is still audited.
func (s *EnrollmentService) SetPrimary(ctx context.Context, identityID, faceID uuid.UUID, actorID *uuid.UUID) error {
	if _, err := s.requireIdentity(ctx, identityID); err != nil {
		return err
	}

	changed := false
	err := s.faces.WithIdentityLock(ctx, identityID, func(tx database.FaceTx) error {
		changed = false

		face, err := faceOf(ctx, tx, identityID, faceID)
		if err != nil {
			return err
		}
		if face.IsPrimary {
			return nil
		}

		if err := tx.UnsetPrimaryForIdentity(ctx, identityID); err != nil {
			return err
		}
		if err := tx.SetPrimary(ctx, faceID); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return txError("set primary face", err)
	}

	details := fmt.Sprintf("Set face %s as primary", faceID)
	if !changed {
		details = fmt.Sprintf("Face %s already primary", faceID)
	}

	recordAudit(ctx, s.audit, database.AuditEvent{
		Action:     database.AuditFaceSetPrimary,
		Details:    details,
		UserID:     actorID,
		IdentityID: uuidPtr(identityID),
	})

	return nil
}

// ListFaces returns an identity's faces, primary first, then newest first.
func (s *EnrollmentService) ListFaces(ctx context.Context, identityID uuid.UUID) ([]database.EnrolledFace, error) {
	if _, err := s.requireIdentity(ctx, identityID); err != nil {
		return nil, err
	}

	faces, err := s.faces.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, infraError("list faces", err)
	}
	return faces, nil
}
