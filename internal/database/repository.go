package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by FaceTx mutations that address a face which does not exist.
var ErrNotFound = errors.New("record not found")

// IdentityReader provides read-only access to identities owned by the records system
type IdentityReader interface {
	// Get retrieves an identity by ID, returns nil if not found
	Get(ctx context.Context, id uuid.UUID) (*Identity, error)
}

// FaceReader provides read-only access to enrolled faces
type FaceReader interface {
	// Get retrieves an enrolled face by ID, returns nil if not found
	Get(ctx context.Context, id uuid.UUID) (*EnrolledFace, error)
	// ListByIdentity returns the faces of an identity, primary first, then newest first
	ListByIdentity(ctx context.Context, identityID uuid.UUID) ([]EnrolledFace, error)
	// NearestNeighbors returns up to k faces ranked by ascending L2 distance to the vector
	NearestNeighbors(ctx context.Context, embedding []float32, k int) ([]MatchCandidate, error)
	// PrimaryFacesFor returns the primary face of each given identity that has one
	PrimaryFacesFor(ctx context.Context, identityIDs []uuid.UUID) ([]EnrolledFace, error)
	// Count returns the total number of enrolled faces
	Count(ctx context.Context) (int, error)
}

// FaceTx is the set of face mutations available inside an identity-scoped transaction.
// All calls made through one FaceTx commit or roll back together.
type FaceTx interface {
	Create(ctx context.Context, face *EnrolledFace) error
	Get(ctx context.Context, id uuid.UUID) (*EnrolledFace, error)
	// Delete removes a face record, ErrNotFound if it does not exist
	Delete(ctx context.Context, id uuid.UUID) error
	ListByIdentity(ctx context.Context, identityID uuid.UUID) ([]EnrolledFace, error)
	// SetPrimary marks a single face as primary without touching the others,
	// ErrNotFound if it does not exist
	SetPrimary(ctx context.Context, id uuid.UUID) error
	// UnsetPrimaryForIdentity clears the primary flag on every face of the identity
	UnsetPrimaryForIdentity(ctx context.Context, identityID uuid.UUID) error
}

// FaceWriter provides write access to enrolled faces
type FaceWriter interface {
	FaceReader

	// WithIdentityLock runs fn with exclusive access to the faces of one identity.
	// Concurrent calls for the same identity are serialized; different identities
	// do not block each other. If fn returns an error nothing it did is kept.
	WithIdentityLock(ctx context.Context, identityID uuid.UUID, fn func(tx FaceTx) error) error
}

// AuditWriter appends audit events
type AuditWriter interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditReader provides aggregate queries over the audit log
type AuditReader interface {
	// CountSince returns the number of events with the given action at or after since
	CountSince(ctx context.Context, action AuditAction, since time.Time) (int, error)
}
