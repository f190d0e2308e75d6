package database

import (
	"strings"
	"time"

	"github.com/charukad/traceiq/internal/facematch"
	"github.com/google/uuid"
)

// ThreatLevel classifies how dangerous an identity is considered.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Identity is the subject a set of enrolled faces belongs to (a criminal record).
// Only the fields needed for matching and display are read here.
type Identity struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	NIC         string // national identity card number, empty if unknown
	ThreatLevel ThreatLevel
}

// Name returns the display name of the identity.
func (i *Identity) Name() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// EnrolledFace is one stored reference image and its embedding for an identity.
type EnrolledFace struct {
	ID               uuid.UUID
	IdentityID       uuid.UUID
	ImageURL         string // storage locator, not interpreted by the engines
	IsPrimary        bool
	EmbeddingVersion string
	Box              *facematch.Box // nil for records enrolled before boxes were stored
	Embedding        []float32
	CreatedAt        time.Time
}

// MatchCandidate pairs an enrolled face with its L2 distance from a probe embedding.
type MatchCandidate struct {
	Face     EnrolledFace
	Distance float64
}

// AuditAction tags an audit event.
type AuditAction string

const (
	AuditFaceEnroll     AuditAction = "FACE_ENROLL"
	AuditFaceDelete     AuditAction = "FACE_DELETE"
	AuditFaceSetPrimary AuditAction = "FACE_SET_PRIMARY"
	AuditIdentify       AuditAction = "IDENTIFY"
)

// AuditEvent is an append-only record of an engine operation.
type AuditEvent struct {
	ID         uuid.UUID
	Action     AuditAction
	Details    string
	UserID     *uuid.UUID // actor, nil for system or anonymous calls
	IdentityID *uuid.UUID // subject identity, nil for identification
	Timestamp  time.Time
}
