// Package recognition implements face enrollment and identification.
//
// EnrollmentService keeps each identity's set of reference faces consistent:
// after every completed mutation an identity with n faces has exactly min(1, n)
// primary faces. MatchingService turns nearest-neighbour distances into a
// calibrated match or unknown decision, rejecting matches that are too close
// to a second identity.
package recognition

import (
	"context"
	"image"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/event"
	"github.com/charukad/traceiq/internal/pipeline"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = event.Log

// FaceProcessor detects and embeds faces. *pipeline.Pipeline implements it.
type FaceProcessor interface {
	Process(ctx context.Context, img image.Image) ([]pipeline.DetectedFace, error)
	Version() string
}

// recordAudit hands an event to the sink. Failures are logged and otherwise ignored,
// and the event is still recorded when the request context has been cancelled.
func recordAudit(ctx context.Context, sink database.AuditWriter, ev database.AuditEvent) {
	if sink == nil {
		return
	}
	if err := sink.Record(context.WithoutCancel(ctx), ev); err != nil {
		log.WithFields(logrus.Fields{
			"action":  ev.Action,
			"details": ev.Details,
		}).Warnf("recognition: failed to record audit event: %v", err)
	}
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
