package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/google/uuid"
)

// AuditRepository appends to and queries the audit_logs table.
type AuditRepository struct {
	pool *Pool
}

// NewAuditRepository creates a new PostgreSQL audit repository.
func NewAuditRepository(pool *Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Record appends an audit event.
func (r *AuditRepository) Record(ctx context.Context, event database.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, action, details, user_id, identity_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, string(event.Action), event.Details, event.UserID, event.IdentityID, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// CountSince returns the number of events with the given action at or after since.
func (r *AuditRepository) CountSince(ctx context.Context, action database.AuditAction, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM audit_logs WHERE action = $1 AND timestamp >= $2", string(action), since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}
