package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charukad/traceiq/internal/database"
	"github.com/google/uuid"
)

// IdentityRepository reads identities from the local identities table.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Get retrieves an identity by ID, returns nil if not found.
func (r *IdentityRepository) Get(ctx context.Context, id uuid.UUID) (*database.Identity, error) {
	var identity database.Identity
	var nic sql.NullString
	var threat string

	err := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, nic, threat_level
		FROM identities
		WHERE id = $1
	`, id).Scan(&identity.ID, &identity.FirstName, &identity.LastName, &nic, &threat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %s: %w", id, err)
	}

	identity.NIC = nic.String
	identity.ThreatLevel = database.ThreatLevel(threat)
	return &identity, nil
}

// Create inserts an identity. Used by seeding and tests; the records system owns identities.
func (r *IdentityRepository) Create(ctx context.Context, identity *database.Identity) error {
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	if identity.ThreatLevel == "" {
		identity.ThreatLevel = database.ThreatLow
	}

	var nic sql.NullString
	if identity.NIC != "" {
		nic = sql.NullString{String: identity.NIC, Valid: true}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO identities (id, first_name, last_name, nic, threat_level)
		VALUES ($1, $2, $3, $4, $5)
	`, identity.ID, identity.FirstName, identity.LastName, nic, string(identity.ThreatLevel))
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}
