// Package mariadb reads identities from the criminal records database.
// Access is read-only; the records system owns the criminals table.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charukad/traceiq/internal/database"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Ping verifies the records database is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging MariaDB: %w", err)
	}
	return nil
}

// IdentityRepository implements database.IdentityReader over the criminals table.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a records-backed identity reader.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Get retrieves an identity by ID, returns nil if not found.
// IDs are stored as CHAR(36) in canonical UUID form.
func (r *IdentityRepository) Get(ctx context.Context, id uuid.UUID) (*database.Identity, error) {
	var (
		rawID, first, last string
		nic, threat        sql.NullString
	)

	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, nic, threat_level
		FROM criminals
		WHERE id = ?
	`, id.String()).Scan(&rawID, &first, &last, &nic, &threat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %s: %w", id, err)
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse identity id %q: %w", rawID, err)
	}

	return &database.Identity{
		ID:          parsed,
		FirstName:   first,
		LastName:    last,
		NIC:         nic.String,
		ThreatLevel: parseThreatLevel(threat.String),
	}, nil
}

// parseThreatLevel accepts the records system's enum in any case ("HIGH", "high").
// Unknown or missing values are treated as low.
func parseThreatLevel(s string) database.ThreatLevel {
	switch level := database.ThreatLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case database.ThreatLow, database.ThreatMedium, database.ThreatHigh, database.ThreatCritical:
		return level
	default:
		return database.ThreatLow
	}
}
