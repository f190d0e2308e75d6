package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockKey serializes schema changes when several instances start at once.
const migrationLockKey = 7_311_042

// MigrationState describes one embedded migration and whether it has been applied.
type MigrationState struct {
	Version   string
	AppliedAt *time.Time
}

type migration struct {
	version string
	sql     string
}

// loadMigrations returns the embedded migrations sorted by file name.
func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: e.Name(), sql: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (p *Pool) ensureMigrationsTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// Migrate applies all pending migrations and returns how many were applied.
func (p *Pool) Migrate(ctx context.Context) (int, error) {
	if err := p.ensureMigrationsTable(ctx); err != nil {
		return 0, err
	}

	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		ok, err := p.applyMigration(ctx, m)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
			log.Infof("postgres: applied migration %s", m.version)
		}
	}
	return applied, nil
}

// applyMigration runs one migration in its own transaction. It reports false when
// another process applied it first.
func (p *Pool) applyMigration(ctx context.Context, m migration) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction for %s: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
		return false, fmt.Errorf("lock migrations: %w", err)
	}

	var done bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version,
	).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.version, err)
	}
	if done {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return false, fmt.Errorf("execute migration %s: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return false, fmt.Errorf("record migration %s: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return true, nil
}

// MigrationStatus lists every embedded migration with its applied time, if any.
func (p *Pool) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	if err := p.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	appliedAt := make(map[string]time.Time)
	for rows.Next() {
		var v string
		var at sql.NullTime
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		appliedAt[v] = at.Time
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		state := MigrationState{Version: m.version}
		if at, ok := appliedAt[m.version]; ok {
			state.AppliedAt = &at
		}
		states = append(states, state)
	}
	return states, nil
}
