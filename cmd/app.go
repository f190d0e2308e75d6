package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/charukad/traceiq/internal/config"
	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/database/mariadb"
	"github.com/charukad/traceiq/internal/database/postgres"
	"github.com/charukad/traceiq/internal/embedding"
	"github.com/charukad/traceiq/internal/event"
	"github.com/charukad/traceiq/internal/pipeline"
	"github.com/charukad/traceiq/internal/recognition"
	"github.com/charukad/traceiq/internal/storage"
)

var log = event.Log

// app holds the backends shared by the commands.
type app struct {
	cfg        *config.Config
	pool       *postgres.Pool
	records    *mariadb.Pool // nil when identities live in PostgreSQL
	faces      *postgres.FaceRepository
	identities database.IdentityReader
	audit      *postgres.AuditRepository
	store      *storage.LocalStore
	backend    *embedding.Client
	pipeline   *pipeline.Pipeline
}

// openApp connects to PostgreSQL (running migrations), the optional records database,
// the image store and the inference service.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	log.Debug("cmd: connecting to PostgreSQL")
	pool, err := postgres.Initialize(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	a := &app{
		cfg:   cfg,
		pool:  pool,
		faces: postgres.NewFaceRepository(pool),
		audit: postgres.NewAuditRepository(pool),
	}

	if cfg.Records.URL != "" {
		log.Debug("cmd: connecting to records database")
		records, err := mariadb.NewPool(cfg.Records.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to records database: %w", err)
		}
		a.records = records
		a.identities = mariadb.NewIdentityRepository(records)
	} else {
		a.identities = postgres.NewIdentityRepository(pool)
	}

	a.store, err = storage.NewLocalStore(cfg.Storage.UploadsDir)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.backend = embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Version, cfg.Embedding.Timeout)
	a.pipeline = pipeline.New(a.backend, cfg.Matching.MinFaceSize)

	return a, nil
}

// Close releases every connection pool.
func (a *app) Close() {
	if a.records != nil {
		if err := a.records.Close(); err != nil {
			log.Warnf("cmd: %v", err)
		}
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			log.Warnf("cmd: %v", err)
		}
	}
}

func (a *app) enrollment() *recognition.EnrollmentService {
	return recognition.NewEnrollmentService(a.pipeline, a.faces, a.identities, a.store, a.audit)
}

func (a *app) matching() *recognition.MatchingService {
	return recognition.NewMatchingService(a.pipeline, a.faces, a.identities, a.audit, matchingOptions(a.cfg.Matching))
}

// matchingOptions converts the matching config into service options.
func matchingOptions(m config.MatchingConfig) recognition.MatchingOptions {
	return recognition.MatchingOptions{
		Threshold:       m.Threshold,
		AmbiguityMargin: m.AmbiguityMargin,
		TopK:            m.TopK,
		AllFaces:        !m.SingleFaceOnly,
		Calibration:     recognition.NewCalibration(m.Calibration.Version, m.Calibration.Slope, m.Calibration.Midpoint),
	}
}
