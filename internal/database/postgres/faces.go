package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const faceColumns = `id, identity_id, image_url, is_primary, embedding_version,
	box_x, box_y, box_w, box_h, embedding, created_at`

// safeIntToInt32 converts int to int32 with clamping to prevent overflow.
func safeIntToInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// querier is the subset of *sql.DB and *sql.Tx used by the face queries.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FaceRepository provides PostgreSQL-backed storage for enrolled faces.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// Get retrieves a face by ID, returns nil if not found.
func (r *FaceRepository) Get(ctx context.Context, id uuid.UUID) (*database.EnrolledFace, error) {
	return getFace(ctx, r.pool.db, id)
}

// ListByIdentity returns the faces of an identity, primary first, then newest first.
func (r *FaceRepository) ListByIdentity(ctx context.Context, identityID uuid.UUID) ([]database.EnrolledFace, error) {
	return listFaces(ctx, r.pool.db, identityID)
}

// NearestNeighbors returns up to k faces ordered by ascending L2 distance.
func (r *FaceRepository) NearestNeighbors(
	ctx context.Context, embedding []float32, k int,
) ([]database.MatchCandidate, error) {
	if k <= 0 {
		k = database.DefaultNeighbors
	}

	query := `
		SELECT ` + faceColumns + `, embedding <-> $1::vector AS distance
		FROM enrolled_faces
		ORDER BY embedding <-> $1::vector, id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("query nearest faces: %w", err)
	}
	defer rows.Close()

	var candidates []database.MatchCandidate
	for rows.Next() {
		var dist float64
		face, err := scanFaceRow(rows, &dist)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, database.MatchCandidate{Face: face, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearest faces: %w", err)
	}
	return candidates, nil
}

// PrimaryFacesFor returns the primary face of each given identity that has one.
func (r *FaceRepository) PrimaryFacesFor(
	ctx context.Context, identityIDs []uuid.UUID,
) ([]database.EnrolledFace, error) {
	if len(identityIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(identityIDs))
	for i, id := range identityIDs {
		ids[i] = id.String()
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+faceColumns+`
		FROM enrolled_faces
		WHERE is_primary AND identity_id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query primary faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// Count returns the total number of enrolled faces.
func (r *FaceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enrolled_faces").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// WithIdentityLock runs fn in a transaction holding an advisory lock on the identity.
// Callers for the same identity queue on the lock until the transaction ends.
func (r *FaceRepository) WithIdentityLock(
	ctx context.Context, identityID uuid.UUID, fn func(tx database.FaceTx) error,
) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", identityID.String(),
	); err != nil {
		return fmt.Errorf("lock identity %s: %w", identityID, err)
	}

	if err := fn(&faceTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// faceTx implements database.FaceTx on top of an open transaction.
type faceTx struct {
	tx *sql.Tx
}

func (t *faceTx) Create(ctx context.Context, face *database.EnrolledFace) error {
	if face.ID == uuid.Nil {
		face.ID = uuid.New()
	}
	if face.CreatedAt.IsZero() {
		face.CreatedAt = time.Now().UTC()
	}

	var boxX, boxY, boxW, boxH sql.NullInt32
	if b := face.Box; b != nil {
		boxX = sql.NullInt32{Int32: safeIntToInt32(b.X), Valid: true}
		boxY = sql.NullInt32{Int32: safeIntToInt32(b.Y), Valid: true}
		boxW = sql.NullInt32{Int32: safeIntToInt32(b.W), Valid: true}
		boxH = sql.NullInt32{Int32: safeIntToInt32(b.H), Valid: true}
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO enrolled_faces (id, identity_id, image_url, is_primary, embedding_version,
		                            box_x, box_y, box_w, box_h, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector, $11)
	`,
		face.ID,
		face.IdentityID,
		face.ImageURL,
		face.IsPrimary,
		face.EmbeddingVersion,
		boxX, boxY, boxW, boxH,
		pgvector.NewVector(face.Embedding),
		face.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert face %s: %w", face.ID, err)
	}
	return nil
}

func (t *faceTx) Get(ctx context.Context, id uuid.UUID) (*database.EnrolledFace, error) {
	return getFace(ctx, t.tx, id)
}

func (t *faceTx) ListByIdentity(ctx context.Context, identityID uuid.UUID) ([]database.EnrolledFace, error) {
	return listFaces(ctx, t.tx, identityID)
}

func (t *faceTx) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM enrolled_faces WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete face %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (t *faceTx) SetPrimary(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE enrolled_faces SET is_primary = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("set primary face %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (t *faceTx) UnsetPrimaryForIdentity(ctx context.Context, identityID uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE enrolled_faces SET is_primary = FALSE WHERE identity_id = $1 AND is_primary", identityID,
	)
	if err != nil {
		return fmt.Errorf("clear primary faces of %s: %w", identityID, err)
	}
	return nil
}

func expectOneRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("face %s: %w", id, database.ErrNotFound)
	}
	return nil
}

func getFace(ctx context.Context, q querier, id uuid.UUID) (*database.EnrolledFace, error) {
	row := q.QueryRowContext(ctx, "SELECT "+faceColumns+" FROM enrolled_faces WHERE id = $1", id)
	face, err := scanFaceRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &face, nil
}

func listFaces(ctx context.Context, q querier, identityID uuid.UUID) ([]database.EnrolledFace, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+faceColumns+`
		FROM enrolled_faces
		WHERE identity_id = $1
		ORDER BY is_primary DESC, created_at DESC, id DESC
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("query identity faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// scanFaceRow scans a single row into an EnrolledFace, with optional extra scan
// destinations appended after the face columns (e.g., a distance column).
// sql.ErrNoRows is returned unwrapped.
func scanFaceRow(scanner interface{ Scan(...any) error }, extraDest ...any) (database.EnrolledFace, error) {
	var face database.EnrolledFace
	var vec pgvector.Vector
	var boxX, boxY, boxW, boxH sql.NullInt32

	dest := make([]any, 0, 11+len(extraDest))
	dest = append(dest,
		&face.ID,
		&face.IdentityID,
		&face.ImageURL,
		&face.IsPrimary,
		&face.EmbeddingVersion,
		&boxX, &boxY, &boxW, &boxH,
		&vec,
		&face.CreatedAt,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return face, err
		}
		return face, fmt.Errorf("scan face: %w", err)
	}

	face.Embedding = vec.Slice()
	if boxX.Valid && boxY.Valid && boxW.Valid && boxH.Valid {
		face.Box = &facematch.Box{
			X: int(boxX.Int32),
			Y: int(boxY.Int32),
			W: int(boxW.Int32),
			H: int(boxH.Int32),
		}
	}
	return face, nil
}

func scanFaces(rows *sql.Rows) ([]database.EnrolledFace, error) {
	var faces []database.EnrolledFace
	for rows.Next() {
		face, err := scanFaceRow(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}
