// Package mock provides in-memory implementations of the database interfaces for testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/google/uuid"
)

// ErrPrimaryConflict mirrors the unique primary index of the PostgreSQL schema.
var ErrPrimaryConflict = errors.New("identity already has a primary face")

// MockFaceRepository is an in-memory implementation of database.FaceWriter.
type MockFaceRepository struct {
	mu    sync.RWMutex
	faces map[uuid.UUID]database.EnrolledFace

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex

	// Error injection
	GetError        error
	ListError       error
	NearestError    error
	PrimaryError    error
	CountError      error
	LockError       error
	CreateError     error
	DeleteError     error
	SetPrimaryError error
}

// NewMockFaceRepository creates a new mock face repository
func NewMockFaceRepository() *MockFaceRepository {
	return &MockFaceRepository{
		faces: make(map[uuid.UUID]database.EnrolledFace),
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// AddFace stores a face directly, bypassing the identity lock
func (m *MockFaceRepository) AddFace(face database.EnrolledFace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if face.ID == uuid.Nil {
		face.ID = uuid.New()
	}
	m.faces[face.ID] = face
}

// All returns every stored face in no particular order
func (m *MockFaceRepository) All() []database.EnrolledFace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.EnrolledFace, 0, len(m.faces))
	for _, f := range m.faces {
		out = append(out, f)
	}
	return out
}

// Get retrieves a face by ID
func (m *MockFaceRepository) Get(ctx context.Context, id uuid.UUID) (*database.EnrolledFace, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(id), nil
}

func (m *MockFaceRepository) get(id uuid.UUID) *database.EnrolledFace {
	f, ok := m.faces[id]
	if !ok {
		return nil
	}
	return &f
}

// ListByIdentity returns the faces of an identity, primary first, then newest first
func (m *MockFaceRepository) ListByIdentity(ctx context.Context, identityID uuid.UUID) ([]database.EnrolledFace, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listByIdentity(identityID), nil
}

func (m *MockFaceRepository) listByIdentity(identityID uuid.UUID) []database.EnrolledFace {
	var out []database.EnrolledFace
	for _, f := range m.faces {
		if f.IdentityID == identityID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}

// NearestNeighbors ranks every stored face by L2 distance and returns the k closest
func (m *MockFaceRepository) NearestNeighbors(
	ctx context.Context, embedding []float32, k int,
) ([]database.MatchCandidate, error) {
	if m.NearestError != nil {
		return nil, m.NearestError
	}
	if k <= 0 {
		k = database.DefaultNeighbors
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]database.MatchCandidate, 0, len(m.faces))
	for _, f := range m.faces {
		d := database.L2Distance(embedding, f.Embedding)
		if math.IsInf(d, 1) {
			continue
		}
		candidates = append(candidates, database.MatchCandidate{Face: f, Distance: d})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Face.ID.String() < candidates[j].Face.ID.String()
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// PrimaryFacesFor returns the primary face of each given identity that has one
func (m *MockFaceRepository) PrimaryFacesFor(
	ctx context.Context, identityIDs []uuid.UUID,
) ([]database.EnrolledFace, error) {
	if m.PrimaryError != nil {
		return nil, m.PrimaryError
	}
	wanted := make(map[uuid.UUID]struct{}, len(identityIDs))
	for _, id := range identityIDs {
		wanted[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.EnrolledFace
	for _, f := range m.faces {
		if _, ok := wanted[f.IdentityID]; ok && f.IsPrimary {
			out = append(out, f)
		}
	}
	return out, nil
}

// Count returns the total number of stored faces
func (m *MockFaceRepository) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.faces), nil
}

func (m *MockFaceRepository) identityLock(identityID uuid.UUID) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[identityID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[identityID] = l
	}
	return l
}

// WithIdentityLock serializes fn per identity and undoes its writes when it fails
func (m *MockFaceRepository) WithIdentityLock(
	ctx context.Context, identityID uuid.UUID, fn func(tx database.FaceTx) error,
) error {
	if m.LockError != nil {
		return m.LockError
	}

	l := m.identityLock(identityID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &mockFaceTx{repo: m, undo: make(map[uuid.UUID]*database.EnrolledFace)}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// mockFaceTx applies writes immediately and keeps the prior state of every touched face.
type mockFaceTx struct {
	repo *MockFaceRepository
	undo map[uuid.UUID]*database.EnrolledFace
}

// remember records the state of id before its first change. Caller holds repo.mu.
func (t *mockFaceTx) remember(id uuid.UUID) {
	if _, ok := t.undo[id]; ok {
		return
	}
	t.undo[id] = t.repo.get(id)
}

func (t *mockFaceTx) rollback() {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for id, prev := range t.undo {
		if prev == nil {
			delete(t.repo.faces, id)
		} else {
			t.repo.faces[id] = *prev
		}
	}
}

// hasOtherPrimary reports whether identityID has a primary face other than id. Caller holds repo.mu.
func (t *mockFaceTx) hasOtherPrimary(identityID, id uuid.UUID) bool {
	for _, f := range t.repo.faces {
		if f.IdentityID == identityID && f.IsPrimary && f.ID != id {
			return true
		}
	}
	return false
}

func (t *mockFaceTx) Create(ctx context.Context, face *database.EnrolledFace) error {
	if t.repo.CreateError != nil {
		return t.repo.CreateError
	}
	if face.ID == uuid.Nil {
		face.ID = uuid.New()
	}
	if face.CreatedAt.IsZero() {
		face.CreatedAt = time.Now().UTC()
	}

	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, exists := t.repo.faces[face.ID]; exists {
		return fmt.Errorf("face %s already exists", face.ID)
	}
	if face.IsPrimary && t.hasOtherPrimary(face.IdentityID, face.ID) {
		return ErrPrimaryConflict
	}
	t.remember(face.ID)
	t.repo.faces[face.ID] = *face
	return nil
}

func (t *mockFaceTx) Get(ctx context.Context, id uuid.UUID) (*database.EnrolledFace, error) {
	if t.repo.GetError != nil {
		return nil, t.repo.GetError
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	return t.repo.get(id), nil
}

func (t *mockFaceTx) ListByIdentity(ctx context.Context, identityID uuid.UUID) ([]database.EnrolledFace, error) {
	if t.repo.ListError != nil {
		return nil, t.repo.ListError
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	return t.repo.listByIdentity(identityID), nil
}

func (t *mockFaceTx) Delete(ctx context.Context, id uuid.UUID) error {
	if t.repo.DeleteError != nil {
		return t.repo.DeleteError
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, ok := t.repo.faces[id]; !ok {
		return fmt.Errorf("face %s: %w", id, database.ErrNotFound)
	}
	t.remember(id)
	delete(t.repo.faces, id)
	return nil
}

func (t *mockFaceTx) SetPrimary(ctx context.Context, id uuid.UUID) error {
	if t.repo.SetPrimaryError != nil {
		return t.repo.SetPrimaryError
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	f, ok := t.repo.faces[id]
	if !ok {
		return fmt.Errorf("face %s: %w", id, database.ErrNotFound)
	}
	if t.hasOtherPrimary(f.IdentityID, id) {
		return ErrPrimaryConflict
	}
	t.remember(id)
	f.IsPrimary = true
	t.repo.faces[id] = f
	return nil
}

func (t *mockFaceTx) UnsetPrimaryForIdentity(ctx context.Context, identityID uuid.UUID) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for id, f := range t.repo.faces {
		if f.IdentityID == identityID && f.IsPrimary {
			t.remember(id)
			f.IsPrimary = false
			t.repo.faces[id] = f
		}
	}
	return nil
}

// MockIdentityReader is an in-memory implementation of database.IdentityReader
type MockIdentityReader struct {
	mu         sync.Mutex
	identities map[uuid.UUID]database.Identity
	calls      int

	// Error injection
	GetError error
}

// NewMockIdentityReader creates a new mock identity reader
func NewMockIdentityReader() *MockIdentityReader {
	return &MockIdentityReader{identities: make(map[uuid.UUID]database.Identity)}
}

// AddIdentity adds an identity to the mock store
func (m *MockIdentityReader) AddIdentity(identity database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = identity
}

// RemoveIdentity deletes an identity from the mock store
func (m *MockIdentityReader) RemoveIdentity(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.identities, id)
}

// Get retrieves an identity by ID
func (m *MockIdentityReader) Get(ctx context.Context, id uuid.UUID) (*database.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.GetError != nil {
		return nil, m.GetError
	}
	identity, ok := m.identities[id]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

// Calls returns how many times Get has been called
func (m *MockIdentityReader) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockAuditRepository is an in-memory implementation of database.AuditWriter and database.AuditReader
type MockAuditRepository struct {
	mu     sync.Mutex
	events []database.AuditEvent

	// Error injection
	RecordError error
	CountError  error
}

// NewMockAuditRepository creates a new mock audit repository
func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

// Record appends an audit event
func (m *MockAuditRepository) Record(ctx context.Context, event database.AuditEvent) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// CountSince counts events with the given action at or after since
func (m *MockAuditRepository) CountSince(ctx context.Context, action database.AuditAction, since time.Time) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Action == action && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// Events returns a copy of all recorded events in order
func (m *MockAuditRepository) Events() []database.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsByAction returns the recorded events with the given action
func (m *MockAuditRepository) EventsByAction(action database.AuditAction) []database.AuditEvent {
	var out []database.AuditEvent
	for _, e := range m.Events() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
