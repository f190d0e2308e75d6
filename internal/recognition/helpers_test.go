package recognition

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/charukad/traceiq/internal/database"
	"github.com/charukad/traceiq/internal/database/mock"
	"github.com/charukad/traceiq/internal/facematch"
	"github.com/charukad/traceiq/internal/pipeline"
	"github.com/charukad/traceiq/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testDim = 8

// fakeProcessor returns a fixed set of faces for every image.
type fakeProcessor struct {
	mu    sync.Mutex
	faces []pipeline.DetectedFace
	err   error
	calls int
}

func (f *fakeProcessor) Process(ctx context.Context, img image.Image) ([]pipeline.DetectedFace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]pipeline.DetectedFace, len(f.faces))
	copy(out, f.faces)
	return out, nil
}

func (f *fakeProcessor) Version() string { return "tracenet_v1" }

func (f *fakeProcessor) set(faces ...pipeline.DetectedFace) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces = faces
}

// axis returns a unit vector along dimension i.
func axis(i int) []float32 {
	v := make([]float32, testDim)
	v[i] = 1
	return v
}

// atDistance returns a unit vector whose L2 distance from axis(0) is d,
// tilted towards dimension tilt (tilt > 0).
func atDistance(d float64, tilt int) []float32 {
	cos := 1 - d*d/2
	v := make([]float32, testDim)
	v[0] = float32(cos)
	v[tilt] = float32(math.Sqrt(1 - cos*cos))
	return v
}

func face(box facematch.Box, emb []float32) pipeline.DetectedFace {
	return pipeline.DetectedFace{Box: box, Embedding: emb}
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 160, 160))))
	return buf.Bytes()
}

// fixedClock hands out strictly increasing timestamps.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type enrollmentFixture struct {
	svc        *EnrollmentService
	processor  *fakeProcessor
	faces      *mock.MockFaceRepository
	identities *mock.MockIdentityReader
	audit      *mock.MockAuditRepository
	store      *storage.LocalStore
	identity   database.Identity
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	f := &enrollmentFixture{
		processor:  &fakeProcessor{},
		faces:      mock.NewMockFaceRepository(),
		identities: mock.NewMockIdentityReader(),
		audit:      mock.NewMockAuditRepository(),
		store:      store,
		identity: database.Identity{
			ID:          uuid.New(),
			FirstName:   "Ruwan",
			LastName:    "Perera",
			NIC:         "881234567V",
			ThreatLevel: database.ThreatMedium,
		},
	}
	f.identities.AddIdentity(f.identity)
	f.processor.set(face(facematch.Box{X: 30, Y: 40, W: 80, H: 90}, axis(0)))

	f.svc = NewEnrollmentService(f.processor, f.faces, f.identities, f.store, f.audit)
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.svc.now = clock.Now
	return f
}

func (f *enrollmentFixture) enroll(t *testing.T, primary bool) *database.EnrolledFace {
	t.Helper()
	enrolled, err := f.svc.Enroll(context.Background(), EnrollRequest{
		IdentityID: f.identity.ID,
		Image:      pngImage(t),
		Filename:   "mugshot.png",
		IsPrimary:  primary,
	})
	require.NoError(t, err)
	return enrolled
}

// primaryCount returns the number of faces and primary faces of an identity.
func primaryCount(t *testing.T, repo database.FaceReader, identityID uuid.UUID) (faces, primaries int) {
	t.Helper()
	list, err := repo.ListByIdentity(context.Background(), identityID)
	require.NoError(t, err)
	for _, f := range list {
		if f.IsPrimary {
			primaries++
		}
	}
	return len(list), primaries
}
