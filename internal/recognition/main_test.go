package recognition

import (
	"bytes"
	"os"
	"testing"

	"github.com/charukad/traceiq/internal/event"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// TestMain keeps per-operation info logs out of test output.
func TestMain(m *testing.M) {
	event.Log.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

func TestRoutineOperationsLogNothing(t *testing.T) {
	var buf bytes.Buffer
	event.Log.SetOutput(&buf)
	defer event.Log.SetOutput(os.Stderr)

	f := newEnrollmentFixture(t)
	first := f.enroll(t, false)
	f.enroll(t, true)
	_, err := f.svc.Delete(t.Context(), f.identity.ID, first.ID, nil)
	assert.NoError(t, err)

	assert.Empty(t, buf.String())
}
