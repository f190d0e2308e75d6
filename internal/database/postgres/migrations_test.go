package postgres

import (
	"strings"
	"testing"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}

	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].version >= migrations[i].version {
			t.Errorf("migrations not sorted: %s before %s", migrations[i-1].version, migrations[i].version)
		}
	}

	first := migrations[0]
	for _, want := range []string{"enrolled_faces", "vector(512)", "WHERE is_primary", "audit_logs"} {
		if !strings.Contains(first.sql, want) {
			t.Errorf("initial migration does not contain %q", want)
		}
	}
}
