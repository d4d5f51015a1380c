package testutil

import (
	"path/filepath"
	"testing"

	"github.com/tmaeda/mailhub/internal/store"
)

// NewTestStore creates a SQLiteStore backed by a per-test temporary file
// with all migrations applied. A file is used rather than ":memory:"
// because each pooled connection to ":memory:" opens a distinct empty
// database. It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
