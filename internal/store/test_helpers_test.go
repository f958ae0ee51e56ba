package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestRun inserts a running run with fixed config identity.
func beginTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	r, err := s.BeginRun(context.Background(), id, "test-config", "test-hash")
	if err != nil {
		t.Fatalf("BeginRun(%q) failed: %v", id, err)
	}
	return r
}
