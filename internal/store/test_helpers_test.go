package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/treeup/internal/node"
)

// createTestStore creates a new store in a temporary directory.
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

// createTestDatabase stores xml as a new database.
func createTestDatabase(t *testing.T, s *Store, name, xml string) *Database {
	t.Helper()
	nodes, err := node.NewArena().ParseString(xml)
	if err != nil {
		t.Fatalf("ParseString() failed: %v", err)
	}
	d, err := s.CreateDatabase(context.Background(), name, nodes...)
	if err != nil {
		t.Fatalf("CreateDatabase() failed: %v", err)
	}
	return d
}
