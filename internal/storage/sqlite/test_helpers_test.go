package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB creates a store backed by a file in a per-test temp dir
func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "qa_agent.db")
	store, err := New(context.Background(), path)
	require.NoError(t, err, "failed to create storage")

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// countRows runs a COUNT(*) query directly against the store's file
func countRows(t *testing.T, s *SQLiteStorage, query string, args ...any) int {
	t.Helper()

	ctx := context.Background()
	db, err := s.open(ctx)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var n int
	require.NoError(t, db.QueryRowContext(ctx, query, args...).Scan(&n))
	return n
}
