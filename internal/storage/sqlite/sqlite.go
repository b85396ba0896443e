package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/steveyegge/qa-agent/internal/types"
)

// SQLiteStorage implements the store on a single SQLite file.
//
// The file is opened, used and closed around every operation instead of
// being held open for a whole cycle. Concurrent processes (viewer and
// agent) coordinate through SQLite's own file locking.
type SQLiteStorage struct {
	path string
	dsn  string
}

// New prepares the database file and initializes the schema.
// Failure here is fatal for callers: the agent cannot run without its store.
func New(ctx context.Context, path string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, types.NewPersistenceError("initialize", fmt.Errorf("failed to create directory: %w", err))
	}

	// Foreign keys stay off: DeleteStory must not be blocked by (or cascade to)
	// the story's test cases.
	s := &SQLiteStorage{
		path: path,
		dsn:  path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=OFF",
	}

	err := s.withDB(ctx, "initialize schema", func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the database file path
func (s *SQLiteStorage) Path() string {
	return s.path
}

// open connects to the database file for the duration of one operation
func (s *SQLiteStorage) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection per operation keeps BEGIN IMMEDIATE and the statements
	// that follow it on the same handle.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", s.path, err)
	}
	return db, nil
}

// withDB runs fn against a freshly opened handle and closes it afterwards.
// Any failure is reported as a PersistenceError tagged with op.
func (s *SQLiteStorage) withDB(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	db, err := s.open(ctx)
	if err != nil {
		return types.NewPersistenceError(op, err)
	}
	defer func() { _ = db.Close() }()

	return types.NewPersistenceError(op, fn(db))
}

// Close is a no-op: no handle outlives a single operation.
func (s *SQLiteStorage) Close() error {
	return nil
}
