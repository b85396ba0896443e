package storage

import (
	"context"

	"github.com/steveyegge/qa-agent/internal/storage/sqlite"
	"github.com/steveyegge/qa-agent/internal/types"
)

// Storage defines the persistence contract for stories and their generated
// test cases. The store owns all uniqueness rules: one row per story key and
// no two byte-identical documents for the same story.
type Storage interface {
	// Stories
	UpsertStory(ctx context.Context, key, title, description, status string) (int64, error)
	GetStory(ctx context.Context, id int64) (*types.UserStory, error)
	GetStoryByKey(ctx context.Context, key string) (*types.UserStory, error)
	ListStories(ctx context.Context) ([]*types.UserStory, error)
	DeleteStory(ctx context.Context, id int64) error

	// Test cases
	InsertTestCaseIfNew(ctx context.Context, storyID int64, content string) (int64, bool, error)
	ListTestCases(ctx context.Context, storyID int64) ([]*types.TestCaseDocument, error)
	LatestTestCase(ctx context.Context, storyID int64) (*types.TestCaseDocument, error)

	// Sync log (append-only, observability only)
	RecordSyncCompleted(ctx context.Context, runID string, storiesFound int) error
	RecentSyncs(ctx context.Context, limit int) ([]*types.SyncLogEntry, error)

	// Lifecycle
	Close() error
}

// Compile-time check that the SQLite backend satisfies Storage
var _ Storage = (*sqlite.SQLiteStorage)(nil)

// DefaultPath is where the database lives when nothing else is configured
const DefaultPath = ".qa-agent/qa_agent.db"

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".qa-agent/qa_agent.db"
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: DefaultPath,
	}
}

// NewStorage creates the SQLite storage backend and initializes its schema.
// An error here means the process cannot start.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	return sqlite.New(ctx, cfg.Path)
}
