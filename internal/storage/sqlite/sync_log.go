package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/qa-agent/internal/types"
)

// RecordSyncCompleted appends one sync-log row stamped with the current time
func (s *SQLiteStorage) RecordSyncCompleted(ctx context.Context, runID string, storiesFound int) error {
	return s.withDB(ctx, "record sync", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO sync_log (run_id, stories_found) VALUES (?, ?)`, runID, storiesFound)
		if err != nil {
			return fmt.Errorf("failed to record sync: %w", err)
		}
		return nil
	})
}

// RecentSyncs returns up to limit sync-log rows, newest first.
// The pipeline never reads these; they exist for the status command.
func (s *SQLiteStorage) RecentSyncs(ctx context.Context, limit int) ([]*types.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var entries []*types.SyncLogEntry
	err := s.withDB(ctx, "recent syncs", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, run_id, stories_found, completed_at FROM sync_log
			ORDER BY completed_at DESC, id DESC
			LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("failed to query sync log: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var e types.SyncLogEntry
			if err := rows.Scan(&e.ID, &e.RunID, &e.StoriesFound, &e.CompletedAt); err != nil {
				return fmt.Errorf("failed to scan sync log entry: %w", err)
			}
			entries = append(entries, &e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
