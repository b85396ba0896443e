package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/qa-agent/internal/types"
)

const testCaseColumns = `id, user_story_id, content, generated_at`

// InsertTestCaseIfNew stores content for the story unless an identical
// document already exists, in which case the existing id is returned with
// wasNew=false.
//
// The lookup and the insert run in one IMMEDIATE transaction, so two callers
// racing on the same (story, content) pair serialize on SQLite's write lock
// and only one of them reports wasNew=true.
func (s *SQLiteStorage) InsertTestCaseIfNew(ctx context.Context, storyID int64, content string) (int64, bool, error) {
	var (
		id     int64
		wasNew bool
	)

	err := s.withDB(ctx, "insert test case", func(db *sql.DB) error {
		// Acquire a dedicated connection for the transaction.
		// "BEGIN IMMEDIATE" and "COMMIT" must run on the same connection.
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer func() { _ = conn.Close() }()

		// database/sql's BeginTx always opens a DEFERRED transaction with this
		// driver, so the lock mode is requested with raw SQL.
		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return fmt.Errorf("failed to begin immediate transaction: %w", err)
		}

		// Use context.Background() for ROLLBACK to ensure cleanup happens even if ctx is canceled
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
		}()

		err = conn.QueryRowContext(ctx, `
			SELECT id FROM test_cases
			WHERE user_story_id = ? AND content = ?
			ORDER BY id
			LIMIT 1
		`, storyID, content).Scan(&id)
		switch {
		case err == nil:
			wasNew = false
		case err == sql.ErrNoRows:
			res, err := conn.ExecContext(ctx,
				`INSERT INTO test_cases (user_story_id, content) VALUES (?, ?)`, storyID, content)
			if err != nil {
				return fmt.Errorf("failed to insert test case: %w", err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read test case id: %w", err)
			}
			wasNew = true
		default:
			return fmt.Errorf("failed to look up existing test case: %w", err)
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		committed = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, wasNew, nil
}

// ListTestCases returns every document for the story, newest first
func (s *SQLiteStorage) ListTestCases(ctx context.Context, storyID int64) ([]*types.TestCaseDocument, error) {
	var docs []*types.TestCaseDocument
	err := s.withDB(ctx, "list test cases", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT `+testCaseColumns+` FROM test_cases
			WHERE user_story_id = ?
			ORDER BY generated_at DESC, id DESC
		`, storyID)
		if err != nil {
			return fmt.Errorf("failed to query test cases: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var doc types.TestCaseDocument
			if err := rows.Scan(&doc.ID, &doc.StoryID, &doc.Content, &doc.GeneratedAt); err != nil {
				return fmt.Errorf("failed to scan test case: %w", err)
			}
			docs = append(docs, &doc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// LatestTestCase returns the most recently generated document, or (nil, nil)
func (s *SQLiteStorage) LatestTestCase(ctx context.Context, storyID int64) (*types.TestCaseDocument, error) {
	var doc *types.TestCaseDocument
	err := s.withDB(ctx, "latest test case", func(db *sql.DB) error {
		var d types.TestCaseDocument
		err := db.QueryRowContext(ctx, `
			SELECT `+testCaseColumns+` FROM test_cases
			WHERE user_story_id = ?
			ORDER BY generated_at DESC, id DESC
			LIMIT 1
		`, storyID).Scan(&d.ID, &d.StoryID, &d.Content, &d.GeneratedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to scan test case: %w", err)
		}
		doc = &d
		return nil
	})
	return doc, err
}
