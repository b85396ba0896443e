package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/qa-agent/internal/types"
)

const storyColumns = `id, jira_key, title, description, status, created_at`

// UpsertStory inserts a story or, when the key is already stored, updates
// title, description and status in place. The surrogate id of an existing
// row is returned unchanged.
func (s *SQLiteStorage) UpsertStory(ctx context.Context, key, title, description, status string) (int64, error) {
	story := types.UserStory{Key: key, Title: title, Description: description, Status: status}
	if err := story.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}

	var id int64
	err := s.withDB(ctx, "upsert story", func(db *sql.DB) error {
		// Single statement: the unique key resolves concurrent upserts
		return db.QueryRowContext(ctx, `
			INSERT INTO user_stories (jira_key, title, description, status)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(jira_key) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				status = excluded.status
			RETURNING id
		`, key, title, description, status).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetStory returns the story with the given surrogate id, or (nil, nil)
func (s *SQLiteStorage) GetStory(ctx context.Context, id int64) (*types.UserStory, error) {
	var story *types.UserStory
	err := s.withDB(ctx, "get story", func(db *sql.DB) error {
		var err error
		story, err = scanStory(db.QueryRowContext(ctx,
			`SELECT `+storyColumns+` FROM user_stories WHERE id = ?`, id))
		return err
	})
	return story, err
}

// GetStoryByKey returns the story with the given tracker key, or (nil, nil)
func (s *SQLiteStorage) GetStoryByKey(ctx context.Context, key string) (*types.UserStory, error) {
	var story *types.UserStory
	err := s.withDB(ctx, "get story by key", func(db *sql.DB) error {
		var err error
		story, err = scanStory(db.QueryRowContext(ctx,
			`SELECT `+storyColumns+` FROM user_stories WHERE jira_key = ?`, key))
		return err
	})
	return story, err
}

// ListStories returns all stories, newest first
func (s *SQLiteStorage) ListStories(ctx context.Context) ([]*types.UserStory, error) {
	var stories []*types.UserStory
	err := s.withDB(ctx, "list stories", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT `+storyColumns+` FROM user_stories ORDER BY created_at DESC, id DESC`)
		if err != nil {
			return fmt.Errorf("failed to query stories: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var st types.UserStory
			if err := rows.Scan(&st.ID, &st.Key, &st.Title, &st.Description, &st.Status, &st.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan story: %w", err)
			}
			stories = append(stories, &st)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return stories, nil
}

// DeleteStory removes the story row. Its test cases are left untouched.
func (s *SQLiteStorage) DeleteStory(ctx context.Context, id int64) error {
	return s.withDB(ctx, "delete story", func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM user_stories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete story %d: %w", id, err)
		}
		return nil
	})
}

func scanStory(row *sql.Row) (*types.UserStory, error) {
	var st types.UserStory
	err := row.Scan(&st.ID, &st.Key, &st.Title, &st.Description, &st.Status, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan story: %w", err)
	}
	return &st, nil
}
