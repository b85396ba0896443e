package types

import (
	"fmt"
	"strings"
	"time"
)

// UserStory is a tracker story as the agent stores it.
// Key is assigned by the tracker and is unique; ID is the store's surrogate
// id and never changes once assigned.
type UserStory struct {
	ID          int64     `json:"id"`
	Key         string    `json:"jira_key"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the fields the store needs to persist a story.
// Only the key is required. Other fields are stored as received.
func (s *UserStory) Validate() error {
	if strings.TrimSpace(s.Key) == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

// Normalize returns a copy with every text field folded to ASCII.
// Diacritics are removed, not transliterated.
func (s UserStory) Normalize() UserStory {
	s.Key = FoldASCII(s.Key)
	s.Title = FoldASCII(s.Title)
	s.Description = FoldASCII(s.Description)
	s.Status = FoldASCII(s.Status)
	return s
}

// TestCaseDocument is one block of generated test-case text for a story.
type TestCaseDocument struct {
	ID          int64     `json:"id"`
	StoryID     int64     `json:"user_story_id"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Scenario is a named block of a TestCaseDocument. It is derived on demand
// and never stored.
type Scenario struct {
	Ordinal int    `json:"ordinal"`
	Summary string `json:"summary"`
	Body    string `json:"body"`
}

// SyncLogEntry marks one completed fetch cycle.
type SyncLogEntry struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	StoriesFound int       `json:"stories_found"`
	CompletedAt  time.Time `json:"completed_at"`
}
