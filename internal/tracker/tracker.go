// Package tracker talks to the issue tracker: it searches for user stories
// and files generated scenarios back as sub-tasks.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/qa-agent/internal/types"
)

// Tracker is the issue-tracker collaborator the pipeline depends on
type Tracker interface {
	// SearchStories returns stories matching the filter
	SearchStories(ctx context.Context, filter SearchFilter) ([]types.UserStory, error)

	// CreateChildTask files a sub-task under parentKey
	CreateChildTask(ctx context.Context, parentKey, summary, description string) (*ChildTask, error)
}

// Commenter is implemented by trackers that can comment on an issue
type Commenter interface {
	AddComment(ctx context.Context, issueKey, body string) error
}

// SearchFilter selects candidate stories
type SearchFilter struct {
	ProjectKey string
	Status     string
	IssueType  string // Default: "Story"

	// SinceDaysAgo limits results to stories created in the last N days.
	// 0 disables the date filter.
	SinceDaysAgo int

	MaxResults int // Default: 50
}

// ChildTask is the handle of a created sub-task
type ChildTask struct {
	ID  string
	Key string
}

const (
	defaultIssueType  = "Story"
	defaultMaxResults = 50
)

// BuildJQL renders the filter as a JQL query. now anchors the lookback
// window; the date is compared at day granularity.
func BuildJQL(filter SearchFilter, now time.Time) string {
	issueType := filter.IssueType
	if issueType == "" {
		issueType = defaultIssueType
	}

	parts := []string{
		fmt.Sprintf("project = %s", filter.ProjectKey),
		fmt.Sprintf("issuetype = %s", quoteJQL(issueType)),
	}
	if filter.Status != "" {
		parts = append(parts, fmt.Sprintf("status = %s", quoteJQL(filter.Status)))
	}
	if filter.SinceDaysAgo > 0 {
		since := now.AddDate(0, 0, -filter.SinceDaysAgo).Format("2006-01-02")
		parts = append(parts, fmt.Sprintf("created >= %s", quoteJQL(since)))
	}
	return strings.Join(parts, " AND ")
}

// quoteJQL wraps a value in double quotes, escaping embedded quotes
func quoteJQL(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// projectOf derives the project key from an issue key ("KCA-12" → "KCA")
func projectOf(issueKey string) (string, error) {
	project, num, ok := strings.Cut(issueKey, "-")
	if !ok || project == "" || num == "" {
		return "", fmt.Errorf("invalid issue key %q (expected PROJECT-N)", issueKey)
	}
	return project, nil
}
