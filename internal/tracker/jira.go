package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/steveyegge/qa-agent/internal/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// JiraConfig holds Jira connection settings
type JiraConfig struct {
	Server   string // Base URL, e.g. https://example.atlassian.net
	Username string
	APIToken string

	// SubtaskType is the issue type used for filed scenarios (default: "Sub-task")
	SubtaskType string

	// FilingRate caps sub-task creation in requests per second (0 = unlimited).
	// This paces bursts of scenarios; it is not a retry policy.
	FilingRate float64
}

// JiraTracker implements Tracker and Commenter against the Jira REST API
type JiraTracker struct {
	client      *jira.Client
	subtaskType string
	limiter     *rate.Limiter
	logger      *zap.Logger
	now         func() time.Time
}

// Compile-time checks
var (
	_ Tracker   = (*JiraTracker)(nil)
	_ Commenter = (*JiraTracker)(nil)
)

// NewJiraTracker connects to Jira with basic auth (username + API token)
func NewJiraTracker(cfg JiraConfig, logger *zap.Logger) (*JiraTracker, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("jira server URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.APIToken,
	}
	client, err := jira.NewClient(tp.Client(), cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	subtaskType := cfg.SubtaskType
	if subtaskType == "" {
		subtaskType = "Sub-task"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.FilingRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FilingRate), 1)
	}

	logger.Info("Jira tracker initialized", zap.String("server", cfg.Server))

	return &JiraTracker{
		client:      client,
		subtaskType: subtaskType,
		limiter:     limiter,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// searchPath is the enhanced JQL search endpoint. Jira Cloud removed the
// older rest/api/2/search that go-jira's Issue.Search calls.
const searchPath = "rest/api/3/search/jql"

type searchResult struct {
	Issues []searchIssue `json:"issues"`
}

type searchIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"fields"`
}

// SearchStories runs the JQL built from filter and maps issues to stories.
// A missing description becomes the empty string.
func (j *JiraTracker) SearchStories(ctx context.Context, filter SearchFilter) ([]types.UserStory, error) {
	if filter.ProjectKey == "" {
		return nil, fmt.Errorf("project key is required")
	}
	maxResults := filter.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	jql := BuildJQL(filter, j.now())
	j.logger.Debug("Searching stories", zap.String("jql", jql))

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("fields", "summary,description,status")

	req, err := j.client.NewRequestWithContext(ctx, http.MethodGet, searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	var result searchResult
	resp, err := j.client.Do(req, &result)
	if err != nil {
		return nil, fmt.Errorf("jira search failed: %w", jira.NewJiraError(resp, err))
	}

	stories := make([]types.UserStory, 0, len(result.Issues))
	for _, issue := range result.Issues {
		stories = append(stories, types.UserStory{
			Key:         issue.Key,
			Title:       issue.Fields.Summary,
			Description: descriptionText(issue.Fields.Description),
			Status:      issue.Fields.Status.Name,
		})
	}

	j.logger.Info("Stories found", zap.Int("count", len(stories)), zap.String("project", filter.ProjectKey))
	return stories, nil
}

// CreateChildTask creates a sub-task of parentKey in the parent's project
func (j *JiraTracker) CreateChildTask(ctx context.Context, parentKey, summary, description string) (*ChildTask, error) {
	project, err := projectOf(parentKey)
	if err != nil {
		return nil, err
	}

	if err := j.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("filing rate limiter: %w", err)
	}

	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: project},
			Type:        jira.IssueType{Name: j.subtaskType},
			Parent:      &jira.Parent{Key: parentKey},
			Summary:     truncateSummary(summary),
			Description: description,
		},
	}

	created, resp, err := j.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return nil, fmt.Errorf("failed to create sub-task under %s: %w", parentKey, jira.NewJiraError(resp, err))
	}

	j.logger.Info("Sub-task created",
		zap.String("parent", parentKey),
		zap.String("key", created.Key),
		zap.String("summary", issue.Fields.Summary))

	return &ChildTask{ID: created.ID, Key: created.Key}, nil
}

// AddComment posts body as a comment on issueKey
func (j *JiraTracker) AddComment(ctx context.Context, issueKey, body string) error {
	_, resp, err := j.client.Issue.AddCommentWithContext(ctx, issueKey, &jira.Comment{Body: body})
	if err != nil {
		return fmt.Errorf("failed to comment on %s: %w", issueKey, jira.NewJiraError(resp, err))
	}
	return nil
}

// Jira rejects summaries longer than 255 characters
const maxSummaryLen = 255

func truncateSummary(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxSummaryLen {
		return s
	}
	cut := maxSummaryLen - 3
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// adfNode is a node of an Atlassian Document Format tree
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// descriptionText flattens a v3 description to plain text. The API returns
// ADF documents, null for a missing description, and plain strings on some
// servers.
func descriptionText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var b strings.Builder
	writeADF(&b, doc)
	return strings.TrimRight(b.String(), "\n")
}

func writeADF(b *strings.Builder, n adfNode) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
		return
	case "hardBreak":
		b.WriteString("\n")
		return
	}
	for _, c := range n.Content {
		writeADF(b, c)
	}
	switch n.Type {
	case "paragraph", "heading", "listItem", "codeBlock", "rule":
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
	}
}
