// Package pipeline drives the fetch, generate, persist and file cycle.
//
// One Orchestrator owns one cycle at a time. Stories are processed
// sequentially; a failure in one story is recorded in the cycle report and
// never stops the remaining stories.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/qa-agent/internal/ai"
	"github.com/steveyegge/qa-agent/internal/scenario"
	"github.com/steveyegge/qa-agent/internal/storage"
	"github.com/steveyegge/qa-agent/internal/tracker"
	"github.com/steveyegge/qa-agent/internal/types"
)

// DefaultInterval is the pause between cycles when Run is used
const DefaultInterval = 5 * time.Minute

// Config holds the orchestrator's collaborators and settings
type Config struct {
	Store     storage.Storage    // Required
	Tracker   tracker.Tracker    // Required
	Generator ai.Generator       // Required
	Splitter  *scenario.Splitter // Default: scenario.NewSplitter()
	Logger    *zap.Logger        // Default: no-op

	ProjectKey      string        // Required
	Status          string        // Story status to fetch (empty = any)
	IssueType       string        // Default: Story
	LookbackDays    int           // 0 disables the created-date filter
	Interval        time.Duration // Default: 5 minutes
	FileScenarios   bool          // Create one child task per scenario
	CommentOnParent bool          // Post the whole document on the parent story
}

// Validate checks that the required collaborators are present
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}
	if c.Generator == nil {
		return fmt.Errorf("generator is required")
	}
	if c.ProjectKey == "" {
		return fmt.Errorf("project key is required")
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("lookback days must be non-negative (got %d)", c.LookbackDays)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must be non-negative (got %v)", c.Interval)
	}
	return nil
}

// Orchestrator runs processing cycles
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger
	newID  func() string
}

// New creates an orchestrator after validating cfg
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if cfg.Splitter == nil {
		cfg.Splitter = scenario.NewSplitter()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}

	return &Orchestrator{
		cfg:    cfg,
		logger: cfg.Logger,
		newID:  uuid.NewString,
	}, nil
}

// Run executes a cycle immediately and then one per interval until ctx is
// cancelled. Cycles never overlap. Returns ctx.Err() on cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline started",
		zap.String("project", o.cfg.ProjectKey),
		zap.Duration("interval", o.cfg.Interval))

	o.RunOnce(ctx)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("pipeline stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			o.RunOnce(ctx)
		}
	}
}

// RunOnce performs one fetch and processes every fetched story.
// It never returns an error: failures are captured in the report.
func (o *Orchestrator) RunOnce(ctx context.Context) *types.CycleReport {
	report := &types.CycleReport{
		RunID:     o.newID(),
		StartedAt: time.Now(),
	}
	log := o.logger.With(zap.String("run_id", report.RunID))
	defer func() {
		report.FinishedAt = time.Now()
		c := report.Counts()
		log.Info("cycle finished",
			zap.Int("found", report.StoriesFound),
			zap.Int("succeeded", c.Succeeded),
			zap.Int("skipped", c.Skipped),
			zap.Int("failed", c.Failed),
			zap.Bool("aborted", report.FetchErr != nil),
			zap.Duration("duration", report.Duration()))
	}()

	stories, err := o.cfg.Tracker.SearchStories(ctx, tracker.SearchFilter{
		ProjectKey:   o.cfg.ProjectKey,
		Status:       o.cfg.Status,
		IssueType:    o.cfg.IssueType,
		SinceDaysAgo: o.cfg.LookbackDays,
	})
	if err != nil {
		report.FetchErr = types.NewCollaboratorError(types.CollaboratorTracker, "search stories", err)
		log.Error("failed to fetch stories", zap.String("op", "search stories"), zap.Error(report.FetchErr))
		return report
	}
	report.StoriesFound = len(stories)
	log.Info("stories fetched", zap.Int("count", len(stories)))

	if err := o.cfg.Store.RecordSyncCompleted(ctx, report.RunID, len(stories)); err != nil {
		log.Warn("failed to record sync", zap.String("op", "record sync"), zap.Error(err))
	}

	for _, story := range stories {
		if ctx.Err() != nil {
			log.Info("cycle interrupted", zap.Error(ctx.Err()))
			break
		}
		report.Results = append(report.Results, o.processStory(ctx, log, story))
	}

	return report
}

// processStory runs one story through the pipeline.
// Panics are contained here and reported as failures.
func (o *Orchestrator) processStory(ctx context.Context, log *zap.Logger, story types.UserStory) (result types.StoryResult) {
	log = log.With(zap.String("story_key", story.Key))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing story",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			result = types.Failed(story.Key, fmt.Errorf("panic: %v", r))
		}
	}()

	normalized := story.Normalize()

	storyID, err := o.cfg.Store.UpsertStory(ctx, normalized.Key, normalized.Title, normalized.Description, normalized.Status)
	if err != nil {
		return o.fail(log, story.Key, "upsert story", err)
	}

	existing, err := o.cfg.Store.ListTestCases(ctx, storyID)
	if err != nil {
		return o.fail(log, story.Key, "list test cases", err)
	}
	if len(existing) > 0 {
		log.Debug("story already has test cases", zap.Int64("story_id", storyID), zap.Int("documents", len(existing)))
		return types.Skipped(story.Key, storyID, "test cases already exist")
	}

	storyText := ai.BuildStoryText(normalized.Title, normalized.Description)
	content, err := o.cfg.Generator.GenerateTestCases(ctx, storyText)
	if err == nil && content == "" {
		err = types.ErrEmptyGeneration
	}
	if err != nil {
		return o.fail(log, story.Key, "generate test cases",
			types.NewCollaboratorError(types.CollaboratorGenerator, "generate test cases", err))
	}

	docID, wasNew, err := o.cfg.Store.InsertTestCaseIfNew(ctx, storyID, content)
	if err != nil {
		return o.fail(log, story.Key, "insert test case", err)
	}
	if !wasNew {
		log.Info("identical test cases already stored", zap.Int64("document_id", docID))
	}

	result = types.Succeeded(story.Key)
	result.StoryID = storyID
	result.DocumentID = docID

	scenarios := slices.Collect(o.cfg.Splitter.Split(content))
	log.Info("test cases generated",
		zap.Int64("story_id", storyID),
		zap.Int64("document_id", docID),
		zap.Int("scenarios", len(scenarios)))

	if o.cfg.FileScenarios {
		for _, sc := range scenarios {
			if ctx.Err() != nil {
				break
			}
			task, err := o.cfg.Tracker.CreateChildTask(ctx, story.Key, sc.Summary, scenario.RenderJiraMarkup(sc.Body))
			if err != nil {
				result.ScenariosFailed++
				log.Warn("failed to file scenario",
					zap.String("op", "create child task"),
					zap.Int("ordinal", sc.Ordinal),
					zap.String("summary", sc.Summary),
					zap.Error(types.NewCollaboratorError(types.CollaboratorTracker, "create child task", err)))
				continue
			}
			result.ScenariosFiled++
			log.Info("scenario filed",
				zap.Int("ordinal", sc.Ordinal),
				zap.String("task_key", task.Key))
		}
	}

	if o.cfg.CommentOnParent {
		o.commentOnParent(ctx, log, story.Key, content)
	}

	return result
}

func (o *Orchestrator) commentOnParent(ctx context.Context, log *zap.Logger, key, content string) {
	commenter, ok := o.cfg.Tracker.(tracker.Commenter)
	if !ok {
		log.Debug("tracker does not support comments")
		return
	}
	if err := commenter.AddComment(ctx, key, scenario.RenderJiraMarkup(content)); err != nil {
		log.Warn("failed to comment on story",
			zap.String("op", "add comment"),
			zap.Error(types.NewCollaboratorError(types.CollaboratorTracker, "add comment", err)))
	}
}

func (o *Orchestrator) fail(log *zap.Logger, key, op string, err error) types.StoryResult {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	switch {
	case types.IsPersistenceError(err):
		fields = append(fields, zap.String("kind", "persistence"))
	case types.IsCollaboratorError(err):
		fields = append(fields, zap.String("kind", "collaborator"))
	case errors.Is(err, context.Canceled):
		fields = append(fields, zap.String("kind", "cancelled"))
	}
	log.Error("story failed", fields...)
	return types.Failed(key, fmt.Errorf("%s: %w", op, err))
}
