package types

import (
	"fmt"
	"time"
)

// Outcome is the result of processing one story in a cycle
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeSkipped means the story already had test cases. It counts as success.
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// IsValid checks if the outcome value is valid
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSucceeded, OutcomeSkipped, OutcomeFailed:
		return true
	}
	return false
}

// OK reports whether the outcome counts as success
func (o Outcome) OK() bool {
	return o == OutcomeSucceeded || o == OutcomeSkipped
}

// StoryResult describes what happened to one story during a cycle
type StoryResult struct {
	Key             string  `json:"key"`
	Outcome         Outcome `json:"outcome"`
	Reason          string  `json:"reason,omitempty"`
	StoryID         int64   `json:"story_id,omitempty"`
	DocumentID      int64   `json:"document_id,omitempty"`
	ScenariosFiled  int     `json:"scenarios_filed"`
	ScenariosFailed int     `json:"scenarios_failed"`
}

// Succeeded builds a success result
func Succeeded(key string) StoryResult {
	return StoryResult{Key: key, Outcome: OutcomeSucceeded}
}

// Skipped builds a result for a story that already has test cases
func Skipped(key string, storyID int64, reason string) StoryResult {
	return StoryResult{Key: key, Outcome: OutcomeSkipped, StoryID: storyID, Reason: reason}
}

// Failed builds a failure result from err
func Failed(key string, err error) StoryResult {
	return StoryResult{Key: key, Outcome: OutcomeFailed, Reason: err.Error()}
}

// CycleReport aggregates the results of one fetch-process cycle
type CycleReport struct {
	RunID        string        `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	StoriesFound int           `json:"stories_found"`
	FetchErr     error         `json:"-"`
	Results      []StoryResult `json:"results"`
}

// CycleCounts tallies results by outcome
type CycleCounts struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Counts tallies the per-story outcomes
func (r *CycleReport) Counts() CycleCounts {
	var c CycleCounts
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeSucceeded:
			c.Succeeded++
		case OutcomeSkipped:
			c.Skipped++
		case OutcomeFailed:
			c.Failed++
		}
	}
	return c
}

// Duration returns how long the cycle took
func (r *CycleReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String returns a one-line summary of the cycle
func (r *CycleReport) String() string {
	if r.FetchErr != nil {
		return fmt.Sprintf("cycle %s aborted: %v", r.RunID, r.FetchErr)
	}
	c := r.Counts()
	return fmt.Sprintf("cycle %s: found=%d succeeded=%d skipped=%d failed=%d duration=%v",
		r.RunID, r.StoriesFound, c.Succeeded, c.Skipped, c.Failed, r.Duration().Round(time.Millisecond))
}
