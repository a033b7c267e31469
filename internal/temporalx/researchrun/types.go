package researchrun

import "github.com/yungbote/ideaforge-backend/internal/domain/ideas"

const (
	WorkflowName       = "research_item"
	ActivityExecute    = "research_execute"
	ActivityMarkFailed = "research_mark_failed"

	// failureTypeTerminal tags an Execute error whose row is already FAILED.
	failureTypeTerminal = "research_failed"
)

// Input is the workflow argument. The retry budget travels with the item so
// a policy change never affects runs already in flight.
type Input struct {
	Item          ideas.WorkItem `json:"item"`
	MaxAttempts   int            `json:"max_attempts"`
	BackoffBaseMS int64          `json:"backoff_base_ms"`
}

type Result struct {
	ProgressOutcome string `json:"progress_outcome"`
	Status          string `json:"status,omitempty"`
	ResultsCount    int    `json:"results_count"`
}

// MarkFailedInput closes an item's row after its attempt budget ran out
// without a terminal write (timeouts, lost heartbeats, crashed workers).
type MarkFailedInput struct {
	Item   ideas.WorkItem `json:"item"`
	Reason string         `json:"reason"`
}
