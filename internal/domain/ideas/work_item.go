package ideas

import "github.com/google/uuid"

// WorkItem is what the coordinator hands to the dispatch layer, one per
// worker type per run. ProgressID pins the item to the row its own run
// created.
type WorkItem struct {
	IdeaID     uuid.UUID  `json:"idea_id"`
	RunID      uuid.UUID  `json:"run_id"`
	ProgressID uuid.UUID  `json:"progress_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	WorkerType WorkerType `json:"worker_type"`
}
