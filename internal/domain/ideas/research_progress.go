package ideas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProgressStatus string

const (
	ProgressPending   ProgressStatus = "PENDING"
	ProgressRunning   ProgressStatus = "RUNNING"
	ProgressCompleted ProgressStatus = "COMPLETED"
	ProgressFailed    ProgressStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ProgressStatus) IsTerminal() bool {
	return s == ProgressCompleted || s == ProgressFailed
}

// LiveProgressStatuses are the non-terminal statuses.
var LiveProgressStatuses = []ProgressStatus{ProgressPending, ProgressRunning}

// ResearchProgress is one row per (idea, worker type) per run. Only the
// worker holding the matching WorkItem mutates it after creation.
type ResearchProgress struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	IdeaID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"idea_id"`
	RunID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"run_id"`
	WorkerType   WorkerType     `gorm:"column:worker_type;not null;index" json:"worker_type"`
	Status       ProgressStatus `gorm:"column:status;not null;index" json:"status"`
	Message      string         `gorm:"column:message" json:"message,omitempty"`
	ResultsCount int            `gorm:"column:results_count;not null" json:"results_count"`
	Error        string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt    time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (ResearchProgress) TableName() string { return "research_progress" }

func (p *ResearchProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProgressOutcome is the result of a guarded progress update. RowMissing is
// expected when a newer run deleted the row or it already reached a terminal
// state; callers treat it as a silent no-op.
type ProgressOutcome int

const (
	ProgressUpdated ProgressOutcome = iota + 1
	ProgressRowMissing
)

func (o ProgressOutcome) String() string {
	switch o {
	case ProgressUpdated:
		return "updated"
	case ProgressRowMissing:
		return "row_missing"
	}
	return "unknown"
}
