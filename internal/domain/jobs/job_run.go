package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobRun is one dispatched work item in the database-backed queue. The
// primary key is the human-readable handle "<idea>-<worker>-<unix millis>".
type JobRun struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityID    uuid.UUID      `gorm:"type:uuid;column:entity_id;not null;index" json:"entity_id"`
	Status      JobStatus      `gorm:"column:status;not null;index" json:"status"`
	Attempts    int            `gorm:"column:attempts;not null" json:"attempts"`
	MaxAttempts int            `gorm:"column:max_attempts;not null" json:"max_attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	RunAfter    time.Time      `gorm:"column:run_after;not null;index" json:"run_after"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at;index" json:"finished_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (JobRun) TableName() string { return "research_job" }

// IsFinal reports whether the attempt counter has reached the budget.
func (j *JobRun) IsFinal() bool {
	return j != nil && j.MaxAttempts > 0 && j.Attempts >= j.MaxAttempts
}
