package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	jobtypes "github.com/yungbote/ideaforge-backend/internal/domain/jobs"
	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/research"
)

// Policy is the delivery contract of the database queue.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	Retention   repos.RetentionPolicy
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: 2 * time.Second,
		Retention: repos.RetentionPolicy{
			CompletedAge:   24 * time.Hour,
			CompletedCount: 1000,
			FailedAge:      7 * 24 * time.Hour,
		},
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = d.BackoffBase
	}
	return p
}

// Backoff is the delay before redelivering after the given failed attempt:
// base, 2*base, 4*base, ...
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}
	return p.BackoffBase * time.Duration(1<<(attempt-1))
}

// JobID is the human-readable handle "<ideaId>-<workerType>-<unixMillis>".
func JobID(item ideas.WorkItem, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", item.IdeaID, item.WorkerType, at.UnixMilli())
}

// Dispatcher enqueues work items into the research_job table.
type Dispatcher struct {
	log    *logger.Logger
	repo   repos.JobRunRepo
	policy Policy
	now    func() time.Time
}

func NewDispatcher(baseLog *logger.Logger, repo repos.JobRunRepo, policy Policy) *Dispatcher {
	return &Dispatcher{
		log:    baseLog.With("component", "QueueDispatcher"),
		repo:   repo,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
}

func (d *Dispatcher) Policy() Policy { return d.policy }

func (d *Dispatcher) Enqueue(ctx context.Context, item ideas.WorkItem) (research.JobHandle, error) {
	if !item.WorkerType.Valid() {
		return research.JobHandle{}, fmt.Errorf("enqueue: unknown worker type %q", item.WorkerType)
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return research.JobHandle{}, fmt.Errorf("enqueue: encode payload: %w", err)
	}
	now := d.now().UTC()
	job := &jobtypes.JobRun{
		ID:          JobID(item, now),
		OwnerUserID: item.UserID,
		JobType:     item.WorkerType.String(),
		EntityID:    item.IdeaID,
		Status:      jobtypes.JobQueued,
		MaxAttempts: d.policy.MaxAttempts,
		RunAfter:    now,
		Payload:     datatypes.JSON(payload),
	}
	if _, err := d.repo.Create(dbctx.Context{Ctx: ctxutil.Default(ctx)}, []*jobtypes.JobRun{job}); err != nil {
		return research.JobHandle{}, fmt.Errorf("enqueue: %w", err)
	}
	d.log.Debug("research job enqueued", "job_id", job.ID, "worker_type", job.JobType)
	return research.JobHandle{ID: job.ID, WorkerType: item.WorkerType}, nil
}

// DecodeItem reads the work item a job was enqueued with.
func DecodeItem(job *jobtypes.JobRun) (ideas.WorkItem, error) {
	var item ideas.WorkItem
	if job == nil {
		return item, fmt.Errorf("nil job")
	}
	if err := json.Unmarshal(job.Payload, &item); err != nil {
		return item, fmt.Errorf("decode job %s payload: %w", job.ID, err)
	}
	if !item.WorkerType.Valid() {
		return item, fmt.Errorf("job %s has unknown worker type %q", job.ID, item.WorkerType)
	}
	return item, nil
}
