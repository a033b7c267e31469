package temporalx

import (
	"context"
	"fmt"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/jobs/queue"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/research"
	"github.com/yungbote/ideaforge-backend/internal/temporalx/researchrun"
)

// Dispatcher starts one research workflow per work item.
type Dispatcher struct {
	log    *logger.Logger
	tc     temporalsdkclient.Client
	cfg    Config
	policy queue.Policy
	now    func() time.Time
}

func NewDispatcher(log *logger.Logger, tc temporalsdkclient.Client, cfg Config, policy queue.Policy) (*Dispatcher, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	def := queue.DefaultPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = def.BackoffBase
	}
	return &Dispatcher{
		log:    log.With("component", "TemporalDispatcher"),
		tc:     tc,
		cfg:    cfg.WithDefaults(),
		policy: policy,
		now:    time.Now,
	}, nil
}

func (d *Dispatcher) Enqueue(ctx context.Context, item ideas.WorkItem) (research.JobHandle, error) {
	id := queue.JobID(item, d.now().UTC())
	run, err := d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        id,
		TaskQueue: d.cfg.TaskQueue,
	}, researchrun.WorkflowName, researchrun.Input{
		Item:          item,
		MaxAttempts:   d.policy.MaxAttempts,
		BackoffBaseMS: d.policy.BackoffBase.Milliseconds(),
	})
	if err != nil {
		return research.JobHandle{}, fmt.Errorf("start research workflow: %w", err)
	}
	d.log.Debug("research workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return research.JobHandle{ID: run.GetID(), WorkerType: item.WorkerType}, nil
}
