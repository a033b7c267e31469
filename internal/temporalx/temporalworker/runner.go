package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/temporalx"
	"github.com/yungbote/ideaforge-backend/internal/temporalx/researchrun"
)

type Runner struct {
	log *logger.Logger

	tc          temporalsdkclient.Client
	cfg         temporalx.Config
	runner      *jobrt.Runner
	concurrency int
	startWait   time.Duration
}

func NewRunner(
	log *logger.Logger,
	tc temporalsdkclient.Client,
	cfg temporalx.Config,
	runner *jobrt.Runner,
	concurrency int,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if runner == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	cfg = cfg.WithDefaults()
	return &Runner{
		log:         log.With("component", "TemporalWorker"),
		tc:          tc,
		cfg:         cfg,
		runner:      runner,
		concurrency: concurrency,
		startWait:   cfg.DialMaxWait,
	}, nil
}

// Start polls the task queue until ctx is done. It retries worker start
// for up to the dial wait so a cold Temporal frontend does not kill the
// process.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	deadline := time.Now().Add(r.startWait)
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}

		if r.startWait <= 0 || time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}

		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)
		time.Sleep(r.cfg.Backoff(attempt))
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency * len(r.runner.Registry().Types()),
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})
	acts := &researchrun.Activities{Log: r.log, Runner: r.runner}
	w.RegisterWorkflowWithOptions(researchrun.Workflow, workflow.RegisterOptions{Name: researchrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: researchrun.ActivityExecute})
	w.RegisterActivityWithOptions(acts.MarkFailed, activity.RegisterOptions{Name: researchrun.ActivityMarkFailed})
	return w
}
