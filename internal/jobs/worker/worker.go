package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	jobtypes "github.com/yungbote/ideaforge-backend/internal/domain/jobs"
	"github.com/yungbote/ideaforge-backend/internal/jobs/queue"
	"github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

// Sweeper recovers runs whose final reconcile was lost.
type Sweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

type Config struct {
	// Concurrency bounds in-flight jobs per worker type.
	Concurrency   int
	PollInterval  time.Duration
	StaleRunning  time.Duration
	SweepInterval time.Duration
	SweepLimit    int
	Policy        queue.Policy
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 10 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = 200
	}
	if c.Policy.MaxAttempts <= 0 || c.Policy.BackoffBase <= 0 {
		def := queue.DefaultPolicy()
		if c.Policy.MaxAttempts <= 0 {
			c.Policy.MaxAttempts = def.MaxAttempts
		}
		if c.Policy.BackoffBase <= 0 {
			c.Policy.BackoffBase = def.BackoffBase
		}
	}
	return c
}

// Worker polls research_job and runs claimed items through the Runner with
// per-worker-type bounded parallelism.
type Worker struct {
	log     *logger.Logger
	repo    repos.JobRunRepo
	runner  *runtime.Runner
	sweeper Sweeper
	cfg     Config

	types []ideas.WorkerType
	slots map[ideas.WorkerType]*semaphore.Weighted
	wg    sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, runner *runtime.Runner, sweeper Sweeper, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	types := runner.Registry().Types()
	slots := make(map[ideas.WorkerType]*semaphore.Weighted, len(types))
	for _, wt := range types {
		slots[wt] = semaphore.NewWeighted(int64(cfg.Concurrency))
	}
	return &Worker{
		log:     baseLog.With("component", "JobWorker"),
		repo:    repo,
		runner:  runner,
		sweeper: sweeper,
		cfg:     cfg,
		types:   types,
		slots:   slots,
	}
}

// Start launches the poll and maintenance loops. They stop when ctx is
// done; Wait blocks until in-flight jobs have returned.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting research worker pool",
		"concurrency_per_type", w.cfg.Concurrency,
		"worker_types", len(w.types),
	)
	w.wg.Add(2)
	go w.pollLoop(ctx)
	go w.maintenanceLoop(ctx)
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) pollLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker poll loop stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims jobs while slots and due jobs are available.
func (w *Worker) drain(ctx context.Context) {
	for _, wt := range w.types {
		sem := w.slots[wt]
		for ctx.Err() == nil {
			if !sem.TryAcquire(1) {
				break
			}
			job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, []string{wt.String()}, w.cfg.StaleRunning)
			if err != nil {
				sem.Release(1)
				w.log.Warn("ClaimNextRunnable failed", "worker_type", wt.String(), "error", err)
				break
			}
			if job == nil {
				sem.Release(1)
				break
			}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer sem.Release(1)
				w.process(ctx, job)
			}()
		}
	}
}

func (w *Worker) process(ctx context.Context, job *jobtypes.JobRun) {
	log := w.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	stopHB := w.startHeartbeat(ctx, job.ID)
	defer stopHB()

	// Bookkeeping writes must land even when ctx is canceled mid-run.
	bg := ctxutil.Detached(ctx)
	dbc := dbctx.Context{Ctx: bg}

	item, err := queue.DecodeItem(job)
	if err != nil {
		log.Error("Dropping undecodable research job", "error", err)
		_ = w.repo.MarkFailed(dbc, job.ID, err.Error())
		return
	}

	report, runErr := w.runner.Execute(ctx, item, runtime.Attempt{Number: job.Attempts, Max: job.MaxAttempts})
	switch {
	case runErr == nil:
		if err := w.repo.MarkSucceeded(dbc, job.ID); err != nil {
			log.Warn("MarkSucceeded failed", "error", err)
		}
	case ctx.Err() != nil:
		// Interrupted by shutdown; hand the job back without counting a delay.
		if err := w.repo.MarkRetry(dbc, job.ID, runErr.Error(), time.Now()); err != nil {
			log.Warn("MarkRetry failed", "error", err)
		}
	case report.Status == ideas.ProgressFailed || job.IsFinal():
		if report.Status != ideas.ProgressFailed && report.Outcome != ideas.ProgressRowMissing {
			// Budget spent with the row still live; close it so the idea can finish.
			if _, err := w.runner.MarkFailed(bg, item, runErr); err != nil {
				log.Error("Closing progress row after final attempt failed", "error", err)
			}
		}
		if err := w.repo.MarkFailed(dbc, job.ID, runErr.Error()); err != nil {
			log.Warn("MarkFailed failed", "error", err)
		}
	default:
		delay := w.cfg.Policy.Backoff(job.Attempts)
		if err := w.repo.MarkRetry(dbc, job.ID, runErr.Error(), time.Now().Add(delay)); err != nil {
			log.Warn("MarkRetry failed", "error", err)
		}
		log.Debug("research job scheduled for retry", "delay", delay.String())
	}
}

func (w *Worker) startHeartbeat(ctx context.Context, jobID string) func() {
	done := make(chan struct{})
	interval := w.cfg.StaleRunning / 3
	if interval <= 0 {
		interval = time.Minute
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx}, jobID); err != nil {
					w.log.Debug("job heartbeat failed", "job_id", jobID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (w *Worker) maintenanceLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.maintain(ctx)
		}
	}
}

func (w *Worker) maintain(ctx context.Context) {
	if w.sweeper != nil {
		closed, err := w.sweeper.Sweep(ctx, w.cfg.SweepLimit)
		if err != nil {
			w.log.Warn("reconcile sweep failed", "error", err)
		} else if closed > 0 {
			w.log.Info("reconcile sweep closed out runs", "count", closed)
		}
	}
	pruned, err := w.repo.Prune(dbctx.Context{Ctx: ctx}, w.cfg.Policy.Retention)
	if err != nil {
		w.log.Warn("job retention prune failed", "error", err)
		return
	}
	if pruned > 0 {
		w.log.Debug("pruned finished research jobs", "count", pruned)
	}
}
