package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/research"
)

// Outcome is what a handler produced. Count defaults to the number of
// results plus insights when left at zero.
type Outcome struct {
	Results  []*ideas.ResearchResult
	Insights []*ideas.AiInsight
	Count    int
}

func (o *Outcome) count() int {
	if o == nil {
		return 0
	}
	if o.Count > 0 {
		return o.Count
	}
	return len(o.Results) + len(o.Insights)
}

// Report describes what Execute did to the progress row.
type Report struct {
	Outcome      ideas.ProgressOutcome
	Status       ideas.ProgressStatus
	ResultsCount int
}

// AttemptObserver is told how long each attempt took and where it left the row.
type AttemptObserver interface {
	ObserveWorker(workerType, status string, dur time.Duration)
}

// Reconciler is the completion check run after every terminal transition.
type Reconciler interface {
	Reconcile(ctx context.Context, ideaID uuid.UUID) (bool, error)
}

// terminalWriteTimeout bounds the FAILED write, which runs detached from the
// attempt's context so a canceled or expired attempt can still close its row.
const terminalWriteTimeout = 10 * time.Second

var (
	errSuperseded     = errors.New("progress row superseded")
	ErrMissingHandler = errors.New("no handler registered")
)

// Runner is the worker harness: it owns the progress row of a work item for
// the duration of one attempt and guarantees at most one terminal transition.
type Runner struct {
	db         *gorm.DB
	log        *logger.Logger
	registry   *Registry
	progress   repos.ResearchProgressRepo
	results    repos.ResearchResultRepo
	insights   repos.AiInsightRepo
	reconciler Reconciler
	notifier   research.Notifier
	observer   AttemptObserver
	tracer     trace.Tracer
}

func NewRunner(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry *Registry,
	progress repos.ResearchProgressRepo,
	results repos.ResearchResultRepo,
	insights repos.AiInsightRepo,
	reconciler Reconciler,
	notifier research.Notifier,
) *Runner {
	if notifier == nil {
		notifier = research.NopNotifier()
	}
	return &Runner{
		db:         db,
		log:        baseLog.With("component", "ResearchRunner"),
		registry:   registry,
		progress:   progress,
		results:    results,
		insights:   insights,
		reconciler: reconciler,
		notifier:   notifier,
		tracer:     otel.Tracer("github.com/yungbote/ideaforge-backend/internal/jobs/runtime"),
	}
}

func (r *Runner) Registry() *Registry { return r.registry }

// SetObserver installs o for every later attempt. Call before workers start.
func (r *Runner) SetObserver(o AttemptObserver) { r.observer = o }

/*
Execute runs one attempt of item.

  - RowMissing when marking RUNNING: the run was superseded; returns a
    RowMissing report and no error so the dispatcher drops the item.
  - Handler error before the final attempt: the row stays RUNNING with a
    retry message and the error is returned for redelivery.
  - Handler or persistence error on the final attempt: the row goes FAILED
    and the error is returned.
  - Success: results, insights and the COMPLETED transition commit together.

Reconciliation follows every terminal transition.
*/
func (r *Runner) Execute(ctx context.Context, item ideas.WorkItem, attempt Attempt) (Report, error) {
	ctx = ctxutil.Default(ctx)
	ctx, span := r.tracer.Start(ctx, "research.worker."+item.WorkerType.String(),
		trace.WithAttributes(
			attribute.String("idea.id", item.IdeaID.String()),
			attribute.String("run.id", item.RunID.String()),
			attribute.String("worker.type", item.WorkerType.String()),
			attribute.Int("attempt.number", attempt.Number),
			attribute.Int("attempt.max", attempt.Max),
		))
	defer span.End()

	log := r.log.With(
		"idea_id", item.IdeaID.String(),
		"run_id", item.RunID.String(),
		"worker_type", item.WorkerType.String(),
		"attempt", attempt.Number,
	)

	start := time.Now()
	report, err := r.execute(ctx, log, item, attempt)
	if r.observer != nil {
		status := string(report.Status)
		if report.Outcome == ideas.ProgressRowMissing {
			status = "superseded"
		}
		r.observer.ObserveWorker(item.WorkerType.String(), status, time.Since(start))
	}
	span.SetAttributes(
		attribute.String("progress.outcome", report.Outcome.String()),
		attribute.String("progress.status", string(report.Status)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return report, err
}

func (r *Runner) execute(ctx context.Context, log *logger.Logger, item ideas.WorkItem, attempt Attempt) (Report, error) {
	now := time.Now().UTC()
	outcome, err := r.progress.UpdateLive(dbctx.Context{Ctx: ctx}, item.ProgressID, map[string]interface{}{
		"status":     ideas.ProgressRunning,
		"message":    fmt.Sprintf("Running %s...", item.WorkerType.DisplayName()),
		"error":      "",
		"updated_at": now,
	})
	if err != nil {
		err = fmt.Errorf("%w: mark running: %w", research.ErrPersistence, err)
		if attempt.IsFinal() {
			return r.fail(ctx, log, item, err)
		}
		return Report{}, err
	}
	if outcome == ideas.ProgressRowMissing {
		log.Debug("progress row missing, dropping superseded work item")
		return Report{Outcome: ideas.ProgressRowMissing}, nil
	}
	r.publish(ctx, item, ideas.ProgressRunning, "", 0)

	h, ok := r.registry.Get(item.WorkerType)
	if !ok {
		// Nothing to retry against; fail the row now.
		return r.fail(ctx, log, item, fmt.Errorf("%w for worker_type=%s", ErrMissingHandler, item.WorkerType))
	}

	jc := &Context{
		Ctx:      ctx,
		Item:     item,
		Attempt:  attempt,
		Log:      log,
		progress: r.progress,
		notifier: r.notifier,
	}
	out, runErr := runHandler(h, jc)
	if jc.Superseded() {
		log.Debug("work item superseded during run, discarding output")
		return Report{Outcome: ideas.ProgressRowMissing}, nil
	}
	if runErr != nil {
		var pe *research.ProviderError
		if !errors.As(runErr, &pe) {
			runErr = &research.ProviderError{WorkerType: item.WorkerType, Err: runErr}
		}
		if ctx.Err() != nil {
			// Shutdown, not a provider verdict; leave the row for redelivery.
			return Report{Outcome: ideas.ProgressUpdated, Status: ideas.ProgressRunning}, runErr
		}
		if !attempt.IsFinal() {
			log.Warn("research attempt failed, will retry", "max_attempts", attempt.Max, "error", runErr)
			jc.Step(fmt.Sprintf("Retrying (%d/%d)...", attempt.Number, attempt.Max))
			return Report{Outcome: ideas.ProgressUpdated, Status: ideas.ProgressRunning}, runErr
		}
		return r.fail(ctx, log, item, runErr)
	}
	return r.complete(ctx, log, item, attempt, out)
}

func (r *Runner) complete(ctx context.Context, log *logger.Logger, item ideas.WorkItem, attempt Attempt, out *Outcome) (Report, error) {
	count := out.count()
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		outcome, err := r.progress.UpdateLive(dbc, item.ProgressID, map[string]interface{}{
			"status":        ideas.ProgressCompleted,
			"message":       "Completed",
			"results_count": count,
			"error":         "",
			"completed_at":  now,
			"updated_at":    now,
		})
		if err != nil {
			return err
		}
		if outcome == ideas.ProgressRowMissing {
			return errSuperseded
		}
		if out == nil {
			return nil
		}
		for _, res := range out.Results {
			res.IdeaID = item.IdeaID
		}
		for _, in := range out.Insights {
			in.IdeaID = item.IdeaID
		}
		if _, err := r.results.Create(dbc, out.Results); err != nil {
			return fmt.Errorf("create results: %w", err)
		}
		if _, err := r.insights.Create(dbc, out.Insights); err != nil {
			return fmt.Errorf("create insights: %w", err)
		}
		return nil
	})
	if errors.Is(err, errSuperseded) {
		log.Debug("progress row vanished before completion, results discarded")
		return Report{Outcome: ideas.ProgressRowMissing}, nil
	}
	if err != nil {
		err = fmt.Errorf("%w: persist outcome: %w", research.ErrPersistence, err)
		if attempt.IsFinal() && ctx.Err() == nil {
			return r.fail(ctx, log, item, err)
		}
		return Report{Outcome: ideas.ProgressUpdated, Status: ideas.ProgressRunning}, err
	}
	log.Info("research worker completed", "results_count", count)
	r.publish(ctx, item, ideas.ProgressCompleted, "", count)
	r.reconcile(ctx, log, item.IdeaID)
	return Report{Outcome: ideas.ProgressUpdated, Status: ideas.ProgressCompleted, ResultsCount: count}, nil
}

/*
MarkFailed closes item's row as FAILED with cause, for callers that know the
attempt budget is spent but whose last attempt never reached a terminal write
(an expired or crashed final attempt). It is idempotent: a row that is
already terminal or was superseded yields a RowMissing report. The returned
error is only set when the write itself failed.
*/
func (r *Runner) MarkFailed(ctx context.Context, item ideas.WorkItem, cause error) (Report, error) {
	if cause == nil {
		cause = errors.New("attempts exhausted")
	}
	log := r.log.With(
		"idea_id", item.IdeaID.String(),
		"run_id", item.RunID.String(),
		"worker_type", item.WorkerType.String(),
	)
	rep, err := r.fail(ctxutil.Default(ctx), log, item, cause)
	if rep.Status == ideas.ProgressFailed || rep.Outcome == ideas.ProgressRowMissing {
		return rep, nil
	}
	return rep, err
}

func (r *Runner) fail(ctx context.Context, log *logger.Logger, item ideas.WorkItem, cause error) (Report, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Detached(ctx), terminalWriteTimeout)
	defer cancel()
	now := time.Now().UTC()
	outcome, err := r.progress.UpdateLive(dbctx.Context{Ctx: ctx}, item.ProgressID, map[string]interface{}{
		"status":       ideas.ProgressFailed,
		"message":      "Failed",
		"error":        cause.Error(),
		"completed_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return Report{Outcome: ideas.ProgressUpdated, Status: ideas.ProgressRunning}, fmt.Errorf("mark failed: %w", err)
	}
	if outcome == ideas.ProgressRowMissing {
		return Report{Outcome: ideas.ProgressRowMissing}, nil
	}
	log.Warn("research worker failed", "error", cause)
	r.publish(ctx, item, ideas.ProgressFailed, cause.Error(), 0)
	r.reconcile(ctx, log, item.IdeaID)
	return Report{Outcome: ideas.ProgressUpdated, Status: ideas.ProgressFailed}, cause
}

func (r *Runner) reconcile(ctx context.Context, log *logger.Logger, ideaID uuid.UUID) {
	if r.reconciler == nil {
		return
	}
	if _, err := r.reconciler.Reconcile(ctx, ideaID); err != nil {
		// The periodic sweep retries this.
		log.Warn("reconcile after terminal transition failed", "error", err)
	}
}

func (r *Runner) publish(ctx context.Context, item ideas.WorkItem, status ideas.ProgressStatus, errText string, count int) {
	now := time.Now().UTC()
	row := &ideas.ResearchProgress{
		ID:           item.ProgressID,
		IdeaID:       item.IdeaID,
		RunID:        item.RunID,
		WorkerType:   item.WorkerType,
		Status:       status,
		ResultsCount: count,
		Error:        errText,
		UpdatedAt:    now,
	}
	if status.IsTerminal() {
		row.CompletedAt = &now
	}
	r.notifier.Notify(ctx, research.Event{
		Type:     research.EventResearchProgress,
		IdeaID:   item.IdeaID,
		RunID:    item.RunID,
		Progress: row,
		At:       now,
	})
}

func runHandler(h Handler, jc *Context) (out *Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			jc.Log.Error("research handler panic", "panic", rec)
			err = &panicError{Val: rec}
		}
	}()
	return h.Run(jc)
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
