package research

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

const tracerName = "github.com/yungbote/ideaforge-backend/internal/research"

// ReasonResearching is reported by OnIdeaEdited when the stored idea is
// already mid-run; the detector is not consulted.
const ReasonResearching Reason = "already_researching"

// JobHandle identifies one dispatched work item in the dispatch backend.
type JobHandle struct {
	ID         string           `json:"id"`
	WorkerType ideas.WorkerType `json:"worker_type"`
}

// Enqueuer is the work-dispatch layer. Delivery is at-least-once.
type Enqueuer interface {
	Enqueue(ctx context.Context, item ideas.WorkItem) (JobHandle, error)
}

// RunHandle describes a started run. DispatchErrors lists the items that
// never made it to the dispatcher; their progress rows stay PENDING.
type RunHandle struct {
	RunID          uuid.UUID                 `json:"run_id"`
	IdeaID         uuid.UUID                 `json:"idea_id"`
	Progress       []*ideas.ResearchProgress `json:"progress"`
	Jobs           []JobHandle               `json:"jobs"`
	DispatchErrors []error                   `json:"-"`
}

type CoordinatorOption func(*Coordinator)

// WithWorkerTypes restricts the run to the given worker types. Defaults to
// every known type.
func WithWorkerTypes(types ...ideas.WorkerType) CoordinatorOption {
	return func(c *Coordinator) {
		if len(types) > 0 {
			c.workerTypes = append([]ideas.WorkerType(nil), types...)
		}
	}
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func WithNotifier(n Notifier) CoordinatorOption {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// Coordinator starts research runs: it resets progress rows, flips the idea
// to RESEARCHING and fans one work item per worker type out to the Enqueuer.
type Coordinator struct {
	db          *gorm.DB
	log         *logger.Logger
	ideas       repos.IdeaRepo
	progress    repos.ResearchProgressRepo
	enqueuer    Enqueuer
	detector    *Detector
	notifier    Notifier
	workerTypes []ideas.WorkerType
	now         func() time.Time
	tracer      trace.Tracer

	inflight sync.WaitGroup
}

func NewCoordinator(
	db *gorm.DB,
	log *logger.Logger,
	ideaRepo repos.IdeaRepo,
	progressRepo repos.ResearchProgressRepo,
	enqueuer Enqueuer,
	detector *Detector,
	opts ...CoordinatorOption,
) *Coordinator {
	if detector == nil {
		detector = NewDetector(DefaultThresholds(), nil)
	}
	c := &Coordinator{
		db:          db,
		log:         log.With("component", "ResearchCoordinator"),
		ideas:       ideaRepo,
		progress:    progressRepo,
		enqueuer:    enqueuer,
		detector:    detector,
		notifier:    NopNotifier(),
		workerTypes: ideas.AllWorkerTypes(),
		now:         time.Now,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Detector() *Detector { return c.detector }

// StartResearch is the manual trigger. It fails with ErrNotFound,
// *InsufficientContentError (below the manual minimum) or ErrAlreadyRunning.
func (c *Coordinator) StartResearch(ctx context.Context, ideaID uuid.UUID) (*RunHandle, error) {
	ctx = ctxutil.Default(ctx)
	ctx, span := c.tracer.Start(ctx, "research.StartResearch",
		trace.WithAttributes(attribute.String("idea.id", ideaID.String())))
	defer span.End()

	handle, err := c.startManual(ctx, ideaID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("run.id", handle.RunID.String()),
		attribute.Int("run.dispatch_errors", len(handle.DispatchErrors)),
	)
	return handle, nil
}

func (c *Coordinator) startManual(ctx context.Context, ideaID uuid.UUID) (*RunHandle, error) {
	idea, err := c.ideas.GetByID(dbctx.Context{Ctx: ctx}, ideaID)
	if err != nil {
		return nil, persistence("load idea", err)
	}
	if idea == nil {
		return nil, ErrNotFound
	}
	minimum := c.detector.Thresholds().ManualMinWords
	if words := CountWords(idea.ContentText); words < minimum {
		return nil, &InsufficientContentError{Words: words, Minimum: minimum}
	}
	return c.start(ctx, idea.ID)
}

// OnIdeaEdited is the edit hook, called after an edit has been committed.
// before is the idea as stored prior to the edit and after the committed
// result. When the detector fires, the run is started in the background and
// failures are only logged.
func (c *Coordinator) OnIdeaEdited(ctx context.Context, before, after *ideas.Idea) Decision {
	if before == nil || after == nil {
		return Decision{}
	}
	if before.IsResearching() || after.IsResearching() {
		return Decision{Reason: ReasonResearching, Words: CountWords(after.ContentText)}
	}
	dec := c.detector.Evaluate(Snapshot{
		Title:            before.Title,
		ContentText:      before.ContentText,
		LastResearchedAt: before.LastResearchedAt,
	}, after.Title, after.ContentText)

	log := c.log.With("idea_id", after.ID.String(), "reason", string(dec.Reason))
	if !dec.Trigger {
		log.Debug("edit did not trigger research", "words", dec.Words, "words_added", dec.WordsAdded)
		return dec
	}

	bg := ctxutil.Detached(ctx)
	ideaID := after.ID
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		bg, span := c.tracer.Start(bg, "research.AutoTrigger",
			trace.WithAttributes(attribute.String("idea.id", ideaID.String())))
		defer span.End()

		handle, err := c.start(bg, ideaID)
		switch {
		case errors.Is(err, ErrAlreadyRunning):
			log.Debug("automatic research skipped, run already active")
		case err != nil:
			span.RecordError(err)
			log.Warn("automatic research failed to start", "error", err)
		default:
			log.Info("automatic research started",
				"run_id", handle.RunID.String(),
				"dispatch_errors", len(handle.DispatchErrors),
			)
		}
	}()
	return dec
}

// Wait blocks until background runs started by OnIdeaEdited have finished
// dispatching.
func (c *Coordinator) Wait() { c.inflight.Wait() }

// start resets and dispatches a run. Steps that touch the store commit
// together; dispatch happens after commit and is never rolled back.
func (c *Coordinator) start(ctx context.Context, ideaID uuid.UUID) (*RunHandle, error) {
	runID := uuid.New()
	now := c.now().UTC()

	var (
		idea *ideas.Idea
		rows []*ideas.ResearchProgress
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		// The conditional flip goes first so a losing concurrent trigger
		// fails before it deletes anything.
		flipped, err := c.ideas.MarkResearching(dbc, ideaID, now)
		if err != nil {
			return persistence("mark researching", err)
		}
		current, err := c.ideas.GetByID(dbc, ideaID)
		if err != nil {
			return persistence("reload idea", err)
		}
		if current == nil {
			return ErrNotFound
		}
		if !flipped {
			return ErrAlreadyRunning
		}
		idea = current

		if _, err := c.progress.DeleteByIdea(dbc, ideaID); err != nil {
			return persistence("clear progress", err)
		}
		rows = make([]*ideas.ResearchProgress, 0, len(c.workerTypes))
		for _, wt := range c.workerTypes {
			rows = append(rows, &ideas.ResearchProgress{
				ID:         uuid.New(),
				IdeaID:     ideaID,
				RunID:      runID,
				WorkerType: wt,
				Status:     ideas.ProgressPending,
				Message:    wt.InitialMessage(),
				StartedAt:  now,
				UpdatedAt:  now,
			})
		}
		if _, err := c.progress.Create(dbc, rows); err != nil {
			return persistence("create progress", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	handle := &RunHandle{RunID: runID, IdeaID: ideaID, Progress: rows}
	c.notifier.Notify(ctx, Event{Type: EventResearchStarted, IdeaID: ideaID, RunID: runID, At: now})
	c.dispatch(ctx, idea, handle)
	return handle, nil
}

func (c *Coordinator) dispatch(ctx context.Context, idea *ideas.Idea, handle *RunHandle) {
	jobs := make([]*JobHandle, len(handle.Progress))
	errs := make([]error, len(handle.Progress))

	var g errgroup.Group
	for i, row := range handle.Progress {
		item := ideas.WorkItem{
			IdeaID:     idea.ID,
			RunID:      handle.RunID,
			ProgressID: row.ID,
			UserID:     idea.UserID,
			Title:      idea.Title,
			Content:    idea.ContentText,
			WorkerType: row.WorkerType,
		}
		g.Go(func() error {
			job, err := c.enqueuer.Enqueue(ctx, item)
			if err != nil {
				errs[i] = &DispatchError{WorkerType: item.WorkerType, Err: err}
				return nil
			}
			jobs[i] = &job
			return nil
		})
	}
	_ = g.Wait()

	for i := range handle.Progress {
		if errs[i] != nil {
			c.log.Error("failed to dispatch research work item",
				"idea_id", idea.ID.String(),
				"run_id", handle.RunID.String(),
				"worker_type", handle.Progress[i].WorkerType.String(),
				"error", errs[i],
			)
			handle.DispatchErrors = append(handle.DispatchErrors, errs[i])
			continue
		}
		handle.Jobs = append(handle.Jobs, *jobs[i])
	}
}
