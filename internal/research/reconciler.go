package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

// Reconciler closes out a run once every progress row of the idea is
// terminal. Running it redundantly is always safe.
type Reconciler struct {
	log      *logger.Logger
	ideas    repos.IdeaRepo
	notifier Notifier
	tracer   trace.Tracer
}

func NewReconciler(log *logger.Logger, ideaRepo repos.IdeaRepo, notifier Notifier) *Reconciler {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &Reconciler{
		log:      log.With("component", "ResearchReconciler"),
		ideas:    ideaRepo,
		notifier: notifier,
		tracer:   otel.Tracer(tracerName),
	}
}

// Reconcile flips the idea back to IDLE when the all-terminal condition
// holds. Returns true only for the call that performed the transition.
func (r *Reconciler) Reconcile(ctx context.Context, ideaID uuid.UUID) (bool, error) {
	ctx = ctxutil.Default(ctx)
	ctx, span := r.tracer.Start(ctx, "research.Reconcile",
		trace.WithAttributes(attribute.String("idea.id", ideaID.String())))
	defer span.End()

	done, err := r.ideas.CompleteIfAllTerminal(dbctx.Context{Ctx: ctx}, ideaID)
	if err != nil {
		span.RecordError(err)
		return false, persistence("reconcile", err)
	}
	span.SetAttributes(attribute.Bool("research.completed", done))
	if done {
		r.log.Info("research run completed", "idea_id", ideaID.String())
		r.notifier.Notify(ctx, Event{Type: EventResearchCompleted, IdeaID: ideaID, At: time.Now().UTC()})
	}
	return done, nil
}

// Sweep reconciles every idea still marked RESEARCHING, recovering runs
// whose last worker crashed before reconciling. Returns how many ideas
// were closed out.
func (r *Reconciler) Sweep(ctx context.Context, limit int) (int, error) {
	ctx = ctxutil.Default(ctx)
	ids, err := r.ideas.ListResearchingIDs(dbctx.Context{Ctx: ctx}, limit)
	if err != nil {
		return 0, persistence("list researching", err)
	}
	closed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		done, err := r.Reconcile(ctx, id)
		if err != nil {
			r.log.Warn("sweep reconcile failed", "idea_id", id.String(), "error", err)
			continue
		}
		if done {
			closed++
		}
	}
	return closed, nil
}
