package researchrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type Activities struct {
	Log    *logger.Logger
	Runner *jobrt.Runner
}

func (a *Activities) Execute(ctx context.Context, in Input) (Result, error) {
	if a == nil || a.Runner == nil {
		return Result{}, temporal.NewNonRetryableApplicationError("researchrun: activity not configured", "config", nil)
	}
	attempt := int(activity.GetInfo(ctx).Attempt)
	if attempt < 1 {
		attempt = 1
	}

	stopHB := startHeartbeat(ctx)
	defer stopHB()

	rep, err := a.Runner.Execute(ctx, in.Item, jobrt.Attempt{Number: attempt, Max: in.MaxAttempts})
	res := Result{
		ProgressOutcome: rep.Outcome.String(),
		Status:          string(rep.Status),
		ResultsCount:    rep.ResultsCount,
	}
	if err == nil {
		return res, nil
	}
	if rep.Status == ideas.ProgressFailed {
		// The row is terminal; another delivery would be a no-op.
		return res, temporal.NewNonRetryableApplicationError(err.Error(), failureTypeTerminal, err)
	}
	if a.Log != nil {
		a.Log.Warn("research activity attempt failed",
			"worker_type", in.Item.WorkerType.String(),
			"idea_id", in.Item.IdeaID.String(),
			"attempt", attempt,
			"error", err,
		)
	}
	return res, fmt.Errorf("research attempt %d: %w", attempt, err)
}

// MarkFailed is the workflow's compensation step. It is safe to repeat.
func (a *Activities) MarkFailed(ctx context.Context, in MarkFailedInput) error {
	if a == nil || a.Runner == nil {
		return temporal.NewNonRetryableApplicationError("researchrun: activity not configured", "config", nil)
	}
	rep, err := a.Runner.MarkFailed(ctx, in.Item, errors.New(in.Reason))
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if a.Log != nil && rep.Status == ideas.ProgressFailed {
		a.Log.Warn("research item closed after exhausting attempts",
			"worker_type", in.Item.WorkerType.String(),
			"idea_id", in.Item.IdeaID.String(),
			"reason", in.Reason,
		)
	}
	return nil
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
