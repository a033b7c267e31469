package researchrun

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow runs one work item as a single activity. Redelivery is the
// activity retry policy: exponential backoff from the item's base delay,
// bounded by its attempt budget.
func Workflow(ctx workflow.Context, in Input) (Result, error) {
	if !in.Item.WorkerType.Valid() {
		return Result{}, fmt.Errorf("researchrun: invalid worker type %q", in.Item.WorkerType)
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	base := time.Duration(in.BackoffBaseMS) * time.Millisecond
	if base <= 0 {
		base = 2 * time.Second
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    base,
			BackoffCoefficient: 2,
			MaximumAttempts:    int32(maxAttempts),
		},
	})

	var out Result
	err := workflow.ExecuteActivity(ctx, ActivityExecute, in).Get(ctx, &out)
	if err == nil {
		return out, nil
	}
	if !rowAlreadyFailed(err) {
		markFailed(ctx, in, err)
	}
	return out, err
}

// markFailed closes the row when the last attempt timed out or died before
// writing a terminal status. It runs even if the workflow was canceled.
func markFailed(ctx workflow.Context, in Input, cause error) {
	ctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    5,
		},
	})
	req := MarkFailedInput{Item: in.Item, Reason: cause.Error()}
	if err := workflow.ExecuteActivity(ctx, ActivityMarkFailed, req).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("closing research row failed", "progress_id", in.Item.ProgressID.String(), "error", err)
	}
}

func rowAlreadyFailed(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == failureTypeTerminal
}
