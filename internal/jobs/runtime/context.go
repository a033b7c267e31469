package runtime

import (
	"context"
	"time"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/research"
)

/*
Context is the execution handle a Handler receives for one attempt of one
work item. Handlers never touch research_progress directly; Step is the only
sanctioned way to report intermediate progress.
*/
type Context struct {
	Ctx     context.Context
	Item    ideas.WorkItem
	Attempt Attempt
	Log     *logger.Logger

	LastMessage string

	progress   repos.ResearchProgressRepo
	notifier   research.Notifier
	superseded bool
}

// Attempt is the 1-based delivery number out of the dispatcher's budget.
type Attempt struct {
	Number int
	Max    int
}

// IsFinal reports whether a failure on this attempt is terminal.
func (a Attempt) IsFinal() bool {
	return a.Max <= 0 || a.Number >= a.Max
}

/*
Step records msg as the row's current step. A RowMissing outcome means a
newer run replaced this one (or the row is already terminal); it marks the
context superseded and is otherwise ignored.
*/
func (c *Context) Step(msg string) {
	if c == nil || c.superseded {
		return
	}
	if c.progress == nil {
		c.LastMessage = msg
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC()
	outcome, err := c.progress.UpdateLive(dbctx.Context{Ctx: ctx}, c.Item.ProgressID, map[string]interface{}{
		"message":    msg,
		"updated_at": now,
	})
	if err != nil {
		c.Log.Warn("progress step update failed", "message", msg, "error", err)
		return
	}
	if outcome == ideas.ProgressRowMissing {
		c.superseded = true
		return
	}
	c.LastMessage = msg
	c.notifier.Notify(ctx, research.Event{
		Type:   research.EventResearchProgress,
		IdeaID: c.Item.IdeaID,
		RunID:  c.Item.RunID,
		Progress: &ideas.ResearchProgress{
			ID:         c.Item.ProgressID,
			IdeaID:     c.Item.IdeaID,
			RunID:      c.Item.RunID,
			WorkerType: c.Item.WorkerType,
			Status:     ideas.ProgressRunning,
			Message:    msg,
			UpdatedAt:  now,
		},
		At: now,
	})
}

// Superseded reports whether a progress write found the row gone. Handlers
// may use it to stop early; the Runner discards their output either way.
func (c *Context) Superseded() bool { return c != nil && c.superseded }

/*
DetachedContext returns a Context bound to no progress row. Steps only land
in LastMessage. It lets a handler run outside the Runner, for probes and
tests.
*/
func DetachedContext(ctx context.Context, item ideas.WorkItem, log *logger.Logger) *Context {
	if log == nil {
		log = logger.Nop()
	}
	return &Context{
		Ctx:     ctx,
		Item:    item,
		Attempt: Attempt{Number: 1, Max: 1},
		Log:     log,
	}
}
