package research

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
)

const DefaultStuckAfter = 10 * time.Minute

// ProgressRow is a progress row plus the staleness flag for rows that were
// never picked up.
type ProgressRow struct {
	*ideas.ResearchProgress
	Stuck bool `json:"stuck"`
}

// ProgressSnapshot is what a polling client needs to decide whether to keep
// polling. An empty Progress list means no run is active.
type ProgressSnapshot struct {
	IdeaID           uuid.UUID        `json:"idea_id"`
	Status           ideas.IdeaStatus `json:"status"`
	LastResearchedAt *time.Time       `json:"last_researched_at,omitempty"`
	Progress         []ProgressRow    `json:"progress"`
	ResultCount      int64            `json:"result_count"`
	InsightCount     int64            `json:"insight_count"`
	Active           bool             `json:"active"`
}

type ProgressReader struct {
	ideas      repos.IdeaRepo
	progress   repos.ResearchProgressRepo
	stuckAfter time.Duration
	now        func() time.Time
}

func NewProgressReader(ideaRepo repos.IdeaRepo, progressRepo repos.ResearchProgressRepo, stuckAfter time.Duration, now func() time.Time) *ProgressReader {
	if stuckAfter <= 0 {
		stuckAfter = DefaultStuckAfter
	}
	if now == nil {
		now = time.Now
	}
	return &ProgressReader{ideas: ideaRepo, progress: progressRepo, stuckAfter: stuckAfter, now: now}
}

func (p *ProgressReader) GetProgress(ctx context.Context, ideaID uuid.UUID) (*ProgressSnapshot, error) {
	dbc := dbctx.Context{Ctx: ctxutil.Default(ctx)}
	idea, err := p.ideas.GetByID(dbc, ideaID)
	if err != nil {
		return nil, persistence("load idea", err)
	}
	if idea == nil {
		return nil, ErrNotFound
	}
	rows, err := p.progress.ListByIdea(dbc, ideaID)
	if err != nil {
		return nil, persistence("list progress", err)
	}
	counts, err := p.ideas.Counts(dbc, []uuid.UUID{ideaID})
	if err != nil {
		return nil, persistence("count results", err)
	}

	now := p.now()
	snap := &ProgressSnapshot{
		IdeaID:           idea.ID,
		Status:           idea.Status,
		LastResearchedAt: idea.LastResearchedAt,
		Progress:         make([]ProgressRow, 0, len(rows)),
		ResultCount:      counts[ideaID].ResearchResults,
		InsightCount:     counts[ideaID].AiInsights,
	}
	live := false
	for _, row := range rows {
		stuck := row.Status == ideas.ProgressPending && now.Sub(row.StartedAt) > p.stuckAfter
		if !row.Status.IsTerminal() {
			live = true
		}
		snap.Progress = append(snap.Progress, ProgressRow{ResearchProgress: row, Stuck: stuck})
	}
	snap.Active = idea.IsResearching() && live
	return snap, nil
}
