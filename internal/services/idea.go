package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/research"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrResultNotFound = errors.New("research result not found")
)

type IdeaSummary struct {
	*ideas.Idea
	Counts ideas.IdeaCounts `json:"counts"`
}

type IdeaDetail struct {
	*ideas.Idea
	Results  []*ideas.ResearchResult `json:"research_results"`
	Insights []*ideas.AiInsight      `json:"ai_insights"`
	Counts   ideas.IdeaCounts        `json:"counts"`
}

type ListIdeasParams struct {
	Search string
	Status string
	UserID *uuid.UUID
}

type CreateIdeaInput struct {
	UserID      uuid.UUID
	Title       string
	Content     json.RawMessage
	ContentText string
}

// UpdateIdeaInput is a partial update; nil fields are left alone.
type UpdateIdeaInput struct {
	Title       *string
	Content     json.RawMessage
	ContentText *string
}

func (in UpdateIdeaInput) empty() bool {
	return in.Title == nil && in.Content == nil && in.ContentText == nil
}

// EditHook is told about every committed edit. The research coordinator
// implements it.
type EditHook interface {
	OnIdeaEdited(ctx context.Context, before, after *ideas.Idea) research.Decision
}

type ResearchStarter interface {
	StartResearch(ctx context.Context, ideaID uuid.UUID) (*research.RunHandle, error)
}

type ProgressGetter interface {
	GetProgress(ctx context.Context, ideaID uuid.UUID) (*research.ProgressSnapshot, error)
}

type IdeaService interface {
	List(ctx context.Context, params ListIdeasParams) ([]*IdeaSummary, error)
	Create(ctx context.Context, in CreateIdeaInput) (*ideas.Idea, error)
	Get(ctx context.Context, id uuid.UUID) (*IdeaDetail, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateIdeaInput) (*ideas.Idea, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DismissResult(ctx context.Context, resultID uuid.UUID) error
	StartResearch(ctx context.Context, id uuid.UUID) (*research.RunHandle, error)
	GetProgress(ctx context.Context, id uuid.UUID) (*research.ProgressSnapshot, error)
}

type ideaService struct {
	log      *logger.Logger
	ideas    repos.IdeaRepo
	results  repos.ResearchResultRepo
	insights repos.AiInsightRepo
	hook     EditHook
	starter  ResearchStarter
	progress ProgressGetter
}

func NewIdeaService(
	log *logger.Logger,
	ideaRepo repos.IdeaRepo,
	resultRepo repos.ResearchResultRepo,
	insightRepo repos.AiInsightRepo,
	hook EditHook,
	starter ResearchStarter,
	progress ProgressGetter,
) IdeaService {
	return &ideaService{
		log:      log.With("service", "IdeaService"),
		ideas:    ideaRepo,
		results:  resultRepo,
		insights: insightRepo,
		hook:     hook,
		starter:  starter,
		progress: progress,
	}
}

func (s *ideaService) List(ctx context.Context, params ListIdeasParams) ([]*IdeaSummary, error) {
	dbc := dbctx.Context{Ctx: ctxutil.Default(ctx)}
	filter := repos.IdeaListFilter{
		UserID: params.UserID,
		Search: params.Search,
	}
	if st := strings.ToUpper(strings.TrimSpace(params.Status)); st != "" {
		status := ideas.IdeaStatus(st)
		if status != ideas.IdeaStatusIdle && status != ideas.IdeaStatusResearching {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, params.Status)
		}
		filter.Status = status
	}
	rows, err := s.ideas.List(dbc, filter)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	counts, err := s.ideas.Counts(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("count idea results: %w", err)
	}
	out := make([]*IdeaSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, &IdeaSummary{Idea: r, Counts: counts[r.ID]})
	}
	return out, nil
}

func (s *ideaService) Create(ctx context.Context, in CreateIdeaInput) (*ideas.Idea, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: title and userId are required", ErrInvalidInput)
	}
	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	idea := &ideas.Idea{
		UserID:      in.UserID,
		Title:       title,
		Content:     content,
		ContentText: in.ContentText,
		Status:      ideas.IdeaStatusIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.ideas.Create(dbctx.Context{Ctx: ctxutil.Default(ctx)}, idea)
	if err != nil {
		return nil, fmt.Errorf("create idea: %w", err)
	}
	s.log.Info("idea created", "idea_id", created.ID.String(), "user_id", created.UserID.String())
	return created, nil
}

func (s *ideaService) Get(ctx context.Context, id uuid.UUID) (*IdeaDetail, error) {
	dbc := dbctx.Context{Ctx: ctxutil.Default(ctx)}
	idea, err := s.ideas.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load idea: %w", err)
	}
	if idea == nil {
		return nil, research.ErrNotFound
	}
	results, err := s.results.ListVisibleByIdea(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	insights, err := s.insights.ListByIdea(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	counts, err := s.ideas.Counts(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("count idea results: %w", err)
	}
	return &IdeaDetail{Idea: idea, Results: results, Insights: insights, Counts: counts[id]}, nil
}

/*
Update applies a partial edit and, once it is committed, hands the before and
after versions to the edit hook. The hook decides on its own whether the edit
warrants a research run; its outcome never fails the update.
*/
func (s *ideaService) Update(ctx context.Context, id uuid.UUID, in UpdateIdeaInput) (*ideas.Idea, error) {
	ctx = ctxutil.Default(ctx)
	dbc := dbctx.Context{Ctx: ctx}
	before, err := s.ideas.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load idea: %w", err)
	}
	if before == nil {
		return nil, research.ErrNotFound
	}
	if in.empty() {
		return before, nil
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		updates["title"] = title
	}
	if in.Content != nil {
		content, err := normalizeContent(in.Content)
		if err != nil {
			return nil, err
		}
		updates["content"] = content
	}
	if in.ContentText != nil {
		updates["content_text"] = *in.ContentText
	}

	ok, err := s.ideas.UpdateFields(dbc, id, updates)
	if err != nil {
		return nil, fmt.Errorf("update idea: %w", err)
	}
	if !ok {
		return nil, research.ErrNotFound
	}
	after, err := s.ideas.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("reload idea: %w", err)
	}
	if after == nil {
		return nil, research.ErrNotFound
	}

	if s.hook != nil {
		d := s.hook.OnIdeaEdited(ctx, before, after)
		s.log.Debug("edit evaluated", "idea_id", id.String(), "trigger", d.Trigger, "reason", string(d.Reason))
	}
	return after, nil
}

func (s *ideaService) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.ideas.Delete(dbctx.Context{Ctx: ctxutil.Default(ctx)}, id)
	if err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	if !ok {
		return research.ErrNotFound
	}
	s.log.Info("idea deleted", "idea_id", id.String())
	return nil
}

func (s *ideaService) DismissResult(ctx context.Context, resultID uuid.UUID) error {
	ok, err := s.results.Dismiss(dbctx.Context{Ctx: ctxutil.Default(ctx)}, resultID)
	if err != nil {
		return fmt.Errorf("dismiss result: %w", err)
	}
	if !ok {
		return ErrResultNotFound
	}
	return nil
}

func (s *ideaService) StartResearch(ctx context.Context, id uuid.UUID) (*research.RunHandle, error) {
	handle, err := s.starter.StartResearch(ctx, id)
	if err != nil {
		return nil, err
	}
	if n := len(handle.DispatchErrors); n > 0 {
		s.log.Warn("research started with dispatch failures", "idea_id", id.String(), "run_id", handle.RunID.String(), "failed", n)
	}
	return handle, nil
}

func (s *ideaService) GetProgress(ctx context.Context, id uuid.UUID) (*research.ProgressSnapshot, error) {
	return s.progress.GetProgress(ctx, id)
}

func normalizeContent(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("%w: content must be valid JSON", ErrInvalidInput)
	}
	return datatypes.JSON(trimmed), nil
}
