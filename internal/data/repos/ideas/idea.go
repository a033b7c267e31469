package ideas

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type IdeaListFilter struct {
	UserID *uuid.UUID
	Search string
	Status types.IdeaStatus
	Limit  int
}

type IdeaRepo interface {
	Create(dbc dbctx.Context, idea *types.Idea) (*types.Idea, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Idea, error)
	List(dbc dbctx.Context, filter IdeaListFilter) ([]*types.Idea, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error)
	// MarkResearching flips an idea to RESEARCHING unless it already is.
	// Returns false when the idea is missing or already researching.
	MarkResearching(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	// CompleteIfAllTerminal flips RESEARCHING back to IDLE when the idea has
	// progress rows and none of them is PENDING or RUNNING.
	CompleteIfAllTerminal(dbc dbctx.Context, id uuid.UUID) (bool, error)
	ListResearchingIDs(dbc dbctx.Context, limit int) ([]uuid.UUID, error)
	Counts(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]types.IdeaCounts, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type ideaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIdeaRepo(db *gorm.DB, baseLog *logger.Logger) IdeaRepo {
	return &ideaRepo{db: db, log: baseLog.With("repo", "IdeaRepo")}
}

func (r *ideaRepo) Create(dbc dbctx.Context, idea *types.Idea) (*types.Idea, error) {
	if idea == nil {
		return nil, errors.New("nil idea")
	}
	if err := dbc.DB(r.db).Create(idea).Error; err != nil {
		return nil, err
	}
	return idea, nil
}

func (r *ideaRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Idea, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var idea types.Idea
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&idea).Error
	if err != nil {
		return nil, err
	}
	if idea.ID == uuid.Nil {
		return nil, nil
	}
	return &idea, nil
}

func (r *ideaRepo) List(dbc dbctx.Context, filter IdeaListFilter) ([]*types.Idea, error) {
	q := dbc.DB(r.db).Model(&types.Idea{})
	if filter.UserID != nil && *filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(content_text) LIKE ?", like, like)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []*types.Idea
	if err := q.Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ideaRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).Model(&types.Idea{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ideaRepo) MarkResearching(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).Model(&types.Idea{}).
		Where("id = ? AND status <> ?", id, types.IdeaStatusResearching).
		Updates(map[string]interface{}{
			"status":             types.IdeaStatusResearching,
			"last_researched_at": at,
			"updated_at":         at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ideaRepo) CompleteIfAllTerminal(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	db := dbc.DB(r.db)
	anyRow := db.Session(&gorm.Session{NewDB: true}).
		Model(&types.ResearchProgress{}).
		Select("1").
		Where("idea_id = ?", id)
	liveRow := db.Session(&gorm.Session{NewDB: true}).
		Model(&types.ResearchProgress{}).
		Select("1").
		Where("idea_id = ? AND status IN ?", id, types.LiveProgressStatuses)

	// Single statement: safe when several workers finish at once.
	res := db.Model(&types.Idea{}).
		Where("id = ? AND status = ?", id, types.IdeaStatusResearching).
		Where("EXISTS (?)", anyRow).
		Where("NOT EXISTS (?)", liveRow).
		Updates(map[string]interface{}{
			"status":     types.IdeaStatusIdle,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ideaRepo) ListResearchingIDs(dbc dbctx.Context, limit int) ([]uuid.UUID, error) {
	q := dbc.DB(r.db).Model(&types.Idea{}).
		Where("status = ?", types.IdeaStatusResearching).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []uuid.UUID
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

type countRow struct {
	IdeaID uuid.UUID
	N      int64
}

func (r *ideaRepo) Counts(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]types.IdeaCounts, error) {
	out := make(map[uuid.UUID]types.IdeaCounts, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := dbc.DB(r.db)

	var results []countRow
	if err := db.Model(&types.ResearchResult{}).
		Select("idea_id, COUNT(*) AS n").
		Where("idea_id IN ?", ids).
		Group("idea_id").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	var insights []countRow
	if err := db.Model(&types.AiInsight{}).
		Select("idea_id, COUNT(*) AS n").
		Where("idea_id IN ?", ids).
		Group("idea_id").
		Scan(&insights).Error; err != nil {
		return nil, err
	}

	for _, id := range ids {
		out[id] = types.IdeaCounts{}
	}
	for _, row := range results {
		c := out[row.IdeaID]
		c.ResearchResults = row.N
		out[row.IdeaID] = c
	}
	for _, row := range insights {
		c := out[row.IdeaID]
		c.AiInsights = row.N
		out[row.IdeaID] = c
	}
	return out, nil
}

func (r *ideaRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	deleted := false
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&types.ResearchProgress{}, &types.ResearchResult{}, &types.AiInsight{}} {
			if err := tx.Where("idea_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&types.Idea{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
