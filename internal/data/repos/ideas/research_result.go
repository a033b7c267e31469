package ideas

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type ResearchResultRepo interface {
	Create(dbc dbctx.Context, rows []*types.ResearchResult) ([]*types.ResearchResult, error)
	ListVisibleByIdea(dbc dbctx.Context, ideaID uuid.UUID) ([]*types.ResearchResult, error)
	Dismiss(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type researchResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResearchResultRepo(db *gorm.DB, baseLog *logger.Logger) ResearchResultRepo {
	return &researchResultRepo{db: db, log: baseLog.With("repo", "ResearchResultRepo")}
}

func (r *researchResultRepo) Create(dbc dbctx.Context, rows []*types.ResearchResult) ([]*types.ResearchResult, error) {
	if len(rows) == 0 {
		return []*types.ResearchResult{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListVisibleByIdea returns non-dismissed results, closest overlap first.
func (r *researchResultRepo) ListVisibleByIdea(dbc dbctx.Context, ideaID uuid.UUID) ([]*types.ResearchResult, error) {
	var out []*types.ResearchResult
	if ideaID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("idea_id = ? AND dismissed = ?", ideaID, false).
		Order("similarity_score DESC").
		Order("relevance_score DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *researchResultRepo) Dismiss(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).Model(&types.ResearchResult{}).
		Where("id = ?", id).
		Update("dismissed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
