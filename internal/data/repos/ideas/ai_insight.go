package ideas

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type AiInsightRepo interface {
	Create(dbc dbctx.Context, rows []*types.AiInsight) ([]*types.AiInsight, error)
	ListByIdea(dbc dbctx.Context, ideaID uuid.UUID) ([]*types.AiInsight, error)
}

type aiInsightRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAiInsightRepo(db *gorm.DB, baseLog *logger.Logger) AiInsightRepo {
	return &aiInsightRepo{db: db, log: baseLog.With("repo", "AiInsightRepo")}
}

func (r *aiInsightRepo) Create(dbc dbctx.Context, rows []*types.AiInsight) ([]*types.AiInsight, error) {
	if len(rows) == 0 {
		return []*types.AiInsight{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *aiInsightRepo) ListByIdea(dbc dbctx.Context, ideaID uuid.UUID) ([]*types.AiInsight, error) {
	var out []*types.AiInsight
	if ideaID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("idea_id = ?", ideaID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
