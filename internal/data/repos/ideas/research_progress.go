package ideas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type ResearchProgressRepo interface {
	Create(dbc dbctx.Context, rows []*types.ResearchProgress) ([]*types.ResearchProgress, error)
	DeleteByIdea(dbc dbctx.Context, ideaID uuid.UUID) (int64, error)
	ListByIdea(dbc dbctx.Context, ideaID uuid.UUID) ([]*types.ResearchProgress, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ResearchProgress, error)
	// UpdateLive applies updates only while the row exists and is not
	// terminal. Anything else is reported as ProgressRowMissing.
	UpdateLive(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (types.ProgressOutcome, error)
}

type researchProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResearchProgressRepo(db *gorm.DB, baseLog *logger.Logger) ResearchProgressRepo {
	return &researchProgressRepo{db: db, log: baseLog.With("repo", "ResearchProgressRepo")}
}

func (r *researchProgressRepo) Create(dbc dbctx.Context, rows []*types.ResearchProgress) ([]*types.ResearchProgress, error) {
	if len(rows) == 0 {
		return []*types.ResearchProgress{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *researchProgressRepo) DeleteByIdea(dbc dbctx.Context, ideaID uuid.UUID) (int64, error) {
	if ideaID == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("idea_id = ?", ideaID).Delete(&types.ResearchProgress{})
	return res.RowsAffected, res.Error
}

func (r *researchProgressRepo) ListByIdea(dbc dbctx.Context, ideaID uuid.UUID) ([]*types.ResearchProgress, error) {
	var out []*types.ResearchProgress
	if ideaID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("idea_id = ?", ideaID).
		Order("started_at ASC").
		Order("worker_type ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *researchProgressRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ResearchProgress, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.ResearchProgress
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *researchProgressRepo) UpdateLive(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (types.ProgressOutcome, error) {
	if id == uuid.Nil {
		return types.ProgressRowMissing, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).
		Model(&types.ResearchProgress{}).
		Where("id = ? AND status IN ?", id, types.LiveProgressStatuses).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return types.ProgressRowMissing, nil
	}
	return types.ProgressUpdated, nil
}
