package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/ideaforge-backend/internal/domain/jobs"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

// RetentionPolicy bounds how long finished job rows are kept for inspection.
type RetentionPolicy struct {
	CompletedAge   time.Duration
	CompletedCount int
	FailedAge      time.Duration
}

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(dbc dbctx.Context, id string) (*types.JobRun, error)
	// ClaimNextRunnable picks the oldest due job among jobTypes and marks it
	// running, bumping attempts. Returns nil when nothing is due.
	ClaimNextRunnable(dbc dbctx.Context, jobTypes []string, staleRunning time.Duration) (*types.JobRun, error)
	Heartbeat(dbc dbctx.Context, id string) error
	MarkSucceeded(dbc dbctx.Context, id string) error
	MarkRetry(dbc dbctx.Context, id string, errMsg string, runAfter time.Time) error
	MarkFailed(dbc dbctx.Context, id string, errMsg string) error
	Prune(dbc dbctx.Context, policy RetentionPolicy) (int64, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id string) (*types.JobRun, error) {
	if id == "" {
		return nil, nil
	}
	var job types.JobRun
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, jobTypes []string, staleRunning time.Duration) (*types.JobRun, error) {
	if len(jobTypes) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("job_type IN ?", jobTypes).
			Where(`
        (
          (status = ? AND run_after <= ?)
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.JobQueued, now, types.JobRunning, staleCutoff).
			Order("run_after ASC").
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&types.JobRun{}).
			Where("id = ? AND status = ? AND attempts = ?", job.ID, job.Status, job.Attempts).
			Updates(map[string]interface{}{
				"status":       types.JobRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = types.JobRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id string) error {
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *jobRunRepo) MarkSucceeded(dbc dbctx.Context, id string) error {
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      types.JobSucceeded,
			"error":       "",
			"locked_at":   nil,
			"finished_at": now,
			"updated_at":  now,
		}).Error
}

func (r *jobRunRepo) MarkRetry(dbc dbctx.Context, id string, errMsg string, runAfter time.Time) error {
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        types.JobQueued,
			"error":         errMsg,
			"last_error_at": now,
			"run_after":     runAfter.UTC(),
			"locked_at":     nil,
			"heartbeat_at":  nil,
			"updated_at":    now,
		}).Error
}

func (r *jobRunRepo) MarkFailed(dbc dbctx.Context, id string, errMsg string) error {
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        types.JobFailed,
			"error":         errMsg,
			"last_error_at": now,
			"locked_at":     nil,
			"finished_at":   now,
			"updated_at":    now,
		}).Error
}

func (r *jobRunRepo) Prune(dbc dbctx.Context, policy RetentionPolicy) (int64, error) {
	now := time.Now().UTC()
	var total int64
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if policy.CompletedAge > 0 {
			res := tx.Where("status = ? AND finished_at < ?", types.JobSucceeded, now.Add(-policy.CompletedAge)).
				Delete(&types.JobRun{})
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		if policy.CompletedCount > 0 {
			keep := tx.Session(&gorm.Session{NewDB: true}).
				Model(&types.JobRun{}).
				Select("id").
				Where("status = ?", types.JobSucceeded).
				Order("finished_at DESC").
				Limit(policy.CompletedCount)
			res := tx.Where("status = ? AND id NOT IN (?)", types.JobSucceeded, keep).
				Delete(&types.JobRun{})
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		if policy.FailedAge > 0 {
			res := tx.Where("status = ? AND finished_at < ?", types.JobFailed, now.Add(-policy.FailedAge)).
				Delete(&types.JobRun{})
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
