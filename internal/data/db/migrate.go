package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/domain"
)

func (s *Service) AutoMigrateAll() error {
	if err := AutoMigrateAll(s.db); err != nil {
		return err
	}
	if s.driver == DriverPostgres {
		return EnsureQueueIndexes(s.db)
	}
	return nil
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// EnsureQueueIndexes adds the partial indexes the claim and sweep queries
// lean on. Postgres only.
func EnsureQueueIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_research_job_claim
		ON research_job(job_type, run_after)
		WHERE status = 'queued';
	`).Error; err != nil {
		return fmt.Errorf("create idx_research_job_claim: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_research_progress_live
		ON research_progress(idea_id)
		WHERE status IN ('PENDING', 'RUNNING');
	`).Error; err != nil {
		return fmt.Errorf("create idx_research_progress_live: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_idea_researching
		ON idea(updated_at)
		WHERE status = 'RESEARCHING';
	`).Error; err != nil {
		return fmt.Errorf("create idx_idea_researching: %w", err)
	}
	return nil
}
