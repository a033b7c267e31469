package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/data/repos/ideas"
	"github.com/yungbote/ideaforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type IdeaRepo = ideas.IdeaRepo
type IdeaListFilter = ideas.IdeaListFilter
type ResearchProgressRepo = ideas.ResearchProgressRepo
type ResearchResultRepo = ideas.ResearchResultRepo
type AiInsightRepo = ideas.AiInsightRepo

type JobRunRepo = jobs.JobRunRepo
type RetentionPolicy = jobs.RetentionPolicy

// Set is every repo the service uses, constructed over one handle.
type Set struct {
	Idea     IdeaRepo
	Progress ResearchProgressRepo
	Result   ResearchResultRepo
	Insight  AiInsightRepo
	JobRun   JobRunRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Idea:     ideas.NewIdeaRepo(db, log),
		Progress: ideas.NewResearchProgressRepo(db, log),
		Result:   ideas.NewResearchResultRepo(db, log),
		Insight:  ideas.NewAiInsightRepo(db, log),
		JobRun:   jobs.NewJobRunRepo(db, log),
	}
}
