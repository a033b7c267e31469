package domain

import (
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/domain/jobs"
)

type Idea = ideas.Idea
type IdeaStatus = ideas.IdeaStatus
type IdeaCounts = ideas.IdeaCounts
type ResearchProgress = ideas.ResearchProgress
type ProgressStatus = ideas.ProgressStatus
type ProgressOutcome = ideas.ProgressOutcome
type ResearchResult = ideas.ResearchResult
type ResultType = ideas.ResultType
type AiInsight = ideas.AiInsight
type InsightType = ideas.InsightType
type WorkerType = ideas.WorkerType
type WorkItem = ideas.WorkItem

type JobRun = jobs.JobRun
type JobStatus = jobs.JobStatus

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&ideas.Idea{},
		&ideas.ResearchProgress{},
		&ideas.ResearchResult{},
		&ideas.AiInsight{},
		&jobs.JobRun{},
	}
}
