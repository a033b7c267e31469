package ai_analysis

import (
	"github.com/yungbote/ideaforge-backend/internal/clients/gemini"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type Pipeline struct {
	log *logger.Logger
	ai  gemini.Analyzer
}

func New(baseLog *logger.Logger, ai gemini.Analyzer) *Pipeline {
	return &Pipeline{
		log: baseLog.With("job", "ai_analysis"),
		ai:  ai,
	}
}

func (p *Pipeline) Type() ideas.WorkerType { return ideas.WorkerAIAnalysis }
