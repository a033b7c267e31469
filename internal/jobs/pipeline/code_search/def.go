package code_search

import (
	"github.com/yungbote/ideaforge-backend/internal/clients/github"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type Pipeline struct {
	log   *logger.Logger
	repos github.RepoSearcher
}

func New(baseLog *logger.Logger, repos github.RepoSearcher) *Pipeline {
	return &Pipeline{
		log:   baseLog.With("job", "code_search"),
		repos: repos,
	}
}

func (p *Pipeline) Type() ideas.WorkerType { return ideas.WorkerCodeSearch }
