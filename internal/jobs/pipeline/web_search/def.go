package web_search

import (
	"github.com/yungbote/ideaforge-backend/internal/clients/websearch"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type Pipeline struct {
	log    *logger.Logger
	search websearch.Searcher
}

func New(baseLog *logger.Logger, search websearch.Searcher) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", "web_search"),
		search: search,
	}
}

func (p *Pipeline) Type() ideas.WorkerType { return ideas.WorkerWebSearch }
