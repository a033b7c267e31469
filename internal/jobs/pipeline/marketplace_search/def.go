package marketplace_search

import (
	"github.com/yungbote/ideaforge-backend/internal/clients/feeds"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type Pipeline struct {
	log   *logger.Logger
	feeds feeds.Client
}

func New(baseLog *logger.Logger, f feeds.Client) *Pipeline {
	return &Pipeline{
		log:   baseLog.With("job", "marketplace_search"),
		feeds: f,
	}
}

func (p *Pipeline) Type() ideas.WorkerType { return ideas.WorkerMarketplaceSearch }
