package community_search

import (
	"fmt"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/scoring"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) (*jobrt.Outcome, error) {
	if p.feeds == nil {
		return nil, fmt.Errorf("community feed not configured")
	}
	query := scoring.Query(jc.Item.Title, jc.Item.Content, 4)
	if query == "" {
		return &jobrt.Outcome{}, nil
	}

	jc.Step("Searching community discussions...")
	items, err := p.feeds.SearchDiscussions(jc.Ctx, query, 30)
	if err != nil {
		return nil, err
	}
	if jc.Superseded() {
		return nil, nil
	}

	jc.Step(fmt.Sprintf("Scoring %d discussions...", len(items)))
	cands := make([]scoring.Candidate, 0, len(items))
	for _, it := range items {
		cands = append(cands, scoring.Candidate{
			Source:      "hacker-news",
			Title:       it.Title,
			Description: it.Description,
			URL:         it.URL,
		})
	}
	results := scoring.Rank(jc.Item.Title+" "+jc.Item.Content, ideas.ResultTypeDiscussion, cands, scoring.Options{})
	return &jobrt.Outcome{Results: results}, nil
}
