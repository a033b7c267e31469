package web_search

import (
	"fmt"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/scoring"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
)

const fetchLimit = 25

func (p *Pipeline) Run(jc *jobrt.Context) (*jobrt.Outcome, error) {
	if p.search == nil {
		return nil, fmt.Errorf("web search provider not configured")
	}
	query := scoring.Query(jc.Item.Title, jc.Item.Content, 6)
	if query == "" {
		return &jobrt.Outcome{}, nil
	}

	jc.Step("Searching the web...")
	hits, err := p.search.Search(jc.Ctx, query, fetchLimit)
	if err != nil {
		return nil, err
	}
	if jc.Superseded() {
		return nil, nil
	}

	jc.Step(fmt.Sprintf("Scoring %d web results...", len(hits)))
	cands := make([]scoring.Candidate, 0, len(hits))
	for _, h := range hits {
		src := h.Domain
		if src == "" {
			src = "web"
		}
		cands = append(cands, scoring.Candidate{
			Source:      src,
			Title:       h.Title,
			Description: h.Snippet,
			URL:         h.URL,
		})
	}
	results := scoring.Rank(jc.Item.Title+" "+jc.Item.Content, ideas.ResultTypeWebSearch, cands, scoring.Options{})
	return &jobrt.Outcome{Results: results}, nil
}
