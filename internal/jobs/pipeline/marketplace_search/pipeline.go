package marketplace_search

import (
	"fmt"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/scoring"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
)

// The product feed is not query-filtered, so anything sharing no keyword
// with the idea is noise.
const minSimilarity = 1

func (p *Pipeline) Run(jc *jobrt.Context) (*jobrt.Outcome, error) {
	if p.feeds == nil {
		return nil, fmt.Errorf("marketplace feed not configured")
	}
	jc.Step("Searching product marketplaces...")
	items, err := p.feeds.LatestProducts(jc.Ctx, 0)
	if err != nil {
		return nil, err
	}
	if jc.Superseded() {
		return nil, nil
	}

	jc.Step(fmt.Sprintf("Comparing %d products...", len(items)))
	cands := make([]scoring.Candidate, 0, len(items))
	for _, it := range items {
		cands = append(cands, scoring.Candidate{
			Source:      "product-hunt",
			Title:       it.Title,
			Description: it.Description,
			URL:         it.URL,
		})
	}
	results := scoring.Rank(jc.Item.Title+" "+jc.Item.Content, ideas.ResultTypeProduct, cands, scoring.Options{MinSimilarity: minSimilarity})
	return &jobrt.Outcome{Results: results}, nil
}
