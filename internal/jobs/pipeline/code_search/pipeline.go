package code_search

import (
	"fmt"
	"strings"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/scoring"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) (*jobrt.Outcome, error) {
	if p.repos == nil {
		return nil, fmt.Errorf("code search provider not configured")
	}
	// Repository search ANDs its terms; keep the query short.
	query := scoring.Query(jc.Item.Title, jc.Item.Content, 3)
	if query == "" {
		return &jobrt.Outcome{}, nil
	}

	jc.Step("Searching code repositories...")
	repos, err := p.repos.SearchRepositories(jc.Ctx, query, 30)
	if err != nil {
		return nil, err
	}
	if jc.Superseded() {
		return nil, nil
	}

	jc.Step(fmt.Sprintf("Scoring %d repositories...", len(repos)))
	cands := make([]scoring.Candidate, 0, len(repos))
	for _, r := range repos {
		desc := strings.TrimSpace(r.Description)
		if len(r.Topics) > 0 {
			desc = strings.TrimSpace(desc + " " + strings.Join(r.Topics, " "))
		}
		cands = append(cands, scoring.Candidate{
			Source:      "github",
			Title:       r.FullName,
			Description: fmt.Sprintf("%s (%d stars)", desc, r.Stars),
			URL:         r.HTMLURL,
		})
	}
	results := scoring.Rank(jc.Item.Title+" "+jc.Item.Content, ideas.ResultTypeRepository, cands, scoring.Options{})
	return &jobrt.Outcome{Results: results}, nil
}
