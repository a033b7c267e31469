package web_search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ideaforge-backend/internal/clients/websearch"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type fakeSearcher struct {
	query string
	hits  []websearch.Hit
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, q string, _ int) ([]websearch.Hit, error) {
	f.query = q
	return f.hits, f.err
}

func TestRunRanksHits(t *testing.T) {
	s := &fakeSearcher{hits: []websearch.Hit{
		{Title: "Bread recipes", URL: "https://bread", Domain: "bread.example"},
		{Title: "Courier routing platform", Snippet: "Routing for bike courier fleets", URL: "https://fleet", Domain: "fleet.example"},
		{Title: "No domain courier", URL: "https://nd"},
	}}
	p := New(logger.Nop(), s)
	jc := jobrt.DetachedContext(context.Background(), ideas.WorkItem{
		Title:   "Courier routing",
		Content: "Routing software for bike courier fleets",
	}, nil)

	out, err := p.Run(jc)
	require.NoError(t, err)
	assert.Equal(t, "courier routing bike fleets software", s.query)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "https://fleet", out.Results[0].URL)
	assert.Equal(t, "fleet.example", out.Results[0].Source)
	assert.Equal(t, "web", out.Results[1].Source)
	assert.Equal(t, 0, out.Results[2].SimilarityScore)
	for _, r := range out.Results {
		assert.Equal(t, ideas.ResultTypeWebSearch, r.Type)
	}
}

func TestRunEmptyIdeaSkipsSearch(t *testing.T) {
	s := &fakeSearcher{err: errors.New("should not be called")}
	out, err := New(logger.Nop(), s).Run(jobrt.DetachedContext(context.Background(), ideas.WorkItem{}, nil))
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Empty(t, s.query)
}

func TestRunProviderError(t *testing.T) {
	s := &fakeSearcher{err: errors.New("blocked")}
	_, err := New(logger.Nop(), s).Run(jobrt.DetachedContext(context.Background(), ideas.WorkItem{Title: "x courier"}, nil))
	assert.Error(t, err)
}
