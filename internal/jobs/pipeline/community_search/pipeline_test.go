package community_search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ideaforge-backend/internal/clients/feeds"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type fakeFeeds struct {
	query string
	items []feeds.Item
}

func (f *fakeFeeds) SearchDiscussions(_ context.Context, q string, _ int) ([]feeds.Item, error) {
	f.query = q
	return f.items, nil
}

func (f *fakeFeeds) LatestProducts(context.Context, int) ([]feeds.Item, error) { return nil, nil }

func TestRunFilesDiscussions(t *testing.T) {
	f := &fakeFeeds{items: []feeds.Item{
		{Title: "Ask HN: What do bike couriers use for routing?", URL: "https://news.ycombinator.com/item?id=2"},
		{Title: "Show HN: Courier routing", Description: "bike courier routing tool", URL: "https://news.ycombinator.com/item?id=1"},
	}}
	out, err := New(logger.Nop(), f).Run(jobrt.DetachedContext(context.Background(), ideas.WorkItem{
		Title:   "Bike courier routing",
		Content: "Routing tool for couriers",
	}, nil))
	require.NoError(t, err)
	assert.Equal(t, "bike courier routing couriers", f.query)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "https://news.ycombinator.com/item?id=1", out.Results[0].URL)
	for _, r := range out.Results {
		assert.Equal(t, ideas.ResultTypeDiscussion, r.Type)
		assert.Equal(t, "hacker-news", r.Source)
	}
}
