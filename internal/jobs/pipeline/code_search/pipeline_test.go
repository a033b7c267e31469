package code_search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ideaforge-backend/internal/clients/github"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type fakeRepos struct {
	query string
	repos []github.Repository
}

func (f *fakeRepos) SearchRepositories(_ context.Context, q string, _ int) ([]github.Repository, error) {
	f.query = q
	return f.repos, nil
}

func TestRunScoresRepositories(t *testing.T) {
	f := &fakeRepos{repos: []github.Repository{
		{FullName: "acme/dotfiles", HTMLURL: "https://github.com/acme/dotfiles", Stars: 5},
		{FullName: "acme/courier-routing", HTMLURL: "https://github.com/acme/courier-routing", Description: "Bike courier routing engine", Topics: []string{"routing"}, Stars: 420},
	}}
	out, err := New(logger.Nop(), f).Run(jobrt.DetachedContext(context.Background(), ideas.WorkItem{
		Title:   "Courier routing",
		Content: "An engine for bike courier routing",
	}, nil))
	require.NoError(t, err)
	assert.Equal(t, "courier routing bike", f.query)
	require.Len(t, out.Results, 2)
	top := out.Results[0]
	assert.Equal(t, "acme/courier-routing", top.Title)
	assert.Equal(t, ideas.ResultTypeRepository, top.Type)
	assert.Equal(t, "github", top.Source)
	assert.Contains(t, top.Description, "420 stars")
}
