package ideas

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
)

func setup(t *testing.T) (*gorm.DB, dbctx.Context) {
	t.Helper()
	return testutil.DB(t), dbctx.Background()
}

func TestMarkResearchingIsConditional(t *testing.T) {
	db, dbc := setup(t)
	repo := NewIdeaRepo(db, testutil.Logger(t))
	idea := testutil.SeedIdea(t, context.Background(), db, "Idea", testutil.Words(10))

	now := time.Now().UTC()
	ok, err := repo.MarkResearching(dbc, idea.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkResearching(dbc, idea.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "second flip must lose")

	ok, err = repo.MarkResearching(dbc, uuid.New(), now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(dbc, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, types.IdeaStatusResearching, got.Status)
	require.NotNil(t, got.LastResearchedAt)
	assert.WithinDuration(t, now, *got.LastResearchedAt, time.Second)
}

func TestCompleteIfAllTerminal(t *testing.T) {
	db, dbc := setup(t)
	ctx := context.Background()
	repo := NewIdeaRepo(db, testutil.Logger(t))
	idea := testutil.SeedIdea(t, ctx, db, "Idea", testutil.Words(10))
	_, err := repo.MarkResearching(dbc, idea.ID, time.Now().UTC())
	require.NoError(t, err)

	// no rows at all: stays RESEARCHING
	ok, err := repo.CompleteIfAllTerminal(dbc, idea.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	run := uuid.New()
	testutil.SeedProgress(t, ctx, db, idea.ID, run, types.WorkerWebSearch, types.ProgressCompleted)
	live := testutil.SeedProgress(t, ctx, db, idea.ID, run, types.WorkerCodeSearch, types.ProgressRunning)

	ok, err = repo.CompleteIfAllTerminal(dbc, idea.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Model(&types.ResearchProgress{}).Where("id = ?", live.ID).Update("status", types.ProgressFailed).Error)
	ok, err = repo.CompleteIfAllTerminal(dbc, idea.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompleteIfAllTerminal(dbc, idea.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already idle")

	got, err := repo.GetByID(dbc, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, types.IdeaStatusIdle, got.Status)
}

func TestListFiltersAndCounts(t *testing.T) {
	db, dbc := setup(t)
	ctx := context.Background()
	repo := NewIdeaRepo(db, testutil.Logger(t))
	solar := testutil.SeedIdea(t, ctx, db, "Solar kettle", "boil water with sunlight")
	bike := testutil.SeedIdea(t, ctx, db, "Bike radar", "rear facing radar for SOLAR powered bikes")
	other := testutil.SeedIdea(t, ctx, db, "Sourdough app", "starter feeding reminders")

	testutil.SeedResult(t, ctx, db, solar.ID, "a", 80, false)
	testutil.SeedResult(t, ctx, db, solar.ID, "b", 20, true)

	got, err := repo.List(dbc, IdeaListFilter{Search: "solar"})
	require.NoError(t, err)
	ids := map[uuid.UUID]bool{}
	for _, i := range got {
		ids[i.ID] = true
	}
	assert.Len(t, got, 2)
	assert.True(t, ids[solar.ID])
	assert.True(t, ids[bike.ID])

	_, err = repo.MarkResearching(dbc, other.ID, time.Now().UTC())
	require.NoError(t, err)
	got, err = repo.List(dbc, IdeaListFilter{Status: types.IdeaStatusResearching})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, other.ID, got[0].ID)

	counts, err := repo.Counts(dbc, []uuid.UUID{solar.ID, bike.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[solar.ID].ResearchResults, "dismissed results still count")
	assert.Zero(t, counts[bike.ID].ResearchResults)
}

func TestDeleteCascades(t *testing.T) {
	db, dbc := setup(t)
	ctx := context.Background()
	repo := NewIdeaRepo(db, testutil.Logger(t))
	idea := testutil.SeedIdea(t, ctx, db, "Idea", testutil.Words(10))
	testutil.SeedProgress(t, ctx, db, idea.ID, uuid.New(), types.WorkerWebSearch, types.ProgressPending)
	testutil.SeedResult(t, ctx, db, idea.ID, "r", 50, false)

	ok, err := repo.Delete(dbc, idea.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var n int64
	require.NoError(t, db.Model(&types.ResearchProgress{}).Where("idea_id = ?", idea.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&types.ResearchResult{}).Where("idea_id = ?", idea.ID).Count(&n).Error)
	assert.Zero(t, n)

	ok, err = repo.Delete(dbc, idea.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateLiveReportsRowMissing(t *testing.T) {
	db, dbc := setup(t)
	ctx := context.Background()
	repo := NewResearchProgressRepo(db, testutil.Logger(t))
	idea := testutil.SeedIdea(t, ctx, db, "Idea", testutil.Words(10))
	row := testutil.SeedProgress(t, ctx, db, idea.ID, uuid.New(), types.WorkerWebSearch, types.ProgressPending)

	out, err := repo.UpdateLive(dbc, row.ID, map[string]interface{}{"status": types.ProgressRunning})
	require.NoError(t, err)
	assert.Equal(t, types.ProgressUpdated, out)

	out, err = repo.UpdateLive(dbc, row.ID, map[string]interface{}{"status": types.ProgressCompleted})
	require.NoError(t, err)
	assert.Equal(t, types.ProgressUpdated, out)

	// terminal rows are frozen
	out, err = repo.UpdateLive(dbc, row.ID, map[string]interface{}{"message": "late"})
	require.NoError(t, err)
	assert.Equal(t, types.ProgressRowMissing, out)

	n, err := repo.DeleteByIdea(dbc, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	out, err = repo.UpdateLive(dbc, row.ID, map[string]interface{}{"message": "gone"})
	require.NoError(t, err)
	assert.Equal(t, types.ProgressRowMissing, out)
}

func TestResultsVisibleOrderAndDismiss(t *testing.T) {
	db, dbc := setup(t)
	ctx := context.Background()
	repo := NewResearchResultRepo(db, testutil.Logger(t))
	idea := testutil.SeedIdea(t, ctx, db, "Idea", testutil.Words(10))
	low := testutil.SeedResult(t, ctx, db, idea.ID, "low", 10, false)
	high := testutil.SeedResult(t, ctx, db, idea.ID, "high", 90, false)
	testutil.SeedResult(t, ctx, db, idea.ID, "hidden", 99, true)

	got, err := repo.ListVisibleByIdea(dbc, idea.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, high.ID, got[0].ID)
	assert.Equal(t, low.ID, got[1].ID)

	ok, err := repo.Dismiss(dbc, low.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Dismiss(dbc, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = repo.ListVisibleByIdea(dbc, idea.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, high.ID, got[0].ID)
}
