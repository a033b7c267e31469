package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/research"
)

type captureEnqueuer struct {
	mu    sync.Mutex
	items []ideas.WorkItem
}

func (c *captureEnqueuer) Enqueue(_ context.Context, item ideas.WorkItem) (research.JobHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	return research.JobHandle{ID: item.ProgressID.String(), WorkerType: item.WorkerType}, nil
}

type funcHandler struct {
	wt  ideas.WorkerType
	run func(*Context) (*Outcome, error)
}

func (f funcHandler) Type() ideas.WorkerType            { return f.wt }
func (f funcHandler) Run(c *Context) (*Outcome, error) { return f.run(c) }

type fixture struct {
	db       *gorm.DB
	repos    repos.Set
	coord    *research.Coordinator
	enqueuer *captureEnqueuer
	registry *Registry
	runner   *Runner
}

func newFixture(t *testing.T, handlers ...Handler) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	reg := NewRegistry()
	types := make([]ideas.WorkerType, 0, len(handlers))
	for _, h := range handlers {
		require.NoError(t, reg.Register(h))
		types = append(types, h.Type())
	}
	enq := &captureEnqueuer{}
	recon := research.NewReconciler(log, set.Idea, nil)
	return &fixture{
		db:       db,
		repos:    set,
		enqueuer: enq,
		registry: reg,
		coord:    research.NewCoordinator(db, log, set.Idea, set.Progress, enq, nil, research.WithWorkerTypes(types...)),
		runner:   NewRunner(db, log, reg, set.Progress, set.Result, set.Insight, recon, nil),
	}
}

func (f *fixture) start(t *testing.T) (*ideas.Idea, []ideas.WorkItem) {
	t.Helper()
	idea := testutil.SeedIdea(t, context.Background(), f.db, "Neighborhood tool library", testutil.Words(30))
	_, err := f.coord.StartResearch(context.Background(), idea.ID)
	require.NoError(t, err)
	f.enqueuer.mu.Lock()
	defer f.enqueuer.mu.Unlock()
	return idea, append([]ideas.WorkItem(nil), f.enqueuer.items...)
}

func (f *fixture) row(t *testing.T, id uuid.UUID) *ideas.ResearchProgress {
	t.Helper()
	row, err := f.repos.Progress.GetByID(dbctx.Background(), id)
	require.NoError(t, err)
	return row
}

func (f *fixture) ideaStatus(t *testing.T, id uuid.UUID) ideas.IdeaStatus {
	t.Helper()
	idea, err := f.repos.Idea.GetByID(dbctx.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, idea)
	return idea.Status
}

func twoResults(*Context) (*Outcome, error) {
	return &Outcome{
		Results: []*ideas.ResearchResult{
			{Type: ideas.ResultTypeWebSearch, Source: "test", Title: "one", SimilarityScore: 40, RelevanceScore: 0.4},
			{Type: ideas.ResultTypeWebSearch, Source: "test", Title: "two", SimilarityScore: 70, RelevanceScore: 0.7},
		},
		Insights: []*ideas.AiInsight{
			{Type: ideas.InsightCategory, Content: datatypes.JSON(`"tools"`), Confidence: 0.9},
		},
		Count: 2,
	}, nil
}

func TestExecuteSuccessPersistsAndReconciles(t *testing.T) {
	f := newFixture(t, funcHandler{wt: ideas.WorkerWebSearch, run: func(c *Context) (*Outcome, error) {
		c.Step("Searching the web...")
		return twoResults(c)
	}})
	idea, items := f.start(t)
	require.Len(t, items, 1)

	rep, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 1, Max: 3})
	require.NoError(t, err)
	assert.Equal(t, ideas.ProgressCompleted, rep.Status)
	assert.Equal(t, 2, rep.ResultsCount)

	row := f.row(t, items[0].ProgressID)
	require.NotNil(t, row)
	assert.Equal(t, ideas.ProgressCompleted, row.Status)
	assert.Equal(t, 2, row.ResultsCount)
	assert.NotNil(t, row.CompletedAt)
	assert.Empty(t, row.Error)

	results, err := f.repos.Result.ListVisibleByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "two", results[0].Title)

	insights, err := f.repos.Insight.ListByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	assert.Len(t, insights, 1)

	assert.Equal(t, ideas.IdeaStatusIdle, f.ideaStatus(t, idea.ID))
}

func TestExecuteRetryThenSucceedWritesResultsOnce(t *testing.T) {
	calls := 0
	f := newFixture(t, funcHandler{wt: ideas.WorkerWebSearch, run: func(c *Context) (*Outcome, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("upstream 503")
		}
		return twoResults(c)
	}})
	idea, items := f.start(t)

	rep, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 1, Max: 3})
	require.Error(t, err)
	var pe *research.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ideas.ProgressRunning, rep.Status)

	row := f.row(t, items[0].ProgressID)
	assert.Equal(t, ideas.ProgressRunning, row.Status)
	assert.Equal(t, "Retrying (1/3)...", row.Message)
	assert.Equal(t, ideas.IdeaStatusResearching, f.ideaStatus(t, idea.ID))

	_, err = f.runner.Execute(context.Background(), items[0], Attempt{Number: 2, Max: 3})
	require.NoError(t, err)

	results, err := f.repos.Result.ListVisibleByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// an at-least-once redelivery after completion is a no-op
	rep, err = f.runner.Execute(context.Background(), items[0], Attempt{Number: 3, Max: 3})
	require.NoError(t, err)
	assert.Equal(t, ideas.ProgressRowMissing, rep.Outcome)
	results, err = f.repos.Result.ListVisibleByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestExecuteFinalAttemptFails(t *testing.T) {
	f := newFixture(t, funcHandler{wt: ideas.WorkerCodeSearch, run: func(*Context) (*Outcome, error) {
		return nil, errors.New("timeout")
	}})
	idea, items := f.start(t)

	rep, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 3, Max: 3})
	require.Error(t, err)
	assert.Equal(t, ideas.ProgressFailed, rep.Status)

	row := f.row(t, items[0].ProgressID)
	assert.Equal(t, ideas.ProgressFailed, row.Status)
	assert.Contains(t, row.Error, "timeout")
	assert.NotNil(t, row.CompletedAt)
	assert.Equal(t, ideas.IdeaStatusIdle, f.ideaStatus(t, idea.ID))
}

func TestExecutePanicIsAFailure(t *testing.T) {
	f := newFixture(t, funcHandler{wt: ideas.WorkerCommunitySearch, run: func(*Context) (*Outcome, error) {
		panic("boom")
	}})
	_, items := f.start(t)

	rep, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 1, Max: 1})
	require.Error(t, err)
	assert.Equal(t, ideas.ProgressFailed, rep.Status)
	assert.Contains(t, f.row(t, items[0].ProgressID).Error, "boom")
}

func TestExecuteSupersededBeforeStartIsNoop(t *testing.T) {
	f := newFixture(t, funcHandler{wt: ideas.WorkerWebSearch, run: func(*Context) (*Outcome, error) {
		t.Fatal("handler must not run for a superseded item")
		return nil, nil
	}})
	idea, items := f.start(t)
	_, err := f.repos.Progress.DeleteByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)

	rep, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 1, Max: 3})
	require.NoError(t, err)
	assert.Equal(t, ideas.ProgressRowMissing, rep.Outcome)
}

func TestExecuteSupersededMidRunDiscardsResults(t *testing.T) {
	var f *fixture
	f = newFixture(t, funcHandler{wt: ideas.WorkerWebSearch, run: func(c *Context) (*Outcome, error) {
		// a newer run clears the rows while this one is still working
		_, err := f.repos.Progress.DeleteByIdea(dbctx.Background(), c.Item.IdeaID)
		require.NoError(t, err)
		return twoResults(c)
	}})
	idea, items := f.start(t)

	rep, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 1, Max: 3})
	require.NoError(t, err)
	assert.Equal(t, ideas.ProgressRowMissing, rep.Outcome)

	results, err := f.repos.Result.ListVisibleByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExecuteMissingHandlerFailsRow(t *testing.T) {
	f := newFixture(t, funcHandler{wt: ideas.WorkerWebSearch, run: twoResults})
	_, items := f.start(t)
	item := items[0]
	item.WorkerType = ideas.WorkerAIAnalysis

	rep, err := f.runner.Execute(context.Background(), item, Attempt{Number: 1, Max: 3})
	require.ErrorIs(t, err, ErrMissingHandler)
	assert.Equal(t, ideas.ProgressFailed, rep.Status)
}

func TestRegistryRejectsDuplicatesAndUnknownTypes(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(funcHandler{wt: ideas.WorkerCodeSearch, run: twoResults}))
	require.NoError(t, reg.Register(funcHandler{wt: ideas.WorkerAIAnalysis, run: twoResults}))
	assert.Error(t, reg.Register(funcHandler{wt: ideas.WorkerCodeSearch, run: twoResults}))
	assert.Error(t, reg.Register(funcHandler{wt: "carrier-pigeon", run: twoResults}))
	assert.Error(t, reg.Register(nil))
	assert.Equal(t, []ideas.WorkerType{ideas.WorkerAIAnalysis, ideas.WorkerCodeSearch}, reg.Types())
}

type observation struct {
	workerType, status string
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveWorker(workerType, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{workerType, status})
}

func TestExecuteReportsAttemptsToObserver(t *testing.T) {
	calls := 0
	f := newFixture(t, funcHandler{wt: ideas.WorkerWebSearch, run: func(c *Context) (*Outcome, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("upstream 503")
		}
		return twoResults(c)
	}})
	obs := &recordingObserver{}
	f.runner.SetObserver(obs)
	_, items := f.start(t)
	require.Len(t, items, 1)

	_, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 1, Max: 3})
	require.Error(t, err)
	_, err = f.runner.Execute(context.Background(), items[0], Attempt{Number: 2, Max: 3})
	require.NoError(t, err)

	assert.Equal(t, []observation{
		{"web-search", string(ideas.ProgressRunning)},
		{"web-search", string(ideas.ProgressCompleted)},
	}, obs.obs)
}

// duplicateIDs makes the results insert fail inside the completion transaction.
func duplicateIDs(*Context) (*Outcome, error) {
	id := uuid.New()
	return &Outcome{Results: []*ideas.ResearchResult{
		{ID: id, Type: ideas.ResultTypeWebSearch, Source: "test", Title: "one"},
		{ID: id, Type: ideas.ResultTypeWebSearch, Source: "test", Title: "two"},
	}}, nil
}

func TestExecuteFinalAttemptPersistFailureFailsRow(t *testing.T) {
	f := newFixture(t, funcHandler{wt: ideas.WorkerWebSearch, run: duplicateIDs})
	idea, items := f.start(t)

	rep, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 3, Max: 3})
	require.ErrorIs(t, err, research.ErrPersistence)
	assert.Equal(t, ideas.ProgressFailed, rep.Status)

	row := f.row(t, items[0].ProgressID)
	assert.Equal(t, ideas.ProgressFailed, row.Status)
	assert.Contains(t, row.Error, "persist outcome")
	assert.NotNil(t, row.CompletedAt)
	assert.Equal(t, ideas.IdeaStatusIdle, f.ideaStatus(t, idea.ID))

	results, err := f.repos.Result.ListVisibleByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExecutePersistFailureBeforeFinalAttemptRetries(t *testing.T) {
	f := newFixture(t, funcHandler{wt: ideas.WorkerWebSearch, run: duplicateIDs})
	idea, items := f.start(t)

	rep, err := f.runner.Execute(context.Background(), items[0], Attempt{Number: 1, Max: 3})
	require.ErrorIs(t, err, research.ErrPersistence)
	assert.Equal(t, ideas.ProgressRunning, rep.Status)
	assert.Equal(t, ideas.ProgressRunning, f.row(t, items[0].ProgressID).Status)
	assert.Equal(t, ideas.IdeaStatusResearching, f.ideaStatus(t, idea.ID))
}

func TestMarkFailedClosesInterruptedFinalAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, funcHandler{wt: ideas.WorkerCodeSearch, run: func(c *Context) (*Outcome, error) {
		cancel()
		<-c.Ctx.Done()
		return nil, c.Ctx.Err()
	}})
	idea, items := f.start(t)

	// an expired attempt leaves the row live
	rep, err := f.runner.Execute(ctx, items[0], Attempt{Number: 2, Max: 2})
	require.Error(t, err)
	assert.Equal(t, ideas.ProgressRunning, rep.Status)
	assert.Equal(t, ideas.IdeaStatusResearching, f.ideaStatus(t, idea.ID))

	rep, err = f.runner.MarkFailed(context.Background(), items[0], errors.New("start-to-close timeout"))
	require.NoError(t, err)
	assert.Equal(t, ideas.ProgressFailed, rep.Status)

	row := f.row(t, items[0].ProgressID)
	assert.Equal(t, ideas.ProgressFailed, row.Status)
	assert.Contains(t, row.Error, "start-to-close timeout")
	assert.Equal(t, ideas.IdeaStatusIdle, f.ideaStatus(t, idea.ID))

	// repeat is a no-op
	rep, err = f.runner.MarkFailed(context.Background(), items[0], errors.New("again"))
	require.NoError(t, err)
	assert.Equal(t, ideas.ProgressRowMissing, rep.Outcome)
	assert.Contains(t, f.row(t, items[0].ProgressID).Error, "start-to-close timeout")
}
