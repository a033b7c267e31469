package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	jobtypes "github.com/yungbote/ideaforge-backend/internal/domain/jobs"
	"github.com/yungbote/ideaforge-backend/internal/jobs/queue"
	"github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/ideaforge-backend/internal/research"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

type stubHandler struct {
	wt    ideas.WorkerType
	calls atomic.Int32
	fn    func(call int32) (*runtime.Outcome, error)
}

func (s *stubHandler) Type() ideas.WorkerType { return s.wt }

func (s *stubHandler) Run(*runtime.Context) (*runtime.Outcome, error) {
	return s.fn(s.calls.Add(1))
}

func oneResult(int32) (*runtime.Outcome, error) {
	return &runtime.Outcome{Results: []*ideas.ResearchResult{{
		Type: ideas.ResultTypeDiscussion, Source: "stub", Title: "thread", SimilarityScore: 50, RelevanceScore: 0.5,
	}}}, nil
}

type env struct {
	db     *gorm.DB
	repos  repos.Set
	coord  *research.Coordinator
	worker *Worker
}

func newEnv(t *testing.T, policy queue.Policy, handlers ...runtime.Handler) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)

	reg := runtime.NewRegistry()
	for _, h := range handlers {
		require.NoError(t, reg.Register(h))
	}
	recon := research.NewReconciler(log, set.Idea, nil)
	runner := runtime.NewRunner(db, log, reg, set.Progress, set.Result, set.Insight, recon, nil)
	dispatcher := queue.NewDispatcher(log, set.JobRun, policy)
	coord := research.NewCoordinator(db, log, set.Idea, set.Progress, dispatcher, nil,
		research.WithWorkerTypes(reg.Types()...))

	w := NewWorker(log, set.JobRun, runner, recon, Config{
		Concurrency:   2,
		PollInterval:  10 * time.Millisecond,
		SweepInterval: 50 * time.Millisecond,
		Policy:        dispatcher.Policy(),
	})
	return &env{db: db, repos: set, coord: coord, worker: w}
}

func (e *env) run(t *testing.T) (*ideas.Idea, *research.RunHandle, func()) {
	t.Helper()
	idea := testutil.SeedIdea(t, context.Background(), e.db, "Shared workshop", testutil.Words(30))
	handle, err := e.coord.StartResearch(context.Background(), idea.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	e.worker.Start(ctx)
	return idea, handle, func() {
		cancel()
		e.worker.Wait()
	}
}

func (e *env) ideaStatus(id uuid.UUID) ideas.IdeaStatus {
	idea, err := e.repos.Idea.GetByID(dbctx.Background(), id)
	if err != nil || idea == nil {
		return ""
	}
	return idea.Status
}

func TestWorkerRunsEveryItemAndReconciles(t *testing.T) {
	web := &stubHandler{wt: ideas.WorkerWebSearch, fn: oneResult}
	community := &stubHandler{wt: ideas.WorkerCommunitySearch, fn: oneResult}
	e := newEnv(t, queue.Policy{MaxAttempts: 3, BackoffBase: 10 * time.Millisecond}, web, community)

	idea, handle, stop := e.run(t)
	defer stop()

	require.Eventually(t, func() bool {
		return e.ideaStatus(idea.ID) == ideas.IdeaStatusIdle
	}, 5*time.Second, 20*time.Millisecond)

	rows, err := e.repos.Progress.ListByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, ideas.ProgressCompleted, row.Status)
		assert.Equal(t, 1, row.ResultsCount)
	}
	for _, jh := range handle.Jobs {
		require.Eventually(t, func() bool {
			job, err := e.repos.JobRun.GetByID(dbctx.Background(), jh.ID)
			return err == nil && job != nil && job.Status == jobtypes.JobSucceeded
		}, 2*time.Second, 20*time.Millisecond)
	}
}

func TestWorkerRetriesWithBackoff(t *testing.T) {
	flaky := &stubHandler{wt: ideas.WorkerCodeSearch, fn: func(call int32) (*runtime.Outcome, error) {
		if call == 1 {
			return nil, errors.New("rate limited")
		}
		return oneResult(call)
	}}
	e := newEnv(t, queue.Policy{MaxAttempts: 3, BackoffBase: 10 * time.Millisecond}, flaky)

	idea, handle, stop := e.run(t)
	defer stop()

	require.Eventually(t, func() bool {
		return e.ideaStatus(idea.ID) == ideas.IdeaStatusIdle
	}, 5*time.Second, 20*time.Millisecond)

	require.Len(t, handle.Jobs, 1)
	require.Eventually(t, func() bool {
		job, err := e.repos.JobRun.GetByID(dbctx.Background(), handle.Jobs[0].ID)
		return err == nil && job != nil && job.Status == jobtypes.JobSucceeded
	}, 2*time.Second, 20*time.Millisecond)
	job, err := e.repos.JobRun.GetByID(dbctx.Background(), handle.Jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempts)
	assert.EqualValues(t, 2, flaky.calls.Load())

	results, err := e.repos.Result.ListVisibleByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestWorkerMarksFinalFailure(t *testing.T) {
	broken := &stubHandler{wt: ideas.WorkerAIAnalysis, fn: func(int32) (*runtime.Outcome, error) {
		return nil, errors.New("timeout")
	}}
	e := newEnv(t, queue.Policy{MaxAttempts: 2, BackoffBase: 10 * time.Millisecond}, broken)

	idea, handle, stop := e.run(t)
	defer stop()

	require.Eventually(t, func() bool {
		return e.ideaStatus(idea.ID) == ideas.IdeaStatusIdle
	}, 5*time.Second, 20*time.Millisecond)

	rows, err := e.repos.Progress.ListByIdea(dbctx.Background(), idea.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ideas.ProgressFailed, rows[0].Status)
	assert.Contains(t, rows[0].Error, "timeout")

	require.Eventually(t, func() bool {
		job, err := e.repos.JobRun.GetByID(dbctx.Background(), handle.Jobs[0].ID)
		return err == nil && job != nil && job.Status == jobtypes.JobFailed
	}, 2*time.Second, 20*time.Millisecond)
	assert.EqualValues(t, 2, broken.calls.Load())
}

func TestWorkerStopsOnCancel(t *testing.T) {
	e := newEnv(t, queue.DefaultPolicy(), &stubHandler{wt: ideas.WorkerWebSearch, fn: oneResult})
	ctx, cancel := context.WithCancel(context.Background())
	e.worker.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		e.worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
