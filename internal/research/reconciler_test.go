package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
)

func TestReconcileMixedTerminalRowsGoesIdle(t *testing.T) {
	h := newHarness(t, WithWorkerTypes(ideas.WorkerAIAnalysis, ideas.WorkerWebSearch))
	idea := h.seedIdea(t, "Two workers", words(30))

	handle, err := h.coord.StartResearch(context.Background(), idea.ID)
	require.NoError(t, err)
	require.Len(t, handle.Progress, 2)

	h.finishRow(t, handle.Progress[0].ID, ideas.ProgressCompleted, 3, "")
	done, err := h.recon.Reconcile(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, ideas.IdeaStatusResearching, h.idea(t, idea.ID).Status)

	h.finishRow(t, handle.Progress[1].ID, ideas.ProgressFailed, 0, "timeout")
	done, err = h.recon.Reconcile(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.True(t, done)

	stored := h.idea(t, idea.ID)
	assert.Equal(t, ideas.IdeaStatusIdle, stored.Status)
	require.NotNil(t, stored.LastResearchedAt)

	byType := map[ideas.WorkerType]*ideas.ResearchProgress{}
	for _, row := range h.progress(t, idea.ID) {
		byType[row.WorkerType] = row
	}
	assert.Equal(t, ideas.ProgressCompleted, byType[handle.Progress[0].WorkerType].Status)
	assert.Equal(t, 3, byType[handle.Progress[0].WorkerType].ResultsCount)
	assert.Equal(t, ideas.ProgressFailed, byType[handle.Progress[1].WorkerType].Status)
	assert.Equal(t, "timeout", byType[handle.Progress[1].WorkerType].Error)

	// redundant passes are no-ops
	done, err = h.recon.Reconcile(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, ideas.IdeaStatusIdle, h.idea(t, idea.ID).Status)
	assert.Contains(t, h.notifier.Types(), EventResearchCompleted)
}

func TestReconcileWithoutRowsKeepsStatus(t *testing.T) {
	h := newHarness(t)
	idea := h.seedIdea(t, "No rows", words(30))
	h.setIdea(t, idea.ID, map[string]interface{}{"status": ideas.IdeaStatusResearching})

	done, err := h.recon.Reconcile(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, ideas.IdeaStatusResearching, h.idea(t, idea.ID).Status)
}

func TestTerminalRowsRejectFurtherUpdates(t *testing.T) {
	h := newHarness(t, WithWorkerTypes(ideas.WorkerAIAnalysis))
	idea := h.seedIdea(t, "Once", words(30))
	handle, err := h.coord.StartResearch(context.Background(), idea.ID)
	require.NoError(t, err)

	h.finishRow(t, handle.Progress[0].ID, ideas.ProgressCompleted, 2, "")
	outcome, err := h.repos.Progress.UpdateLive(dbctx.Background(), handle.Progress[0].ID, map[string]interface{}{
		"status": ideas.ProgressFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, ideas.ProgressRowMissing, outcome)
}

func TestSweepClosesOutFinishedRuns(t *testing.T) {
	h := newHarness(t, WithWorkerTypes(ideas.WorkerCodeSearch))
	finished := h.seedIdea(t, "Finished", words(30))
	running := h.seedIdea(t, "Running", words(30))

	fh, err := h.coord.StartResearch(context.Background(), finished.ID)
	require.NoError(t, err)
	_, err = h.coord.StartResearch(context.Background(), running.ID)
	require.NoError(t, err)
	h.finishRow(t, fh.Progress[0].ID, ideas.ProgressCompleted, 0, "")

	closed, err := h.recon.Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.Equal(t, ideas.IdeaStatusIdle, h.idea(t, finished.ID).Status)
	assert.Equal(t, ideas.IdeaStatusResearching, h.idea(t, running.ID).Status)
}
