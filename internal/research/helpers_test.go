package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/platform/dbctx"
)

type fakeEnqueuer struct {
	mu      sync.Mutex
	items   []ideas.WorkItem
	failFor map[ideas.WorkerType]bool
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, item ideas.WorkItem) (JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[item.WorkerType] {
		return JobHandle{}, errors.New("broker unavailable")
	}
	f.items = append(f.items, item)
	return JobHandle{
		ID:         fmt.Sprintf("%s-%s-%d", item.IdeaID, item.WorkerType, len(f.items)),
		WorkerType: item.WorkerType,
	}, nil
}

func (f *fakeEnqueuer) Items() []ideas.WorkItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ideas.WorkItem(nil), f.items...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Types() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	db       *gorm.DB
	repos    repos.Set
	enqueuer *fakeEnqueuer
	notifier *recordingNotifier
	coord    *Coordinator
	recon    *Reconciler
	now      time.Time
}

func newHarness(t *testing.T, opts ...CoordinatorOption) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	h := &harness{
		db:       db,
		repos:    set,
		enqueuer: &fakeEnqueuer{failFor: map[ideas.WorkerType]bool{}},
		notifier: &recordingNotifier{},
		now:      time.Now().UTC(),
	}
	detector := NewDetector(DefaultThresholds(), func() time.Time { return h.now })
	all := append([]CoordinatorOption{
		WithNotifier(h.notifier),
		WithClock(func() time.Time { return h.now }),
	}, opts...)
	h.coord = NewCoordinator(db, log, set.Idea, set.Progress, h.enqueuer, detector, all...)
	h.recon = NewReconciler(log, set.Idea, h.notifier)
	return h
}

func (h *harness) seedIdea(t *testing.T, title, text string) *ideas.Idea {
	t.Helper()
	return testutil.SeedIdea(t, context.Background(), h.db, title, text)
}

func (h *harness) idea(t *testing.T, id uuid.UUID) *ideas.Idea {
	t.Helper()
	idea, err := h.repos.Idea.GetByID(dbctx.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, idea)
	return idea
}

func (h *harness) progress(t *testing.T, id uuid.UUID) []*ideas.ResearchProgress {
	t.Helper()
	rows, err := h.repos.Progress.ListByIdea(dbctx.Background(), id)
	require.NoError(t, err)
	return rows
}

func (h *harness) setIdea(t *testing.T, id uuid.UUID, updates map[string]interface{}) {
	t.Helper()
	require.NoError(t, h.db.Model(&ideas.Idea{}).Where("id = ?", id).Updates(updates).Error)
}

func (h *harness) finishRow(t *testing.T, id uuid.UUID, status ideas.ProgressStatus, results int, errText string) {
	t.Helper()
	now := time.Now().UTC()
	outcome, err := h.repos.Progress.UpdateLive(dbctx.Background(), id, map[string]interface{}{
		"status":        status,
		"results_count": results,
		"error":         errText,
		"completed_at":  now,
	})
	require.NoError(t, err)
	require.Equal(t, ideas.ProgressUpdated, outcome)
}
