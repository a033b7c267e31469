package observability

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ideaforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/domain/jobs"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/research"
)

func TestNewMetricsDisabledIsNilSafe(t *testing.T) {
	m := NewMetrics(logger.Nop(), MetricsConfig{})
	require.Nil(t, m)

	m.ObserveAPI("GET", "/x", "200", time.Second)
	m.ApiInflightInc()
	m.IncResearchStarted()
	m.IncWorkerTerminal("github", "FAILED")
	require.NoError(t, m.WritePrometheus(&bytes.Buffer{}))

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 503, rec.Code)
}

func TestWritePrometheusIsSortedAndLabelled(t *testing.T) {
	m := NewMetrics(logger.Nop(), MetricsConfig{Enabled: true})
	m.ObserveAPI("POST", "/api/ideas/:id/research", "200", 20*time.Millisecond)
	m.ObserveAPI("GET", "/api/ideas", "200", 5*time.Millisecond)
	m.ObserveAPI("GET", "/api/ideas", "200", 5*time.Millisecond)
	m.ObserveWorker("code-search", "COMPLETED", 3*time.Second)

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, body, `ideaforge_api_requests_total{method="GET",route="/api/ideas",status="200"} 2`)
	get := strings.Index(body, `ideaforge_api_requests_total{method="GET"`)
	post := strings.Index(body, `ideaforge_api_requests_total{method="POST"`)
	assert.Less(t, get, post)
	assert.Contains(t, body, `ideaforge_worker_duration_seconds_bucket{worker_type="code-search",status="COMPLETED",le="5"} 1`)
	assert.Contains(t, body, `ideaforge_worker_duration_seconds_bucket{worker_type="code-search",status="COMPLETED",le="2.5"} 0`)
}

func TestLabelEscaping(t *testing.T) {
	assert.Equal(t, `{a="x\"y\\z\n"}`, labelString([]string{"a"}, []string{"x\"y\\z\n"}))
	assert.Equal(t, `{a="unknown",b="unknown"}`, labelString([]string{"a", "b"}, nil))
	assert.Equal(t, `{le="1"}`, withLe("", "1"))
	assert.Equal(t, `{a="b",le="+Inf"}`, withLe(`{a="b"}`, "+Inf"))
}

func TestCollectJobQueue(t *testing.T) {
	db := testutil.Tx(t, testutil.DB(t))
	now := time.Now().UTC()
	for i, st := range []jobs.JobStatus{jobs.JobQueued, jobs.JobQueued, jobs.JobFailed} {
		require.NoError(t, db.Create(&jobs.JobRun{
			ID:          uuid.NewString() + "-" + string(rune('a'+i)),
			OwnerUserID: uuid.New(),
			JobType:     "github",
			EntityID:    uuid.New(),
			Status:      st,
			MaxAttempts: 3,
			RunAfter:    now,
		}).Error)
	}

	m := NewMetrics(logger.Nop(), MetricsConfig{Enabled: true})
	require.NoError(t, m.CollectJobQueue(context.Background(), db))

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, `ideaforge_job_queue_depth{status="queued"} 2`)
	assert.Contains(t, out, `ideaforge_job_queue_depth{status="failed"} 1`)
	assert.Contains(t, out, `ideaforge_job_queue_depth{status="running"} 0`)
}

type recordingNotifier struct{ events []research.Event }

func (r *recordingNotifier) Notify(_ context.Context, ev research.Event) { r.events = append(r.events, ev) }

func TestCountingNotifier(t *testing.T) {
	m := NewMetrics(logger.Nop(), MetricsConfig{Enabled: true})
	rec := &recordingNotifier{}
	n := NewCountingNotifier(rec, m)
	ctx := context.Background()
	ideaID := uuid.New()

	n.Notify(ctx, research.Event{Type: research.EventResearchStarted, IdeaID: ideaID})
	n.Notify(ctx, research.Event{Type: research.EventResearchProgress, IdeaID: ideaID, Progress: &ideas.ResearchProgress{
		WorkerType: ideas.WorkerCodeSearch, Status: ideas.ProgressRunning, Message: "Retrying (1/3)...",
	}})
	n.Notify(ctx, research.Event{Type: research.EventResearchProgress, IdeaID: ideaID, Progress: &ideas.ResearchProgress{
		WorkerType: ideas.WorkerCodeSearch, Status: ideas.ProgressFailed,
	}})
	n.Notify(ctx, research.Event{Type: research.EventResearchCompleted, IdeaID: ideaID})

	require.Len(t, rec.events, 4)
	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "ideaforge_research_started_total 1")
	assert.Contains(t, out, "ideaforge_research_completed_total 1")
	assert.Contains(t, out, `ideaforge_worker_retries_total{worker_type="code-search"} 1`)
	assert.Contains(t, out, `ideaforge_worker_terminal_total{worker_type="code-search",status="FAILED"} 1`)
}

func TestCountingNotifierWithoutMetricsPassesThrough(t *testing.T) {
	rec := &recordingNotifier{}
	n := NewCountingNotifier(rec, nil)
	assert.Same(t, rec, n)
}

func TestParseHeaders(t *testing.T) {
	assert.Nil(t, ParseHeaders(""))
	assert.Nil(t, ParseHeaders("junk,=x"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2=3"}, ParseHeaders(" a=1 , b=2=3,c="))
}

func TestPrimitivesRender(t *testing.T) {
	g := NewGauge("inflight", "In flight.")
	g.Inc()
	g.Inc()
	g.Dec()
	c := NewCounter("started_total", "Started.")
	h := NewHistogramVec("latency_seconds", "Latency.", []string{"op"}, []float64{1, 0.1})
	h.Observe(0.05, "read")
	h.Observe(0.5, "read")
	h.Observe(7, "read")

	var buf bytes.Buffer
	for _, p := range []promWriter{g, c, h} {
		require.NoError(t, p.WritePrometheus(&buf))
	}
	out := buf.String()
	assert.Contains(t, out, "# TYPE inflight gauge\ninflight 1\n")
	assert.Contains(t, out, "started_total 0\n", "unlabelled series render before the first sample")
	assert.Contains(t, out, `latency_seconds_bucket{op="read",le="0.1"} 1`)
	assert.Contains(t, out, `latency_seconds_bucket{op="read",le="1"} 2`)
	assert.Contains(t, out, `latency_seconds_bucket{op="read",le="+Inf"} 3`)
	assert.Contains(t, out, `latency_seconds_count{op="read"} 3`)
	assert.Less(t, strings.Index(out, `le="0.1"`), strings.Index(out, `le="1"`))
}
