package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/domain/jobs"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

// Metrics holds the process-wide counters. A nil *Metrics is valid and
// records nothing, so callers never need to guard.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	researchStarted   *Counter
	researchCompleted *Counter
	workerTerminal    *CounterVec
	workerRetries     *CounterVec
	providerLatency   *HistogramVec

	queueDepth *GaugeVec
	dbStats    *GaugeVec
	redisUp    *Gauge
	redisPing  *Gauge

	scrapeEvery time.Duration
}

type MetricsConfig struct {
	Enabled        bool
	ScrapeInterval time.Duration
}

// NewMetrics returns nil when metrics are disabled.
func NewMetrics(log *logger.Logger, cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	every := cfg.ScrapeInterval
	if every <= 0 {
		every = 10 * time.Second
	}
	m := &Metrics{
		apiRequests: NewCounterVec("ideaforge_api_requests_total", "Total API requests.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"ideaforge_api_request_duration_seconds",
			"API request latency in seconds.",
			[]string{"method", "route", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		),
		apiInflight:       NewGauge("ideaforge_api_inflight", "In-flight API requests."),
		researchStarted:   NewCounter("ideaforge_research_started_total", "Research runs started."),
		researchCompleted: NewCounter("ideaforge_research_completed_total", "Research runs whose workers all reached a terminal state."),
		workerTerminal:    NewCounterVec("ideaforge_worker_terminal_total", "Worker progress rows reaching a terminal state.", []string{"worker_type", "status"}),
		workerRetries:     NewCounterVec("ideaforge_worker_retries_total", "Failed worker attempts that were scheduled for retry.", []string{"worker_type"}),
		providerLatency: NewHistogramVec(
			"ideaforge_worker_duration_seconds",
			"Worker attempt duration in seconds.",
			[]string{"worker_type", "status"},
			[]float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		),
		queueDepth:  NewGaugeVec("ideaforge_job_queue_depth", "Dispatched work items by status.", []string{"status"}),
		dbStats:     NewGaugeVec("ideaforge_db_pool", "Database connection pool stats.", []string{"stat"}),
		redisUp:     NewGauge("ideaforge_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing:   NewGauge("ideaforge_redis_ping_seconds", "Redis ping latency in seconds."),
		scrapeEvery: every,
	}
	if log != nil {
		log.Info("Observability metrics enabled")
	}
	return m
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, p := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.researchStarted, m.researchCompleted, m.workerTerminal, m.workerRetries, m.providerLatency,
		m.queueDepth, m.dbStats, m.redisUp, m.redisPing,
	} {
		if err := p.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncResearchStarted() {
	if m == nil {
		return
	}
	m.researchStarted.Inc()
}

func (m *Metrics) IncResearchCompleted() {
	if m == nil {
		return
	}
	m.researchCompleted.Inc()
}

func (m *Metrics) IncWorkerTerminal(workerType, status string) {
	if m == nil {
		return
	}
	m.workerTerminal.Inc(workerType, status)
}

func (m *Metrics) IncWorkerRetry(workerType string) {
	if m == nil {
		return
	}
	m.workerRetries.Inc(workerType)
}

func (m *Metrics) ObserveWorker(workerType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.providerLatency.Observe(dur.Seconds(), workerType, status)
}

// StartDBCollector samples the sql.DB pool on every tick until ctx ends.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go m.tick(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: db stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
		m.dbStats.Set(float64(stats.InUse), "in_use")
		m.dbStats.Set(float64(stats.Idle), "idle")
		m.dbStats.Set(float64(stats.WaitCount), "wait_count")
		m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	})
}

// Pinger is anything with a liveness probe, the Redis bus for one.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, p Pinger) {
	if m == nil || p == nil {
		return
	}
	go m.tick(ctx, func() {
		start := time.Now()
		if err := p.Ping(ctx); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go m.tick(ctx, func() {
		if err := m.CollectJobQueue(ctx, db); err != nil && log != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
		}
	})
}

// CollectJobQueue refreshes the queue depth gauge once.
func (m *Metrics) CollectJobQueue(ctx context.Context, db *gorm.DB) error {
	if m == nil || db == nil {
		return nil
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&jobs.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range []jobs.JobStatus{jobs.JobQueued, jobs.JobRunning, jobs.JobSucceeded, jobs.JobFailed} {
		m.queueDepth.Set(0, string(s))
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		m.queueDepth.Set(float64(row.Count), status)
	}
	return nil
}

func (m *Metrics) tick(ctx context.Context, fn func()) {
	ticker := time.NewTicker(m.scrapeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
