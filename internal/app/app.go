package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/ideaforge-backend/internal/data/db"
	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	httpserver "github.com/yungbote/ideaforge-backend/internal/http"
	httpH "github.com/yungbote/ideaforge-backend/internal/http/handlers"
	"github.com/yungbote/ideaforge-backend/internal/jobs/queue"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/jobs/worker"
	"github.com/yungbote/ideaforge-backend/internal/observability"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/realtime"
	"github.com/yungbote/ideaforge-backend/internal/realtime/bus"
	"github.com/yungbote/ideaforge-backend/internal/research"
	"github.com/yungbote/ideaforge-backend/internal/services"
	"github.com/yungbote/ideaforge-backend/internal/temporalx"
	"github.com/yungbote/ideaforge-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log     *logger.Logger
	Cfg     Config
	DB      *gorm.DB
	Repos   repos.Set
	Metrics *observability.Metrics

	Hub         *realtime.SSEHub
	Bus         bus.Bus
	Notifier    research.Notifier
	Registry    *jobrt.Registry
	Runner      *jobrt.Runner
	Reconciler  *research.Reconciler
	Coordinator *research.Coordinator
	Progress    *research.ProgressReader
	Ideas       services.IdeaService
	Server      *httpserver.Server

	dbSvc        *db.Service
	temporal     temporalsdkclient.Client
	worker       *worker.Worker
	otelShutdown func(context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) (*logger.Logger, error) {
	return logger.NewWithOptions(logger.Options{
		Mode:             cfg.LogMode,
		DisableRedaction: !cfg.LogRedaction,
		HashSalt:         cfg.LogHashSalt,
	})
}

// New wires every component. Nothing runs until Start.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	dbSvc, err := db.NewService(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.dbSvc = dbSvc
	if err := dbSvc.AutoMigrateAll(); err != nil {
		a.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	a.DB = dbSvc.DB()
	a.Repos = repos.NewSet(a.DB, log)
	a.Metrics = observability.NewMetrics(log, cfg.Metrics)

	if err := a.wireRealtime(ctx); err != nil {
		a.Close()
		return nil, err
	}

	clients, err := NewClients(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry, err = BuildRegistry(log, clients)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Reconciler = research.NewReconciler(log, a.Repos.Idea, a.Notifier)
	a.Runner = jobrt.NewRunner(a.DB, log, a.Registry, a.Repos.Progress, a.Repos.Result, a.Repos.Insight, a.Reconciler, a.Notifier)
	if a.Metrics != nil {
		a.Runner.SetObserver(a.Metrics)
	}

	enqueuer, err := a.wireEnqueuer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Coordinator = research.NewCoordinator(
		a.DB, log, a.Repos.Idea, a.Repos.Progress, enqueuer,
		research.NewDetector(cfg.Thresholds, nil),
		research.WithWorkerTypes(a.Registry.Types()...),
		research.WithNotifier(a.Notifier),
	)
	a.Progress = research.NewProgressReader(a.Repos.Idea, a.Repos.Progress, cfg.StuckAfter, nil)
	a.Ideas = services.NewIdeaService(log, a.Repos.Idea, a.Repos.Result, a.Repos.Insight, a.Coordinator, a.Coordinator, a.Progress)

	a.Server = httpserver.NewServer(httpserver.RouterConfig{
		Log:             log,
		Metrics:         a.Metrics,
		ServiceName:     otelServiceName(cfg.Otel),
		CORSOrigins:     cfg.CORSOrigins,
		IdeaHandler:     httpH.NewIdeaHandler(a.Ideas),
		ResearchHandler: httpH.NewResearchHandler(a.Ideas),
		StreamHandler:   httpH.NewStreamHandler(log, a.Hub),
		HealthHandler:   httpH.NewHealthHandler(a.DB),
	})
	log.Info("App wired",
		"dispatch_backend", cfg.DispatchBackend,
		"db_driver", dbSvc.Driver(),
		"worker_types", len(a.Registry.Types()),
	)
	return a, nil
}

func otelServiceName(cfg observability.OtelConfig) string {
	if !cfg.Enabled {
		return ""
	}
	return cfg.ServiceName
}

func (a *App) wireRealtime(ctx context.Context) error {
	a.Hub = realtime.NewSSEHub(a.Log)
	var pub realtime.Publisher
	if a.Cfg.RedisAddr != "" {
		b, err := bus.NewRedisBus(ctx, a.Log, bus.Config{
			Addr:     a.Cfg.RedisAddr,
			Password: a.Cfg.RedisPassword,
			DB:       a.Cfg.RedisDB,
			Prefix:   a.Cfg.RedisChannel,
		})
		if err != nil {
			return fmt.Errorf("init redis bus: %w", err)
		}
		a.Bus = b
		pub = b
	}
	a.Notifier = observability.NewCountingNotifier(realtime.NewNotifier(a.Log, a.Hub, pub), a.Metrics)
	return nil
}

func (a *App) wireEnqueuer(ctx context.Context) (research.Enqueuer, error) {
	switch a.Cfg.DispatchBackend {
	case BackendTemporal:
		tc, err := temporalx.NewClient(ctx, a.Log, a.Cfg.Temporal)
		if err != nil {
			return nil, fmt.Errorf("init temporal client: %w", err)
		}
		if tc == nil {
			return nil, errors.New("temporal backend selected but TEMPORAL_ADDRESS is empty")
		}
		a.temporal = tc
		return temporalx.NewDispatcher(a.Log, tc, a.Cfg.Temporal, a.Cfg.Queue)
	default:
		return queue.NewDispatcher(a.Log, a.Repos.JobRun, a.Cfg.Queue), nil
	}
}

type StartOptions struct {
	HTTP    bool
	Workers bool
}

// Start launches the requested roles and returns once they are running.
// HTTP serve errors are reported on the returned channel.
func (a *App) Start(ctx context.Context, opts StartOptions) (<-chan error, error) {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return nil, errors.New("app already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	errc := make(chan error, 1)

	if a.Bus != nil {
		if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			return nil, fmt.Errorf("start redis forwarder: %w", err)
		}
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Bus)
	}
	a.Metrics.StartDBCollector(ctx, a.Log, a.DB)

	if opts.Workers {
		if err := a.startWorkers(ctx); err != nil {
			return nil, err
		}
	}

	if opts.HTTP {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
			if err := a.Server.Run(a.Cfg.HTTPAddr); err != nil {
				errc <- fmt.Errorf("http server: %w", err)
			}
		}()
	}
	return errc, nil
}

func (a *App) startWorkers(ctx context.Context) error {
	switch a.Cfg.DispatchBackend {
	case BackendTemporal:
		tw, err := temporalworker.NewRunner(a.Log, a.temporal, a.Cfg.Temporal, a.Runner, a.Cfg.WorkerConcurrency)
		if err != nil {
			return fmt.Errorf("init temporal worker: %w", err)
		}
		if err := tw.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
		// Temporal owns retries; the sweep still recovers lost reconciles.
		a.wg.Add(1)
		go a.sweepLoop(ctx)
	default:
		a.worker = worker.NewWorker(a.Log, a.Repos.JobRun, a.Runner, a.Reconciler, worker.Config{
			Concurrency:   a.Cfg.WorkerConcurrency,
			StaleRunning:  a.Cfg.StuckAfter,
			SweepInterval: a.Cfg.SweepInterval,
			Policy:        a.Cfg.Queue,
		})
		a.worker.Start(ctx)
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB)
	}
	return nil
}

func (a *App) sweepLoop(ctx context.Context) {
	defer a.wg.Done()
	every := a.Cfg.SweepInterval
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := a.Reconciler.Sweep(ctx, 200); err != nil {
				a.Log.Warn("reconcile sweep failed", "error", err)
			} else if n > 0 {
				a.Log.Info("reconcile sweep closed out runs", "count", n)
			}
		}
	}
}

// Close stops every role and releases clients. Safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.Log.Warn("http shutdown", "error", err)
		}
	}
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
	if a.worker != nil {
		a.worker.Wait()
		a.worker = nil
	}
	if a.Coordinator != nil {
		a.Coordinator.Wait()
	}
	a.wg.Wait()

	if a.temporal != nil {
		a.temporal.Close()
		a.temporal = nil
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("redis bus close", "error", err)
		}
		a.Bus = nil
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(shutdownCtx)
		a.otelShutdown = nil
	}
	if a.dbSvc != nil {
		_ = a.dbSvc.Close()
		a.dbSvc = nil
	}
	a.Log.Sync()
}
