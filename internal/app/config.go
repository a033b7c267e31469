package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/ideaforge-backend/internal/data/db"
	"github.com/yungbote/ideaforge-backend/internal/data/repos"
	"github.com/yungbote/ideaforge-backend/internal/jobs/queue"
	"github.com/yungbote/ideaforge-backend/internal/observability"
	"github.com/yungbote/ideaforge-backend/internal/research"
	"github.com/yungbote/ideaforge-backend/internal/temporalx"
)

const (
	BackendQueue    = "queue"
	BackendTemporal = "temporal"
)

type Config struct {
	LogMode           string
	LogRedaction      bool
	LogHashSalt       string
	HTTPAddr          string
	CORSOrigins       []string
	DB                db.Config
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisChannel      string
	DispatchBackend   string
	Temporal          temporalx.Config
	GeminiAPIKey      string
	GeminiModel       string
	GitHubToken       string
	Thresholds        research.Thresholds
	StuckAfter        time.Duration
	Queue             queue.Policy
	WorkerConcurrency int
	SweepInterval     time.Duration
	Otel              observability.OtelConfig
	Metrics           observability.MetricsConfig
}

// LoadConfig reads config.yaml from . or ./config when present, then lets
// the environment override every key.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("LOG_REDACTION_ENABLED", true)
	v.SetDefault("HTTP_ADDR", ":8080")

	v.SetDefault("DB_DRIVER", db.DriverPostgres)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_NAME", "ideaforge")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "ideaforge.db")
	v.SetDefault("DB_SLOW_THRESHOLD", time.Second)

	v.SetDefault("REDIS_CHANNEL", "ideaforge:")
	v.SetDefault("DISPATCH_BACKEND", BackendQueue)
	v.SetDefault("TEMPORAL_NAMESPACE", "ideaforge")
	v.SetDefault("TEMPORAL_TASK_QUEUE", "ideaforge-research")
	v.SetDefault("TEMPORAL_DIAL_MAX_WAIT", 30*time.Second)

	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")

	v.SetDefault("RESEARCH_SIGNIFICANT_WORDS", research.DefaultSignificantWordChange)
	v.SetDefault("RESEARCH_MIN_WORDS", research.DefaultMinWords)
	v.SetDefault("RESEARCH_MANUAL_MIN_WORDS", research.DefaultManualMinWords)
	v.SetDefault("RESEARCH_COOLDOWN_HOURS", int(research.DefaultCooldown/time.Hour))
	v.SetDefault("RESEARCH_STUCK_AFTER", research.DefaultStuckAfter)

	def := queue.DefaultPolicy()
	v.SetDefault("QUEUE_MAX_ATTEMPTS", def.MaxAttempts)
	v.SetDefault("QUEUE_BACKOFF_BASE", def.BackoffBase)
	v.SetDefault("QUEUE_RETAIN_COMPLETED", def.Retention.CompletedAge)
	v.SetDefault("QUEUE_RETAIN_COMPLETED_COUNT", def.Retention.CompletedCount)
	v.SetDefault("QUEUE_RETAIN_FAILED", def.Retention.FailedAge)
	v.SetDefault("WORKER_CONCURRENCY", 5)
	v.SetDefault("RECONCILE_SWEEP_INTERVAL", time.Minute)

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "ideaforge-backend")
	v.SetDefault("OTEL_TRACES_SAMPLER_ARG", 0.1)
	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_SCRAPE_INTERVAL", 10*time.Second)
}

func fromViper(v *viper.Viper) Config {
	return Config{
		LogMode:      v.GetString("LOG_MODE"),
		LogRedaction: v.GetBool("LOG_REDACTION_ENABLED"),
		LogHashSalt:  v.GetString("LOG_HASH_SALT"),
		HTTPAddr:     v.GetString("HTTP_ADDR"),
		CORSOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		DB: db.Config{
			Driver:        strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			Host:          v.GetString("POSTGRES_HOST"),
			Port:          v.GetString("POSTGRES_PORT"),
			User:          v.GetString("POSTGRES_USER"),
			Password:      v.GetString("POSTGRES_PASSWORD"),
			Name:          v.GetString("POSTGRES_NAME"),
			SSLMode:       v.GetString("POSTGRES_SSLMODE"),
			SQLitePath:    v.GetString("SQLITE_PATH"),
			SlowThreshold: v.GetDuration("DB_SLOW_THRESHOLD"),
			MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		RedisAddr:       strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		RedisChannel:    v.GetString("REDIS_CHANNEL"),
		DispatchBackend: strings.ToLower(strings.TrimSpace(v.GetString("DISPATCH_BACKEND"))),
		Temporal: temporalx.Config{
			Address:               v.GetString("TEMPORAL_ADDRESS"),
			Namespace:             v.GetString("TEMPORAL_NAMESPACE"),
			TaskQueue:             v.GetString("TEMPORAL_TASK_QUEUE"),
			ClientCertPath:        v.GetString("TEMPORAL_CLIENT_CERT_PATH"),
			ClientKeyPath:         v.GetString("TEMPORAL_CLIENT_KEY_PATH"),
			ClientCAPath:          v.GetString("TEMPORAL_CLIENT_CA_PATH"),
			AutoRegisterNamespace: v.GetBool("TEMPORAL_AUTO_REGISTER_NAMESPACE"),
			DialMaxWait:           v.GetDuration("TEMPORAL_DIAL_MAX_WAIT"),
		},
		GeminiAPIKey: strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:  v.GetString("GEMINI_MODEL"),
		GitHubToken:  strings.TrimSpace(v.GetString("GITHUB_TOKEN")),
		Thresholds: research.Thresholds{
			SignificantWordChange: v.GetInt("RESEARCH_SIGNIFICANT_WORDS"),
			MinWords:              v.GetInt("RESEARCH_MIN_WORDS"),
			ManualMinWords:        v.GetInt("RESEARCH_MANUAL_MIN_WORDS"),
			Cooldown:              time.Duration(v.GetInt("RESEARCH_COOLDOWN_HOURS")) * time.Hour,
		},
		StuckAfter: v.GetDuration("RESEARCH_STUCK_AFTER"),
		Queue: queue.Policy{
			MaxAttempts: v.GetInt("QUEUE_MAX_ATTEMPTS"),
			BackoffBase: v.GetDuration("QUEUE_BACKOFF_BASE"),
			Retention: repos.RetentionPolicy{
				CompletedAge:   v.GetDuration("QUEUE_RETAIN_COMPLETED"),
				CompletedCount: v.GetInt("QUEUE_RETAIN_COMPLETED_COUNT"),
				FailedAge:      v.GetDuration("QUEUE_RETAIN_FAILED"),
			},
		},
		WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
		SweepInterval:     v.GetDuration("RECONCILE_SWEEP_INTERVAL"),
		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Environment: v.GetString("OTEL_ENVIRONMENT"),
			Version:     v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Headers:     observability.ParseHeaders(v.GetString("OTEL_EXPORTER_OTLP_HEADERS")),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			SampleRatio: v.GetFloat64("OTEL_TRACES_SAMPLER_ARG"),
		},
		Metrics: observability.MetricsConfig{
			Enabled:        v.GetBool("METRICS_ENABLED"),
			ScrapeInterval: v.GetDuration("METRICS_SCRAPE_INTERVAL"),
		},
	}
}

// Validate reports the first invalid key.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER: unknown driver %q (want postgres or sqlite)", c.DB.Driver)
	}
	switch c.DispatchBackend {
	case BackendQueue:
	case BackendTemporal:
		if strings.TrimSpace(c.Temporal.Address) == "" {
			return fmt.Errorf("TEMPORAL_ADDRESS: required when DISPATCH_BACKEND=temporal")
		}
	default:
		return fmt.Errorf("DISPATCH_BACKEND: unknown backend %q (want queue or temporal)", c.DispatchBackend)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR: required")
	}
	if c.Thresholds.ManualMinWords < 0 || c.Thresholds.MinWords < 0 || c.Thresholds.SignificantWordChange < 0 {
		return fmt.Errorf("RESEARCH_*_WORDS: must not be negative")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS: must be at least 1")
	}
	if c.Queue.BackoffBase <= 0 {
		return fmt.Errorf("QUEUE_BACKOFF_BASE: must be positive")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY: must be at least 1")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
