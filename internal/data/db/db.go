package db

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// SQLitePath is a file path or ":memory:".
	SQLitePath    string
	SlowThreshold time.Duration
	MaxOpenConns  int
}

func (c Config) PostgresDSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

func (c Config) sqliteDSN() string {
	path := strings.TrimSpace(c.SQLitePath)
	if path == "" || path == ":memory:" {
		return "file:ideaforge?mode=memory&cache=shared&_busy_timeout=5000"
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	driver string
}

// NewService opens the configured database. Timestamps gorm fills in are UTC.
func NewService(logg *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := logg.With("service", "DatabaseService")

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	gormLog := gormLogger.New(
		logg,
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormCfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var dialector gorm.Dialector
	switch driver {
	case "", DriverPostgres:
		driver = DriverPostgres
		dialector = postgres.Open(cfg.PostgresDSN())
	case DriverSQLite:
		dialector = sqlite.Open(cfg.sqliteDSN())
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	switch {
	case driver == DriverSQLite:
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if driver == DriverPostgres {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
		}
	}
	serviceLog.Info("database connected", "driver", driver)
	return &Service{db: db, log: serviceLog, driver: driver}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
