package testutil

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/ideaforge-backend/internal/domain"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	dbSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a freshly migrated database private to the test. It is an
// in-memory sqlite database unless TEST_POSTGRES_DSN is set, in which case
// the shared postgres instance is used and callers should scope writes with Tx.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		dialector = postgres.Open(dsn)
	} else {
		name := fmt.Sprintf("file:ideaforge_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
		dialector = sqlite.Open(name)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	if db.Dialector.Name() == "sqlite" {
		// one connection keeps the in-memory database alive and serializes writers
		sqlDB.SetMaxOpenConns(1)
	}
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(domain.Models()...); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
