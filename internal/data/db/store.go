package db

import (
	"context"
	"fmt"
	golog "log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/utils"
)

// Store wraps the GORM handle backing C3. It supports two drivers:
// Postgres for production and SQLite for local development and tests,
// satisfying the "any durable store" contract the persistent-store
// component is specified against.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the configured driver and returns an unmigrated Store.
func New(logg *logger.Logger) (*Store, error) {
	svcLog := logg.With("component", "store")

	driver := strings.ToLower(utils.GetEnv("STORE_DRIVER", "postgres", logg))

	gormLog := gormLogger.New(
		golog.New(os.Stdout, "\r\n", golog.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dsn := utils.GetEnv("STORE_DSN", "file:batchcoord.db?cache=shared", logg)
		dialector = sqlite.Open(dsn)
	case "postgres":
		dsn := utils.GetEnv("STORE_DSN", "", logg)
		if dsn == "" {
			dsn = defaultPostgresDSN(logg)
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want postgres or sqlite)", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLog,
	})
	if err != nil {
		svcLog.Error("failed to open store", "driver", driver, "error", err)
		return nil, fmt.Errorf("open store: %w", err)
	}

	svcLog.Info("store opened", "driver", driver)
	return &Store{db: gdb, log: svcLog}, nil
}

func defaultPostgresDSN(log *logger.Logger) string {
	host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	port := utils.GetEnv("POSTGRES_PORT", "5432", log)
	user := utils.GetEnv("POSTGRES_USER", "postgres", log)
	pass := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	name := utils.GetEnv("POSTGRES_NAME", "batchcoord", log)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
}

// AutoMigrate creates or updates the four coordinator tables plus their
// required indexes (§4.2).
func (s *Store) AutoMigrate() error {
	s.log.Info("auto migrating tables")
	if err := s.db.AutoMigrate(
		&domain.Node{},
		&domain.Job{},
		&domain.FileLock{},
		&domain.TaskFolderProgress{},
	); err != nil {
		s.log.Error("auto migration failed", "error", err)
		return err
	}
	if err := s.db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_jobs_status_type ON jobs (status, type)`,
	).Error; err != nil {
		s.log.Warn("non-fatal: extra index creation failed", "error", err)
	}
	return nil
}

func (s *Store) DB() *gorm.DB { return s.db }

// Ping reports whether the store answers within a short budget, backing the
// health endpoint's storeOK field.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
