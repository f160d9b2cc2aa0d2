// Package store is the relational sink. It opens one gorm handle per
// process, migrates the fact tables and upserts records on their natural key.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/model"
)

// Options configures the database handle.
type Options struct {
	Driver        string // "postgres", "mysql" or "sqlite"
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	LogLevel      string
	SlowThreshold time.Duration
}

// Store owns the database handle.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the configured database. Unknown drivers and an empty
// DSN are configuration errors.
func Open(opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DSN == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "database dsn is empty")
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres":
		dialector = postgres.Open(opts.DSN)
	case "mysql":
		dialector = mysql.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(logger, opts.LogLevel, opts.SlowThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("open %s: %w", opts.Driver, err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("database opened", zap.String("driver", opts.Driver))
	return &Store{db: db, logger: logger}, nil
}

// DB exposes the gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or upgrades every table and its natural key index.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("migrate: %w", err))
	}
	return nil
}

// Symbols lists every known symbol from stock_basic_info in code order.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&model.BasicInfo{}).
		Order("symbol").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, err)
	}
	return symbols, nil
}
