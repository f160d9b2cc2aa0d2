package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/app"
	"github.com/newthinker/stocksync/internal/config"
	"github.com/newthinker/stocksync/internal/logger"
)

// loadConfig reads --config, or the defaults plus environment when no file
// is given, and validates the result.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		if err := config.LoadEnv(); err != nil {
			return nil, err
		}
		cfg = config.Defaults()
		if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
			cfg.Database.DSN = dsn
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setup builds the logger and the app. The returned context is canceled on
// SIGINT or SIGTERM; cleanup closes everything.
func setup() (context.Context, *app.App, *zap.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.New(logger.Options{
		Development: debug,
		Level:       level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		MaxBackups:  cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, nil, nil, err
	}
	a.RegisterDefaultSources()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cleanup := func() {
		stop()
		if err := a.Close(); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
		log.Sync()
	}
	return ctx, a, log, cleanup, nil
}
