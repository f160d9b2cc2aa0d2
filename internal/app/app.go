// Package app wires configuration, storage and providers into the sync,
// screen and schedule commands.
package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/cache"
	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/collector/eastmoney"
	"github.com/newthinker/stocksync/internal/collector/sina"
	"github.com/newthinker/stocksync/internal/collector/ths"
	"github.com/newthinker/stocksync/internal/config"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/ingest"
	applog "github.com/newthinker/stocksync/internal/logger"
	"github.com/newthinker/stocksync/internal/metrics"
	"github.com/newthinker/stocksync/internal/storage/archive"
	"github.com/newthinker/stocksync/internal/store"
)

// App is the main application orchestrator
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	archive archive.Storage
	cache   *cache.Cache
	metrics *metrics.Registry
	sources *collector.Registry
	engine  *ingest.Engine
	pacer   *ingest.Pacer
	now     func() time.Time
}

// New opens the database and the cache backend described by cfg. No
// providers are registered; see RegisterDefaultSources.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = applog.OrNop(logger)

	st, err := store.Open(store.Options{
		Driver:        cfg.Database.Driver,
		DSN:           cfg.Database.DSN,
		MaxOpenConns:  cfg.Database.MaxOpenConns,
		MaxIdleConns:  cfg.Database.MaxIdleConns,
		LogLevel:      cfg.Database.LogLevel,
		SlowThreshold: cfg.Database.SlowThreshold,
	}, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	arch, err := archive.New(archive.Options{
		Type: cfg.Cache.Type,
		Path: cfg.Cache.Path,
		S3: archive.S3Config{
			Bucket:    cfg.Cache.S3.Bucket,
			Endpoint:  cfg.Cache.S3.Endpoint,
			Region:    cfg.Cache.S3.Region,
			AccessKey: cfg.Cache.S3.AccessKey,
			SecretKey: cfg.Cache.S3.SecretKey,
			Prefix:    cfg.Cache.S3.Prefix,
		},
	})
	if err != nil {
		st.Close()
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}

	reg := metrics.NewRegistry()
	c := cache.New(arch, logger.Named("cache"))
	c.SetMetrics(reg)

	pacer := ingest.NewPacer(cfg.Provider.Delay, cfg.Provider.Jitter)
	engine := ingest.NewEngine(logger.Named("ingest"))
	engine.SetMetrics(reg)
	engine.SetPacer(pacer)

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		archive: arch,
		cache:   c,
		metrics: reg,
		sources: collector.NewRegistry(),
		engine:  engine,
		pacer:   pacer,
		now:     time.Now,
	}, nil
}

// RegisterSource adds a provider. The first registered provider of each
// capability wins.
func (a *App) RegisterSource(s collector.Source) {
	a.sources.Register(s)
}

// RegisterDefaultSources registers eastmoney, sina and 10jqka clients built
// from the provider section.
func (a *App) RegisterDefaultSources() {
	p := a.cfg.Provider
	client := func(name string) *collector.Client {
		return collector.NewClient(collector.ClientOptions{
			Name:      name,
			Timeout:   p.Timeout,
			UserAgent: p.UserAgent,
			Breaker: collector.BreakerOptions{
				Enabled:     p.Breaker.Enabled,
				MaxFailures: p.Breaker.MaxFailures,
				Timeout:     p.Breaker.Timeout,
			},
		}, a.logger)
	}

	a.RegisterSource(eastmoney.New(client("eastmoney"), a.logger))
	a.RegisterSource(sina.New(client("sina"), a.logger))
	a.RegisterSource(ths.New(client("ths"), ths.Options{
		HexinV:    p.THS.HexinV,
		MaxPages:  p.THS.MaxPages,
		PageDelay: p.Delay,
	}, a.logger))
}

// Sources lists registered provider names.
func (a *App) Sources() []string {
	return a.sources.Names()
}

// SetClock replaces the clock used for sync windows, cache keys and reports.
func (a *App) SetClock(now func() time.Time) {
	a.now = now
	a.cache.SetClock(now)
	a.engine.SetClock(now)
}

// SetPacer replaces the wait applied after provider calls.
func (a *App) SetPacer(p *ingest.Pacer) {
	a.pacer = p
	a.engine.SetPacer(p)
}

// Metrics returns the metrics registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Store returns the database handle.
func (a *App) Store() *store.Store {
	return a.store
}

// Migrate creates or upgrades the tables.
func (a *App) Migrate(ctx context.Context) error {
	return a.store.Migrate(ctx)
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.store.Close()
}

// source finds the first registered provider implementing S.
func source[S collector.Source](a *App, capability string) (S, error) {
	s, ok := collector.Find[S](a.sources)
	if !ok {
		var zero S
		return zero, core.Errorf(core.ErrConfigMissing, "no %s source registered", capability)
	}
	return s, nil
}

// isCanceled reports whether err comes from ctx being done.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
