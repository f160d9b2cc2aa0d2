package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

// Schedule runs the configured jobs on the cron spec until ctx is done.
// A trigger that fires while the previous run is still going is skipped.
// When metrics are enabled the registry is served on metrics.addr.
func (a *App) Schedule(ctx context.Context) error {
	sc := a.cfg.Schedule
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.Local),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{a.logger})),
	)
	run := func() {
		started := a.now()
		a.logger.Info("scheduled run started", zap.Strings("jobs", sc.Jobs))
		if err := a.RunJobs(ctx, sc.Jobs, false); err != nil {
			a.logger.Error("scheduled run failed", zap.Error(err))
			return
		}
		a.logger.Info("scheduled run finished", zap.Duration("duration", a.now().Sub(started)))
	}
	id, err := c.AddFunc(sc.Cron, run)
	if err != nil {
		return fmt.Errorf("adding schedule %q: %w", sc.Cron, err)
	}

	var srv *http.Server
	if a.cfg.Metrics.Enabled {
		srv = a.metricsServer()
		go func() {
			a.logger.Info("metrics server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	c.Start()
	a.logger.Info("scheduler started",
		zap.String("cron", sc.Cron),
		zap.Time("next", c.Entry(id).Next))
	if sc.RunImmediately {
		c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()
	a.logger.Info("scheduler stopping")

	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(shutdownTimeout):
		a.logger.Warn("scheduled run did not stop in time")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	}
	return nil
}

// MetricsHandler serves the registry with request metrics and access logs.
func (a *App) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.store.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	var h http.Handler = mux
	h = metrics.HTTPMiddleware(a.metrics, a.cfg.Metrics.Path, "/healthz")(h)
	h = metrics.LoggingMiddleware(a.logger.Named("http"))(h)
	return h
}

func (a *App) metricsServer() *http.Server {
	return &http.Server{
		Addr:         a.cfg.Metrics.Addr,
		Handler:      a.MetricsHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
