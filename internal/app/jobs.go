package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/calendar"
	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/config"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/dataset"
	"github.com/newthinker/stocksync/internal/ingest"
	"github.com/newthinker/stocksync/internal/model"
	"github.com/newthinker/stocksync/internal/screener"
	"github.com/newthinker/stocksync/internal/store"
)

// SyncBasic refreshes basic info from the listing and company profiles.
func (a *App) SyncBasic(ctx context.Context) (*ingest.Report, error) {
	listing, err := source[collector.ListingSource](a, "listing")
	if err != nil {
		return nil, err
	}
	profiles, err := source[collector.ProfileSource](a, "profile")
	if err != nil {
		return nil, err
	}
	job := dataset.NewBasic(listing, profiles, a.cache, a.cfg.Cache.TTL.Reference, a.logger)
	return ingest.Sync[model.BasicInfo](ctx, a.engine, job,
		store.NewTable[model.BasicInfo](a.store, store.BySymbol), ingest.DateRange{})
}

// SyncDaily imports daily bars. init covers the last sync.init_days
// sessions; otherwise only today is synced, and nothing happens on a
// non-trading day.
func (a *App) SyncDaily(ctx context.Context, init bool) (*ingest.Report, error) {
	src, err := source[collector.DailySource](a, "daily")
	if err != nil {
		return nil, err
	}
	cal, err := a.calendar(ctx)
	if err != nil {
		return nil, err
	}
	r, ok := dataset.DailyRange(cal, a.now(), init, a.cfg.Sync.InitDays, a.cfg.Sync.CalendarLookback)
	if !ok {
		a.logger.Info("not a trading day, daily sync skipped",
			zap.Time("now", a.now()),
			zap.Bool("init", init))
		return nil, nil
	}
	job := dataset.NewDaily(src, a.store, cal)
	return ingest.Sync[model.DailyBar](ctx, a.engine, job,
		store.NewTable[model.DailyBar](a.store, store.BySymbol), r)
}

// SyncFundFlow imports the latest per-symbol money flow history.
func (a *App) SyncFundFlow(ctx context.Context) (*ingest.Report, error) {
	src, err := source[collector.FundFlowSource](a, "fund flow")
	if err != nil {
		return nil, err
	}
	job := dataset.NewFundFlow(src, a.store, a.cfg.Sync.FundFlowDays, a.cfg.Sync.FundFlowWindowDays)
	return ingest.Sync[model.FundFlow](ctx, a.engine, job,
		store.NewTable[model.FundFlow](a.store, store.BySymbol), ingest.DateRange{})
}

// SyncMoneyFlow imports ranking snapshots for spans, or the configured
// spans when none are given. Snapshots are dated with the latest session.
func (a *App) SyncMoneyFlow(ctx context.Context, spans []core.TimeSpan) (*ingest.Report, error) {
	src, err := source[collector.RankSource](a, "ranking")
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		spans, err = ParseSpans(a.cfg.Sync.TimeSpans)
		if err != nil {
			return nil, err
		}
	}

	tradeDate := core.Day(a.now())
	if cal, err := a.calendar(ctx); err != nil {
		a.logger.Warn("trade calendar unavailable, dating snapshot today", zap.Error(err))
	} else if latest, ok := cal.Latest(a.now()); ok {
		tradeDate = latest
	}

	job := dataset.NewMoneyFlow(src, a.cache, a.cfg.Cache.TTL.Intraday, spans, tradeDate)
	return ingest.Sync[model.MoneyFlowRank](ctx, a.engine, job,
		store.NewTable[model.MoneyFlowRank](a.store, dataset.RankScope(tradeDate)), ingest.DateRange{})
}

// SyncFinancial imports report abstracts from the last sync.financial_years
// calendar years.
func (a *App) SyncFinancial(ctx context.Context) (*ingest.Report, error) {
	src, err := source[collector.FinancialSource](a, "financial")
	if err != nil {
		return nil, err
	}
	job := dataset.NewFinancial(src, a.store, a.cfg.Sync.FinancialYears)
	job.SetClock(a.now)
	return ingest.Sync[model.FinancialReport](ctx, a.engine, job,
		store.NewTable[model.FinancialReport](a.store, store.BySymbol), ingest.DateRange{})
}

// Screen runs the consecutive-rise screener on board, or the configured
// board when empty.
func (a *App) Screen(ctx context.Context, board string) (*screener.Result, error) {
	listing, err := source[collector.ListingSource](a, "listing")
	if err != nil {
		return nil, err
	}
	daily, err := source[collector.DailySource](a, "daily")
	if err != nil {
		return nil, err
	}
	if board == "" {
		board = a.cfg.Screener.BoardPrefix
	}

	s := screener.New(listing, daily, a.cache, a.archive, a.logger)
	s.SetPacer(a.pacer)
	s.SetMetrics(a.metrics)
	return s.Run(ctx, screener.Options{
		BoardPrefix:  board,
		LookbackDays: a.cfg.Screener.LookbackDays,
		MinRows:      a.cfg.Screener.MinRows,
		Window:       a.cfg.Screener.Window,
		TTL:          a.cfg.Cache.TTL.Reference,
	})
}

// RunJob runs one named job. Sync reports are logged.
func (a *App) RunJob(ctx context.Context, name string, init bool) error {
	var (
		rep *ingest.Report
		err error
	)
	switch name {
	case config.JobBasic:
		rep, err = a.SyncBasic(ctx)
	case config.JobDaily:
		rep, err = a.SyncDaily(ctx, init)
	case config.JobFundFlow:
		rep, err = a.SyncFundFlow(ctx)
	case config.JobMoneyFlow:
		rep, err = a.SyncMoneyFlow(ctx, nil)
	case config.JobFinancial:
		rep, err = a.SyncFinancial(ctx)
	case config.JobScreen:
		_, err = a.Screen(ctx, "")
	default:
		return core.Errorf(core.ErrConfigInvalid, "unknown job %q", name)
	}
	if rep != nil {
		a.logger.Info("job finished", zap.String("job", name), zap.Object("report", rep))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// RunJobs runs jobs in order. A failed job is logged and the next one
// still runs; cancellation stops the sequence.
func (a *App) RunJobs(ctx context.Context, jobs []string, init bool) error {
	var failed []string
	for _, name := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.RunJob(ctx, name, init); err != nil {
			if isCanceled(err) {
				return err
			}
			a.logger.Error("job failed", zap.String("job", name), zap.Error(err))
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("jobs failed: %v", failed)
	}
	return nil
}

// SyncAll runs basic, daily, fundflow, moneyflow and financial in order.
func (a *App) SyncAll(ctx context.Context, init bool) error {
	return a.RunJobs(ctx, []string{
		config.JobBasic,
		config.JobDaily,
		config.JobFundFlow,
		config.JobMoneyFlow,
		config.JobFinancial,
	}, init)
}

// ParseSpans converts configured span values.
func ParseSpans(values []int) ([]core.TimeSpan, error) {
	spans := make([]core.TimeSpan, 0, len(values))
	for _, v := range values {
		s, err := core.ParseTimeSpan(v)
		if err != nil {
			return nil, err
		}
		spans = append(spans, s)
	}
	return spans, nil
}

func (a *App) calendar(ctx context.Context) (*calendar.Calendar, error) {
	src, err := source[collector.CalendarSource](a, "calendar")
	if err != nil {
		return nil, err
	}
	return calendar.Load(ctx, a.cache, src, a.cfg.Cache.TTL.Reference, a.logger)
}
