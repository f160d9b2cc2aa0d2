package dataset

import (
	"context"
	"time"

	"github.com/newthinker/stocksync/internal/calendar"
	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/ingest"
	"github.com/newthinker/stocksync/internal/mapping"
	"github.com/newthinker/stocksync/internal/model"
)

var dailyTable = mapping.New(
	mapping.Date("日期", func(r *model.DailyBar) *time.Time { return &r.TradeDate }),
	mapping.Float("开盘", func(r *model.DailyBar) **float64 { return &r.Open }),
	mapping.Strict(mapping.Float("收盘", func(r *model.DailyBar) **float64 { return &r.Close }),
		func(r *model.DailyBar) *float64 { return r.Close }),
	mapping.Float("最高", func(r *model.DailyBar) **float64 { return &r.High }),
	mapping.Float("最低", func(r *model.DailyBar) **float64 { return &r.Low }),
	mapping.Int64("成交量", func(r *model.DailyBar) **int64 { return &r.Volume }),
	mapping.Amount("成交额", func(r *model.DailyBar) **float64 { return &r.Turnover }),
	mapping.Percent("振幅", func(r *model.DailyBar) **float64 { return &r.Amplitude }),
	mapping.Percent("涨跌幅", func(r *model.DailyBar) **float64 { return &r.ChangePercent }),
	mapping.Float("涨跌额", func(r *model.DailyBar) **float64 { return &r.ChangeAmount }),
	mapping.Percent("换手率", func(r *model.DailyBar) **float64 { return &r.TurnoverRate }),
)

// Daily syncs forward-adjusted daily bars.
type Daily struct {
	ingest.Defaults
	src     collector.DailySource
	symbols SymbolLister
	cal     *calendar.Calendar
}

// NewDaily creates the daily bar job.
func NewDaily(src collector.DailySource, symbols SymbolLister, cal *calendar.Calendar) *Daily {
	return &Daily{src: src, symbols: symbols, cal: cal}
}

// DailyRange picks the sessions to sync. An initial load covers the last
// initDays sessions within lookbackDays of now. A routine run covers today
// only and reports false on non-trading days.
func DailyRange(cal *calendar.Calendar, now time.Time, init bool, initDays, lookbackDays int) (ingest.DateRange, bool) {
	if init {
		dates := cal.Recent(initDays, lookbackDays, now)
		if len(dates) == 0 {
			return ingest.DateRange{}, false
		}
		return ingest.DateRange{Start: dates[0], End: dates[len(dates)-1]}, true
	}
	if !cal.IsTradingDay(now) {
		return ingest.DateRange{}, false
	}
	today := core.Day(now)
	return ingest.DateRange{Start: today, End: today}, true
}

func (d *Daily) Name() string { return EntityDaily }

func (d *Daily) Targets(ctx context.Context) ([]string, error) {
	return d.symbols.Symbols(ctx)
}

// Plan starts the fetch at the first session in r the symbol lacks. A
// symbol holding every session is skipped.
func (d *Daily) Plan(_ context.Context, target string, r ingest.DateRange, existing ingest.KeySet) (ingest.DateRange, bool) {
	for _, day := range d.cal.Between(r.Start, r.End) {
		if _, ok := existing[model.Key(target, model.DateKey(day))]; !ok {
			return ingest.DateRange{Start: day, End: r.End}, true
		}
	}
	return r, false
}

func (d *Daily) Fetch(ctx context.Context, target string, r ingest.DateRange) (*frame.Frame, error) {
	return d.src.FetchDaily(ctx, target, r.Start, r.End)
}

func (d *Daily) Key(target string, row frame.Row) (string, error) {
	return dateKey(target, row, "日期")
}

// Decode maps a kline row. Bars are fetched forward-adjusted, so the
// adjusted close equals the close.
func (d *Daily) Decode(target string, row frame.Row) (model.DailyBar, error) {
	rec, err := dailyTable.Decode(row)
	if err != nil {
		return rec, err
	}
	rec.Symbol = target
	rec.AdjClose = rec.Close
	return rec, nil
}
