package dataset

import (
	"context"
	"sort"
	"time"

	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/ingest"
	"github.com/newthinker/stocksync/internal/mapping"
	"github.com/newthinker/stocksync/internal/model"
)

var fundFlowTable = mapping.New(
	mapping.Date("日期", func(r *model.FundFlow) *time.Time { return &r.TradeDate }),
	mapping.Amount("主力净流入-净额", func(r *model.FundFlow) **float64 { return &r.MainNet }),
	mapping.Amount("小单净流入-净额", func(r *model.FundFlow) **float64 { return &r.RetailNet }),
	mapping.Percent("大单净流入-净占比", func(r *model.FundFlow) **float64 { return &r.LargeOrderRatio }),
	mapping.Percent("中单净流入-净占比", func(r *model.FundFlow) **float64 { return &r.MediumOrderRatio }),
	mapping.Percent("小单净流入-净占比", func(r *model.FundFlow) **float64 { return &r.SmallOrderRatio }),
)

// FundFlow syncs the recent per-symbol money flow.
type FundFlow struct {
	ingest.Defaults
	src        collector.FundFlowSource
	symbols    SymbolLister
	days       int
	windowDays int
}

// NewFundFlow keeps the last days sessions within windowDays of the latest
// row the provider returns.
func NewFundFlow(src collector.FundFlowSource, symbols SymbolLister, days, windowDays int) *FundFlow {
	return &FundFlow{src: src, symbols: symbols, days: days, windowDays: windowDays}
}

func (j *FundFlow) Name() string { return EntityFundFlow }

func (j *FundFlow) Targets(ctx context.Context) ([]string, error) {
	return j.symbols.Symbols(ctx)
}

func (j *FundFlow) Fetch(ctx context.Context, target string, _ ingest.DateRange) (*frame.Frame, error) {
	return j.src.FetchFundFlow(ctx, target)
}

// Select keeps rows of the last days distinct dates no older than
// windowDays before the newest date.
func (j *FundFlow) Select(f *frame.Frame) *frame.Frame {
	dates := rowDates(f, "日期")
	var latest time.Time
	for _, d := range dates {
		if d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return frame.New(f.Columns...)
	}
	floor := latest.AddDate(0, 0, -j.windowDays)

	distinct := map[time.Time]bool{}
	for _, d := range dates {
		if !d.IsZero() && !d.Before(floor) {
			distinct[d] = true
		}
	}
	recent := make([]time.Time, 0, len(distinct))
	for d := range distinct {
		recent = append(recent, d)
	}
	sort.Slice(recent, func(a, b int) bool { return recent[a].Before(recent[b]) })
	if len(recent) > j.days {
		recent = recent[len(recent)-j.days:]
	}
	keep := map[time.Time]bool{}
	for _, d := range recent {
		keep[d] = true
	}

	out := frame.New(f.Columns...)
	for i, d := range dates {
		if keep[d] {
			out.Rows = append(out.Rows, f.Rows[i])
		}
	}
	return out
}

func (j *FundFlow) Key(target string, row frame.Row) (string, error) {
	return dateKey(target, row, "日期")
}

func (j *FundFlow) Decode(target string, row frame.Row) (model.FundFlow, error) {
	rec, err := fundFlowTable.Decode(row)
	rec.Symbol = target
	return rec, err
}
