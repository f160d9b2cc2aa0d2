package dataset

import (
	"context"
	"time"

	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/collector/sina"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/ingest"
	"github.com/newthinker/stocksync/internal/mapping"
	"github.com/newthinker/stocksync/internal/model"
)

var financialTable = mapping.New(
	mapping.Date(sina.PeriodColumn, func(r *model.FinancialReport) *time.Time { return &r.ReportDate }),
	mapping.Float("每股收益", func(r *model.FinancialReport) **float64 { return &r.EPS }),
	mapping.Float("稀释每股收益", func(r *model.FinancialReport) **float64 { return &r.EPSDiluted }),
	mapping.Amount("营业总收入", func(r *model.FinancialReport) **float64 { return &r.TotalRevenue }),
	mapping.Amount("营业利润", func(r *model.FinancialReport) **float64 { return &r.OperatingProfit }),
	mapping.Amount("净利润", func(r *model.FinancialReport) **float64 { return &r.NetProfit }),
	mapping.Amount("总资产", func(r *model.FinancialReport) **float64 { return &r.TotalAssets }),
	mapping.Amount("总负债", func(r *model.FinancialReport) **float64 { return &r.TotalLiabilities }),
	mapping.Amount("股东权益", func(r *model.FinancialReport) **float64 { return &r.Equity }),
	mapping.Percent("净资产收益率", func(r *model.FinancialReport) **float64 { return &r.ROE }),
	mapping.Percent("毛利率", func(r *model.FinancialReport) **float64 { return &r.GrossMargin }),
	mapping.Amount("经营活动现金流量净额", func(r *model.FinancialReport) **float64 { return &r.OperatingCashFlow }),
	mapping.Amount("投资活动现金流量净额", func(r *model.FinancialReport) **float64 { return &r.InvestingCashFlow }),
	mapping.Amount("筹资活动现金流量净额", func(r *model.FinancialReport) **float64 { return &r.FinancingCashFlow }),
)

// Financial syncs financial abstracts for recent report periods.
type Financial struct {
	ingest.Defaults
	src     collector.FinancialSource
	symbols SymbolLister
	years   int
	now     func() time.Time
}

// NewFinancial keeps reports dated no earlier than years calendar years
// before the current one.
func NewFinancial(src collector.FinancialSource, symbols SymbolLister, years int) *Financial {
	return &Financial{src: src, symbols: symbols, years: years, now: time.Now}
}

// SetClock replaces the clock that anchors the year window.
func (j *Financial) SetClock(now func() time.Time) {
	j.now = now
}

func (j *Financial) Name() string { return EntityFinancial }

func (j *Financial) Targets(ctx context.Context) ([]string, error) {
	return j.symbols.Symbols(ctx)
}

func (j *Financial) Fetch(ctx context.Context, target string, _ ingest.DateRange) (*frame.Frame, error) {
	return j.src.FetchFinancialAbstract(ctx, target)
}

func (j *Financial) Select(f *frame.Frame) *frame.Frame {
	minYear := j.now().In(core.Shanghai).Year() - j.years
	return f.Filter(func(r frame.Row) bool {
		d, err := core.ParseDay(r[sina.PeriodColumn])
		return err == nil && d.Year() >= minYear
	})
}

func (j *Financial) Key(target string, row frame.Row) (string, error) {
	d, err := core.ParseDay(row[sina.PeriodColumn])
	if err != nil {
		return "", err
	}
	return model.Key(target, model.DateKey(d), core.ReportType(d)), nil
}

func (j *Financial) Decode(target string, row frame.Row) (model.FinancialReport, error) {
	rec, err := financialTable.Decode(row)
	if err != nil {
		return rec, err
	}
	rec.Symbol = target
	rec.ReportType = core.ReportType(rec.ReportDate)
	return rec, nil
}
