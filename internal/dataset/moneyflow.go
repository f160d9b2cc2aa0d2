package dataset

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/newthinker/stocksync/internal/cache"
	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/ingest"
	"github.com/newthinker/stocksync/internal/mapping"
	"github.com/newthinker/stocksync/internal/model"
	"github.com/newthinker/stocksync/internal/store"
)

var rankTable = mapping.New(
	mapping.Int64("序号", func(r *model.MoneyFlowRank) **int64 { return &r.SerialNumber }),
	mapping.Symbol("股票代码", func(r *model.MoneyFlowRank) *string { return &r.Symbol }),
	mapping.String("股票简称", func(r *model.MoneyFlowRank) *string { return &r.Name }),
	mapping.Float("最新价", func(r *model.MoneyFlowRank) **float64 { return &r.LatestPrice }),
	mapping.Percent("涨跌幅", func(r *model.MoneyFlowRank) **float64 { return &r.ChangePercent }),
	mapping.Percent("换手率", func(r *model.MoneyFlowRank) **float64 { return &r.TurnoverRate }),
	mapping.Amount("流入资金", func(r *model.MoneyFlowRank) **float64 { return &r.InflowAmount }),
	mapping.Amount("流出资金", func(r *model.MoneyFlowRank) **float64 { return &r.OutflowAmount }),
	mapping.Amount("净额", func(r *model.MoneyFlowRank) **float64 { return &r.NetAmount }),
	mapping.Amount("成交额", func(r *model.MoneyFlowRank) **float64 { return &r.Turnover }),
)

// MoneyFlow syncs ranking snapshots, one target per time span. Snapshots
// are stamped with the run's trade date and cached for the intraday TTL.
type MoneyFlow struct {
	ingest.Defaults
	src       collector.RankSource
	cache     *cache.Cache
	ttl       time.Duration
	spans     []core.TimeSpan
	tradeDate time.Time
}

// NewMoneyFlow creates the ranking job for spans as of tradeDate.
func NewMoneyFlow(src collector.RankSource, c *cache.Cache, ttl time.Duration, spans []core.TimeSpan, tradeDate time.Time) *MoneyFlow {
	return &MoneyFlow{
		src:       src,
		cache:     c,
		ttl:       ttl,
		spans:     spans,
		tradeDate: core.Day(tradeDate),
	}
}

// RankScope limits key enumeration to one span on tradeDate.
func RankScope(tradeDate time.Time) store.Scope {
	day := core.Day(tradeDate)
	return func(tx *gorm.DB, target string) *gorm.DB {
		span, _ := strconv.Atoi(target)
		return tx.Where("time_span = ? AND trade_date = ?", span, day)
	}
}

func (j *MoneyFlow) Name() string { return EntityMoneyFlow }

func (j *MoneyFlow) Targets(context.Context) ([]string, error) {
	out := make([]string, 0, len(j.spans))
	for _, s := range j.spans {
		out = append(out, model.SpanKey(int(s)))
	}
	return out, nil
}

func (j *MoneyFlow) span(target string) (core.TimeSpan, error) {
	n, err := strconv.Atoi(target)
	if err != nil {
		return 0, core.Errorf(core.ErrConfigInvalid, "time span %q", target)
	}
	return core.ParseTimeSpan(n)
}

// Fetch serves the ranking from the cache file <label>_<yyyymmdd>.csv,
// calling the provider when it is missing or stale.
func (j *MoneyFlow) Fetch(ctx context.Context, target string, _ ingest.DateRange) (*frame.Frame, error) {
	span, err := j.span(target)
	if err != nil {
		return nil, err
	}
	key := cache.Key(EntityMoneyFlow, span.Label(), j.tradeDate)
	return j.cache.GetOrFetch(ctx, key, j.ttl, func(ctx context.Context) (*frame.Frame, error) {
		return j.src.FetchRank(ctx, span)
	})
}

func (j *MoneyFlow) Key(target string, row frame.Row) (string, error) {
	symbol, err := core.NormalizeSymbol(row["股票代码"])
	if err != nil {
		return "", err
	}
	return model.Key(symbol, model.DateKey(j.tradeDate), target), nil
}

func (j *MoneyFlow) Decode(target string, row frame.Row) (model.MoneyFlowRank, error) {
	rec, err := rankTable.Decode(row)
	if err != nil {
		return rec, err
	}
	span, err := j.span(target)
	if err != nil {
		return rec, fmt.Errorf("decode rank: %w", err)
	}
	rec.TimeSpan = int(span)
	rec.TradeDate = j.tradeDate
	return rec, nil
}
