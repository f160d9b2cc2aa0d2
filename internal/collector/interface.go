// Package collector defines the upstream data sources and the shared HTTP
// client they fetch through. Every source returns a frame.Frame keyed by the
// provider's own column names.
package collector

import (
	"context"
	"time"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
)

// Source is implemented by every provider.
type Source interface {
	Name() string
}

// DailySource returns forward-adjusted daily bars for one symbol.
type DailySource interface {
	Source
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) (*frame.Frame, error)
}

// FundFlowSource returns the per-symbol daily money-flow history.
type FundFlowSource interface {
	Source
	FetchFundFlow(ctx context.Context, symbol string) (*frame.Frame, error)
}

// ProfileSource returns a one-row company profile.
type ProfileSource interface {
	Source
	FetchProfile(ctx context.Context, symbol string) (*frame.Frame, error)
}

// ListingSource returns every listed A-share as 代码, 名称.
type ListingSource interface {
	Source
	FetchListing(ctx context.Context) (*frame.Frame, error)
}

// CalendarSource returns the exchange trading dates, oldest first.
type CalendarSource interface {
	Source
	FetchTradeDates(ctx context.Context) (*frame.Frame, error)
}

// FinancialSource returns financial abstracts, one row per report period.
type FinancialSource interface {
	Source
	FetchFinancialAbstract(ctx context.Context, symbol string) (*frame.Frame, error)
}

// RankSource returns the market-wide money-flow ranking for a time span.
type RankSource interface {
	Source
	FetchRank(ctx context.Context, span core.TimeSpan) (*frame.Frame, error)
}
