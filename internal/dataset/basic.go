package dataset

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/cache"
	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/collector/eastmoney"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/ingest"
	"github.com/newthinker/stocksync/internal/mapping"
	"github.com/newthinker/stocksync/internal/model"
)

// Listing status values.
const (
	StatusListed  = "上市"
	StatusUnknown = "未知"
)

var basicTable = mapping.New(
	mapping.Symbol("股票代码", func(r *model.BasicInfo) *string { return &r.Symbol }),
	mapping.Required(mapping.String("股票简称", func(r *model.BasicInfo) *string { return &r.Name })),
	mapping.String("行业", func(r *model.BasicInfo) *string { return &r.Industry }),
	mapping.OptionalDate("上市时间", func(r *model.BasicInfo) **time.Time { return &r.ListingDate }),
	mapping.Float("流通股", func(r *model.BasicInfo) **float64 { return &r.OutstandingShares }),
	mapping.Float("总股本", func(r *model.BasicInfo) **float64 { return &r.TotalShares }),
)

// Basic refreshes basic info for every listed symbol. The listing is read
// through the reference cache. Rows are always rewritten.
type Basic struct {
	ingest.Defaults
	listing  collector.ListingSource
	profiles collector.ProfileSource
	cache    *cache.Cache
	ttl      time.Duration
	logger   *zap.Logger

	names map[string]string
}

// NewBasic creates the basic info job.
func NewBasic(listing collector.ListingSource, profiles collector.ProfileSource, c *cache.Cache, ttl time.Duration, logger *zap.Logger) *Basic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Basic{
		listing:  listing,
		profiles: profiles,
		cache:    c,
		ttl:      ttl,
		logger:   logger,
	}
}

// LoadListing returns the cached A-share listing, refetching it once the
// reference TTL has passed.
func LoadListing(ctx context.Context, c *cache.Cache, src collector.ListingSource, ttl time.Duration) (*frame.Frame, error) {
	return c.GetOrFetch(ctx, cache.RefKey("listing", "a_share"), ttl, src.FetchListing)
}

func (j *Basic) Name() string { return EntityBasic }

func (j *Basic) Refresh() bool { return true }

// Targets lists the normalized codes of the current listing.
func (j *Basic) Targets(ctx context.Context) ([]string, error) {
	f, err := LoadListing(ctx, j.cache, j.listing, j.ttl)
	if err != nil {
		return nil, err
	}
	if f.Empty() {
		return nil, core.Errorf(core.ErrNoData, "listing from %s is empty", j.listing.Name())
	}

	j.names = make(map[string]string, f.Len())
	targets := make([]string, 0, f.Len())
	for _, row := range f.Records() {
		symbol, err := core.NormalizeSymbol(row["代码"])
		if err != nil {
			j.logger.Debug("skipping listing row", zap.String("code", row["代码"]), zap.Error(err))
			continue
		}
		if _, dup := j.names[symbol]; dup {
			continue
		}
		j.names[symbol] = row["名称"]
		targets = append(targets, symbol)
	}
	return targets, nil
}

// Fetch returns the profile row, filling code and name from the listing
// when the profile lacks them.
func (j *Basic) Fetch(ctx context.Context, target string, _ ingest.DateRange) (*frame.Frame, error) {
	f, err := j.profiles.FetchProfile(ctx, target)
	if err != nil {
		return nil, err
	}
	if f.Empty() {
		f = frame.New(eastmoney.ProfileColumns...)
		f.AppendRow(frame.Row{})
	}
	out := frame.New(f.Columns...)
	for _, row := range f.Records() {
		if row["股票代码"] == "" {
			row["股票代码"] = target
		}
		if row["股票简称"] == "" {
			row["股票简称"] = j.names[target]
		}
		out.AppendRow(row)
	}
	return out, nil
}

func (j *Basic) Key(target string, _ frame.Row) (string, error) {
	return target, nil
}

// Decode maps a profile row and derives market and status.
func (j *Basic) Decode(target string, row frame.Row) (model.BasicInfo, error) {
	rec, err := basicTable.Decode(row)
	if err != nil {
		return rec, err
	}
	rec.Symbol = target
	rec.Market = string(core.BoardOf(target))
	rec.Status = StatusUnknown
	if rec.ListingDate != nil {
		rec.Status = StatusListed
	}
	return rec, nil
}
