// Package calendar answers trading-day questions from the exchange
// calendar, loaded through the reference cache.
package calendar

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/cache"
	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/model"
)

// Column holds the session date in fetched calendar frames.
const Column = "trade_date"

// Calendar is a sorted set of session dates at UTC midnight.
type Calendar struct {
	dates []time.Time
	index map[string]int
}

// New builds a calendar from dates in any order. Duplicates are dropped.
func New(dates []time.Time) *Calendar {
	c := &Calendar{index: make(map[string]int, len(dates))}
	for _, d := range dates {
		d = core.Day(d)
		if _, ok := c.index[model.DateKey(d)]; ok {
			continue
		}
		c.index[model.DateKey(d)] = 0
		c.dates = append(c.dates, d)
	}
	sort.Slice(c.dates, func(i, j int) bool { return c.dates[i].Before(c.dates[j]) })
	for i, d := range c.dates {
		c.index[model.DateKey(d)] = i
	}
	return c
}

// Load reads the calendar from the cache, fetching it from src when the
// cached copy is missing or older than ttl.
func Load(ctx context.Context, c *cache.Cache, src collector.CalendarSource, ttl time.Duration, logger *zap.Logger) (*Calendar, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := c.GetOrFetch(ctx, cache.RefKey("calendar", "trade_dates"), ttl, src.FetchTradeDates)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, f.Len())
	for _, s := range f.Column(Column) {
		d, err := core.ParseDay(s)
		if err != nil {
			logger.Warn("skipping calendar entry", zap.String("value", s), zap.Error(err))
			continue
		}
		dates = append(dates, d)
	}
	if len(dates) == 0 {
		return nil, core.Errorf(core.ErrNoData, "trade calendar from %s is empty", src.Name())
	}
	return New(dates), nil
}

// Len returns the number of sessions.
func (c *Calendar) Len() int {
	return len(c.dates)
}

// IsTradingDay reports whether t's Shanghai date is a session.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	_, ok := c.index[model.DateKey(core.Day(t))]
	return ok
}

// Between returns the sessions from start through end, both inclusive.
func (c *Calendar) Between(start, end time.Time) []time.Time {
	start, end = core.Day(start), core.Day(end)
	lo := sort.Search(len(c.dates), func(i int) bool { return !c.dates[i].Before(start) })
	hi := sort.Search(len(c.dates), func(i int) bool { return c.dates[i].After(end) })
	if lo >= hi {
		return nil
	}
	return append([]time.Time(nil), c.dates[lo:hi]...)
}

// LastN returns up to n sessions on or before asOf, oldest first.
func (c *Calendar) LastN(n int, asOf time.Time) []time.Time {
	asOf = core.Day(asOf)
	hi := sort.Search(len(c.dates), func(i int) bool { return c.dates[i].After(asOf) })
	lo := hi - n
	if lo < 0 {
		lo = 0
	}
	if n <= 0 || lo >= hi {
		return nil
	}
	return append([]time.Time(nil), c.dates[lo:hi]...)
}

// Recent returns the last n sessions inside the lookback calendar days
// ending at asOf.
func (c *Calendar) Recent(n, lookbackDays int, asOf time.Time) []time.Time {
	window := c.Between(core.Day(asOf).AddDate(0, 0, -lookbackDays), asOf)
	if len(window) > n {
		window = window[len(window)-n:]
	}
	return window
}

// Latest returns the last session on or before asOf.
func (c *Calendar) Latest(asOf time.Time) (time.Time, bool) {
	last := c.LastN(1, asOf)
	if len(last) == 0 {
		return time.Time{}, false
	}
	return last[0], true
}
