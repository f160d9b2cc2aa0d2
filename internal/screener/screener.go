// Package screener flags board symbols whose recent closes rise on every
// session of a short window.
package screener

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/cache"
	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/dataset"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/indicator"
	"github.com/newthinker/stocksync/internal/ingest"
	applog "github.com/newthinker/stocksync/internal/logger"
	"github.com/newthinker/stocksync/internal/storage/archive"
	"github.com/newthinker/stocksync/internal/unit"
)

// Output columns.
const (
	ColumnCode = "代码"
	ColumnName = "名称"
)

// Recorder receives the flagged count. *metrics.Registry satisfies it.
type Recorder interface {
	SetScreenFlagged(n int)
}

// Options configures a screen run.
type Options struct {
	BoardPrefix  string
	LookbackDays int
	MinRows      int
	Window       int
	TTL          time.Duration
}

// Hit is one flagged symbol.
type Hit struct {
	Symbol string
	Name   string
}

// Result summarizes a screen run.
type Result struct {
	Board        string
	Candidates   int
	Insufficient int
	Failed       int
	Hits         []Hit
	Path         string
}

// Screener runs the consecutive-rise screen over a board.
type Screener struct {
	listing collector.ListingSource
	daily   collector.DailySource
	cache   *cache.Cache
	out     archive.Storage
	pacer   *ingest.Pacer
	metrics Recorder
	logger  *zap.Logger
}

// New creates a screener. Results are written to out.
func New(listing collector.ListingSource, daily collector.DailySource, c *cache.Cache, out archive.Storage, logger *zap.Logger) *Screener {
	logger = applog.OrNop(logger)
	return &Screener{
		listing: listing,
		daily:   daily,
		cache:   c,
		out:     out,
		logger:  logger.Named("screener"),
	}
}

// SetPacer spaces history requests.
func (s *Screener) SetPacer(p *ingest.Pacer) {
	s.pacer = p
}

// SetMetrics attaches a recorder.
func (s *Screener) SetMetrics(m Recorder) {
	s.metrics = m
}

// OutputKey is the archive path of the result for board on day.
func OutputKey(board string, day time.Time) string {
	return fmt.Sprintf("screen/up_stocks_%s_%s.csv", board, day.In(core.Shanghai).Format(core.CompactLayout))
}

// Run screens every listed symbol starting with opts.BoardPrefix and writes
// the flagged list. Per-symbol failures are logged and skipped.
func (s *Screener) Run(ctx context.Context, opts Options) (*Result, error) {
	listing, err := dataset.LoadListing(ctx, s.cache, s.listing, opts.TTL)
	if err != nil {
		return nil, err
	}
	if listing.Empty() {
		return nil, core.Errorf(core.ErrNoData, "listing from %s is empty", s.listing.Name())
	}
	if !listing.Has(ColumnCode) {
		return nil, core.Errorf(core.ErrParseFailed, "listing has no %s column", ColumnCode)
	}

	candidates := Candidates(listing, opts.BoardPrefix)
	res := &Result{Board: opts.BoardPrefix, Candidates: len(candidates)}
	s.logger.Info("screen started",
		zap.String("board", opts.BoardPrefix),
		zap.Int("candidates", len(candidates)))

	now := s.cache.Now()
	end := core.Day(now)
	start := end.AddDate(0, 0, -opts.LookbackDays)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		closes, err := s.history(ctx, c.Symbol, start, end, opts.TTL)
		if err != nil {
			res.Failed++
			s.logger.Warn("history unavailable",
				zap.String("target", c.Symbol),
				zap.Error(err))
			continue
		}
		flag, ok := indicator.ConsecutiveRise(closes, opts.Window, opts.MinRows)
		if !ok {
			res.Insufficient++
			continue
		}
		if flag {
			res.Hits = append(res.Hits, c)
		}
	}

	res.Path = OutputKey(opts.BoardPrefix, now)
	if err := s.write(ctx, res.Path, res.Hits); err != nil {
		return res, err
	}
	if s.metrics != nil {
		s.metrics.SetScreenFlagged(len(res.Hits))
	}
	s.logger.Info("screen finished",
		zap.String("board", opts.BoardPrefix),
		zap.Int("flagged", len(res.Hits)),
		zap.Int("insufficient", res.Insufficient),
		zap.Int("failed", res.Failed),
		zap.String("path", res.Path))
	return res, nil
}

// Candidates returns the listing rows whose normalized code starts with
// prefix, in listing order.
func Candidates(listing *frame.Frame, prefix string) []Hit {
	var out []Hit
	seen := map[string]bool{}
	for _, row := range listing.Records() {
		symbol, err := core.NormalizeSymbol(row[ColumnCode])
		if err != nil || !strings.HasPrefix(symbol, prefix) || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, Hit{Symbol: symbol, Name: strings.TrimSpace(row[ColumnName])})
	}
	return out
}

// history returns the parseable closes of symbol, oldest first. Only
// network fetches are paced.
func (s *Screener) history(ctx context.Context, symbol string, start, end time.Time, ttl time.Duration) ([]float64, error) {
	fetched := false
	f, err := s.cache.GetOrFetch(ctx, cache.RefKey("history", symbol), ttl, func(ctx context.Context) (*frame.Frame, error) {
		fetched = true
		return s.daily.FetchDaily(ctx, symbol, start, end)
	})
	if fetched {
		if werr := s.pacer.Wait(ctx); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		return nil, err
	}
	return Closes(f), nil
}

// Closes extracts the 收盘 column, dropping cells that do not parse.
func Closes(f *frame.Frame) []float64 {
	var out []float64
	for _, v := range f.Column("收盘") {
		if p := unit.ParseFloat(v); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func (s *Screener) write(ctx context.Context, path string, hits []Hit) error {
	f := frame.New(ColumnCode, ColumnName)
	for _, h := range hits {
		f.Append(h.Symbol, h.Name)
	}
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return core.WrapError(core.ErrCacheFailed, err)
	}
	if err := s.out.Write(ctx, path, buf.Bytes()); err != nil {
		return core.WrapError(core.ErrCacheFailed, fmt.Errorf("writing %s: %w", path, err))
	}
	return nil
}
