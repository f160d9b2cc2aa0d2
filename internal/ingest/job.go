// Package ingest runs incremental syncs: for each target it works out which
// natural keys are missing, fetches only those, decodes provider rows into
// records and upserts them.
package ingest

import (
	"context"
	"time"

	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/model"
)

// KeySet is a set of natural keys.
type KeySet = map[string]struct{}

// DateRange bounds a fetch. Zero fields are open ends.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Sink persists records of one type.
type Sink[T model.Record] interface {
	ExistingKeys(ctx context.Context, target string) (KeySet, error)
	Upsert(ctx context.Context, records []T) (int, error)
}

// Job describes how one entity is synced.
type Job[T model.Record] interface {
	// Name labels logs and metrics.
	Name() string
	// Targets lists what to sync, usually symbols.
	Targets(ctx context.Context) ([]string, error)
	// Plan narrows r to what target is missing. Returning false skips the
	// target without a fetch.
	Plan(ctx context.Context, target string, r DateRange, existing KeySet) (DateRange, bool)
	// Fetch calls the provider.
	Fetch(ctx context.Context, target string, r DateRange) (*frame.Frame, error)
	// Select post-filters fetched rows.
	Select(f *frame.Frame) *frame.Frame
	// Key computes a row's natural key without decoding it.
	Key(target string, row frame.Row) (string, error)
	// Decode maps a row to a record.
	Decode(target string, row frame.Row) (T, error)
	// Refresh jobs upsert every row instead of skipping existing keys.
	Refresh() bool
}

// Defaults provides the pass-through Plan, Select and Refresh most jobs use.
type Defaults struct{}

func (Defaults) Plan(_ context.Context, _ string, r DateRange, _ KeySet) (DateRange, bool) {
	return r, true
}

func (Defaults) Select(f *frame.Frame) *frame.Frame { return f }

func (Defaults) Refresh() bool { return false }
