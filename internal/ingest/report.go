package ingest

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Failure kinds recorded per target.
const (
	KindFetch      = "fetch"
	KindStore      = "store"
	KindConstraint = "constraint"
)

// Run statuses.
const (
	StatusSuccess  = "success"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// TargetFailure records why one target was abandoned.
type TargetFailure struct {
	Target string
	Kind   string
	Err    error
}

// Report summarizes one sync run.
type Report struct {
	RunID    string
	Entity   string
	Started  time.Time
	Duration time.Duration

	Targets int // targets attempted
	Skipped int // targets already complete
	NoData  int // targets the provider returned nothing for

	Fetched  int // rows returned by the provider after selection
	Filtered int // rows whose key already existed
	Invalid  int // rows that failed to decode
	Written  int // rows upserted

	Failures []TargetFailure
}

// Failed returns the number of abandoned targets.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Status classifies the run for metrics.
func (r *Report) Status() string {
	switch {
	case r.Failed() == 0:
		return StatusSuccess
	case r.Failed() >= r.Targets:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// MarshalLogObject lets the report be logged with zap.Object.
func (r *Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", r.RunID)
	enc.AddString("entity", r.Entity)
	enc.AddDuration("duration", r.Duration)
	enc.AddInt("targets", r.Targets)
	enc.AddInt("skipped", r.Skipped)
	enc.AddInt("no_data", r.NoData)
	enc.AddInt("fetched", r.Fetched)
	enc.AddInt("filtered", r.Filtered)
	enc.AddInt("invalid", r.Invalid)
	enc.AddInt("written", r.Written)
	enc.AddInt("failed", r.Failed())
	return nil
}

var _ zapcore.ObjectMarshaler = (*Report)(nil)

func (r *Report) fail(log *zap.Logger, target, kind string, err error) {
	r.Failures = append(r.Failures, TargetFailure{Target: target, Kind: kind, Err: err})
	log.Warn("target failed",
		zap.String("target", target),
		zap.String("kind", kind),
		zap.Error(err))
}
