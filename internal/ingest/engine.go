package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/metrics"
	"github.com/newthinker/stocksync/internal/model"
)

// Recorder receives sync metrics. *metrics.Registry satisfies it.
type Recorder interface {
	RecordRun(entity, status string, at time.Time)
	RecordRows(entity, stage string, n int)
	RecordTargetFailure(entity, kind string)
	ObserveFetch(entity string, d time.Duration)
}

// Engine runs jobs one target at a time.
type Engine struct {
	logger  *zap.Logger
	metrics Recorder
	pacer   *Pacer
	now     func() time.Time
}

// NewEngine creates an engine with no pacing and no metrics.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, now: time.Now}
}

// SetMetrics attaches a metrics recorder.
func (e *Engine) SetMetrics(m Recorder) {
	e.metrics = m
}

// SetPacer sets the wait applied after every provider call.
func (e *Engine) SetPacer(p *Pacer) {
	e.pacer = p
}

// SetClock replaces the engine clock.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Sync brings sink up to date with job over r. Per-target failures are
// recorded in the report and never stop the run. The returned error is
// non-nil only when targets cannot be listed or ctx is done.
func Sync[T model.Record](ctx context.Context, e *Engine, job Job[T], sink Sink[T], r DateRange) (*Report, error) {
	rep := &Report{
		RunID:   uuid.NewString(),
		Entity:  job.Name(),
		Started: e.now(),
	}
	log := e.logger.With(zap.String("entity", rep.Entity), zap.String("run_id", rep.RunID))

	targets, err := job.Targets(ctx)
	if err != nil {
		e.finish(log, rep, StatusFailed)
		return rep, err
	}
	log.Info("sync started", zap.Int("targets", len(targets)))

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			log.Warn("sync interrupted", zap.String("next_target", target), zap.Error(err))
			e.finish(log, rep, StatusCanceled)
			return rep, err
		}
		rep.Targets++
		syncTarget(ctx, e, log.With(zap.String("target", target)), rep, job, sink, target, r)
	}

	e.finish(log, rep, rep.Status())
	return rep, nil
}

func syncTarget[T model.Record](ctx context.Context, e *Engine, log *zap.Logger, rep *Report, job Job[T], sink Sink[T], target string, r DateRange) {
	var existing KeySet
	if !job.Refresh() {
		keys, err := sink.ExistingKeys(ctx, target)
		if err != nil {
			e.fail(log, rep, target, KindStore, err)
			return
		}
		existing = keys
	}

	rng, ok := job.Plan(ctx, target, r, existing)
	if !ok {
		log.Debug("already imported")
		rep.Skipped++
		return
	}

	start := e.now()
	f, err := job.Fetch(ctx, target, rng)
	e.observeFetch(rep.Entity, e.now().Sub(start))
	if werr := e.pacer.Wait(ctx); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		e.fail(log, rep, target, KindFetch, err)
		return
	}
	if f.Empty() {
		log.Info("no data", zap.Error(core.ErrNoData))
		rep.NoData++
		return
	}

	f = job.Select(f)
	fetched := f.Len()
	rep.Fetched += fetched

	records, filtered, invalid := collect(log, job, target, f, existing)
	rep.Filtered += filtered
	rep.Invalid += invalid
	e.rows(rep.Entity, metrics.StageFetched, fetched)
	e.rows(rep.Entity, metrics.StageSkipped, filtered)
	e.rows(rep.Entity, metrics.StageInvalid, invalid)

	if len(records) == 0 {
		log.Debug("nothing new", zap.Int("fetched", fetched))
		return
	}

	n, err := sink.Upsert(ctx, records)
	if err != nil {
		kind := KindStore
		if errors.Is(err, core.ErrConstraintViolation) {
			kind = KindConstraint
		}
		e.fail(log, rep, target, kind, err)
		return
	}
	rep.Written += n
	e.rows(rep.Entity, metrics.StageWritten, n)
	log.Info("target synced", zap.Int("fetched", fetched), zap.Int("rows", n))
}

// collect decodes the rows whose keys are not in existing. Within one batch
// the last row for a key wins.
func collect[T model.Record](log *zap.Logger, job Job[T], target string, f *frame.Frame, existing KeySet) (records []T, filtered, invalid int) {
	seen := make(map[string]int, f.Len())
	for i := 0; i < f.Len(); i++ {
		row := f.Row(i)
		key, err := job.Key(target, row)
		if err != nil {
			log.Debug("skipping row", zap.Int("row", i), zap.Error(err))
			invalid++
			continue
		}
		if _, ok := existing[key]; ok {
			filtered++
			continue
		}
		rec, err := job.Decode(target, row)
		if err != nil {
			log.Debug("skipping row", zap.Int("row", i), zap.String("key", key), zap.Error(err))
			invalid++
			continue
		}
		if at, dup := seen[key]; dup {
			records[at] = rec
			continue
		}
		seen[key] = len(records)
		records = append(records, rec)
	}
	return records, filtered, invalid
}

func (e *Engine) fail(log *zap.Logger, rep *Report, target, kind string, err error) {
	rep.fail(log, target, kind, err)
	if e.metrics != nil {
		e.metrics.RecordTargetFailure(rep.Entity, kind)
	}
}

func (e *Engine) rows(entity, stage string, n int) {
	if e.metrics != nil {
		e.metrics.RecordRows(entity, stage, n)
	}
}

func (e *Engine) observeFetch(entity string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveFetch(entity, d)
	}
}

func (e *Engine) finish(log *zap.Logger, rep *Report, status string) {
	rep.Duration = e.now().Sub(rep.Started)
	if e.metrics != nil {
		e.metrics.RecordRun(rep.Entity, status, e.now())
	}
	log.Info("sync finished", zap.String("status", status), zap.Object("report", rep))
}
