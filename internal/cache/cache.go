// Package cache keeps provider frames as CSV files on an archive backend
// and serves them back while they are younger than their TTL.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/metrics"
	"github.com/newthinker/stocksync/internal/storage/archive"
)

// Recorder receives cache lookup outcomes. *metrics.Registry satisfies it.
type Recorder interface {
	RecordCache(name, result string)
}

// FetchFunc loads a frame from the network on a cache miss.
type FetchFunc func(ctx context.Context) (*frame.Frame, error)

// Cache reads and writes frames under <entity>/<name>.csv for reference
// data and <entity>/<name>_<yyyymmdd>.csv for daily snapshots.
type Cache struct {
	store   archive.Storage
	logger  *zap.Logger
	metrics Recorder
	now     func() time.Time
}

// New creates a cache over store.
func New(store archive.Storage, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetMetrics attaches a lookup recorder.
func (c *Cache) SetMetrics(m Recorder) {
	c.metrics = m
}

// SetClock replaces the clock used for TTL checks.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time {
	return c.now()
}

// Key builds the file key for a snapshot of name under entity, dated day.
func Key(entity, name string, day time.Time) string {
	return fmt.Sprintf("%s/%s_%s.csv", entity, name, day.In(core.Shanghai).Format(core.CompactLayout))
}

// RefKey builds the undated key of a reference file. Its freshness is
// governed by the TTL alone.
func RefKey(entity, name string) string {
	return fmt.Sprintf("%s/%s.csv", entity, name)
}

// Load returns the cached frame at key when it exists, parses, and is not
// older than ttl. Read failures are logged and reported as a miss.
func (c *Cache) Load(ctx context.Context, key string, ttl time.Duration) (*frame.Frame, bool) {
	name := entityOf(key)

	modified, err := c.store.ModTime(ctx, key)
	if err != nil {
		if !errors.Is(err, archive.ErrNotFound) {
			c.logger.Warn("cache stat failed",
				zap.String("key", key),
				zap.Error(core.WrapError(core.ErrCacheFailed, err)))
		}
		c.record(name, metrics.CacheMiss)
		return nil, false
	}
	if ttl > 0 && c.now().Sub(modified) > ttl {
		c.logger.Debug("cache expired", zap.String("key", key), zap.Time("modified", modified))
		c.record(name, metrics.CacheExpired)
		return nil, false
	}

	data, err := c.store.Read(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed",
			zap.String("key", key),
			zap.Error(core.WrapError(core.ErrCacheFailed, err)))
		c.record(name, metrics.CacheMiss)
		return nil, false
	}
	f, err := frame.ReadCSV(bytes.NewReader(data))
	if err != nil || f.Empty() {
		c.logger.Warn("cache file corrupt, refetching",
			zap.String("key", key),
			zap.Error(core.WrapError(core.ErrCacheFailed, errOrEmpty(err))))
		c.record(name, metrics.CacheCorrupt)
		return nil, false
	}

	c.record(name, metrics.CacheHit)
	return f, true
}

// Save writes f at key. Empty frames are not written.
func (c *Cache) Save(ctx context.Context, key string, f *frame.Frame) error {
	if f.Empty() {
		return nil
	}
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return core.WrapError(core.ErrCacheFailed, err)
	}
	if err := c.store.Write(ctx, key, buf.Bytes()); err != nil {
		return core.WrapError(core.ErrCacheFailed, err)
	}
	return nil
}

// GetOrFetch serves key from the cache, or calls fetch and stores a
// non-empty result. A failed write is logged and the fetched frame is still
// returned. When fetch fails, an expired but readable file is served
// instead of the error.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (*frame.Frame, error) {
	if f, ok := c.Load(ctx, key, ttl); ok {
		return f, nil
	}

	f, err := fetch(ctx)
	if err != nil {
		if stale, ok := c.stale(ctx, key); ok {
			c.logger.Warn("fetch failed, serving stale cache file",
				zap.String("key", key),
				zap.Error(err))
			return stale, nil
		}
		return nil, err
	}
	if f.Empty() {
		return f, nil
	}
	if err := c.Save(ctx, key, f); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return f, nil
}

// stale reads key regardless of age. Missing or unreadable files are not
// served.
func (c *Cache) stale(ctx context.Context, key string) (*frame.Frame, bool) {
	data, err := c.store.Read(ctx, key)
	if err != nil {
		return nil, false
	}
	f, err := frame.ReadCSV(bytes.NewReader(data))
	if err != nil || f.Empty() {
		return nil, false
	}
	c.record(entityOf(key), metrics.CacheStale)
	return f, true
}

func (c *Cache) record(name, result string) {
	if c.metrics != nil {
		c.metrics.RecordCache(name, result)
	}
}

func entityOf(key string) string {
	entity, _, _ := strings.Cut(key, "/")
	return entity
}

func errOrEmpty(err error) error {
	if err != nil {
		return err
	}
	return errors.New("no rows")
}
