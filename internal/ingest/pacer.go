package ingest

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer spaces provider calls by a fixed delay plus random jitter.
type Pacer struct {
	delay  time.Duration
	jitter time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer. Zero delay and jitter disable waiting.
func NewPacer(delay, jitter time.Duration) *Pacer {
	return &Pacer{delay: delay, jitter: jitter, sleep: sleepContext}
}

// Next returns the next wait duration.
func (p *Pacer) Next() time.Duration {
	d := p.delay
	if p.jitter > 0 {
		d += rand.N(p.jitter)
	}
	return d
}

// Wait blocks for the next duration or until ctx is done. A nil pacer
// never waits.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	d := p.Next()
	if d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
