package sync

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces CRM-bound work. Wait blocks until the next item may start
// or ctx is done.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer admits one item per interval. The first Wait returns at once.
type RatePacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a RatePacer, or a NoopPacer when interval is not positive.
func NewPacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return NoopPacer{}
	}
	return &RatePacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NoopPacer never waits.
type NoopPacer struct{}

func (NoopPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}
