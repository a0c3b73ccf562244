package raster

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive captures so the renderer gets time to paint.
// The first Wait returns immediately.
type Pacer struct {
	limiter *rate.Limiter
	abort   Abort
}

// NewPacer allows one capture per delay. A non-positive delay disables
// pacing but keeps the abort check.
func NewPacer(delay time.Duration, abort Abort) *Pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1), abort: abort}
}

// Wait blocks until the next capture may start. It returns ErrCancelled
// when the abort flag fires or ctx ends while waiting.
func (p *Pacer) Wait(ctx context.Context) error {
	if Aborted(p.abort) {
		return ErrCancelled
	}
	waitCtx, stop := WithAbort(ctx, p.abort)
	defer stop()

	if err := p.limiter.Wait(waitCtx); err != nil {
		if Aborted(p.abort) {
			return ErrCancelled
		}
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if Aborted(p.abort) {
		return ErrCancelled
	}
	return nil
}
