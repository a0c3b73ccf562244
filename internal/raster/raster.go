// Package raster wraps a dom.Surface capture with per-attempt timeouts,
// linear backoff and cooperative cancellation.
package raster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/alnah/go-mdexport/internal/dom"
)

// Defaults applied when Adapter fields are zero.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// Sentinel errors.
var (
	ErrCancelled           = errors.New("export cancelled")
	ErrRasterizationFailed = errors.New("rasterization failed")
)

// RasterizationError reports a capture that failed after every attempt.
type RasterizationError struct {
	Ref      string
	Attempts int
	Err      error // last attempt error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("%v: %s after %d attempt(s): %v", ErrRasterizationFailed, e.Ref, e.Attempts, e.Err)
}

// Unwrap returns the last attempt error.
func (e *RasterizationError) Unwrap() error {
	return e.Err
}

// Is matches ErrRasterizationFailed.
func (e *RasterizationError) Is(target error) bool {
	return target == ErrRasterizationFailed
}

// Abort is the session-level cancellation flag.
type Abort interface {
	Aborted() bool
	Done() <-chan struct{}
}

// Adapter rasterizes elements through a Surface.
type Adapter struct {
	Surface dom.Surface
	// Timeout is the total budget split evenly across Attempts.
	Timeout  time.Duration
	Attempts int
	// Backoff is the wait unit: the n-th retry waits n*Backoff.
	Backoff time.Duration
	Abort   Abort
	Logger  *zap.Logger
}

// Rasterize captures ref, retrying on failure.
// It fails with ErrCancelled when the abort flag is set before an attempt
// or the parent context ends, and with *RasterizationError otherwise.
func (a *Adapter) Rasterize(ctx context.Context, ref string, opts dom.CaptureOptions) (*dom.Bitmap, error) {
	attempts := a.attempts()
	perAttempt := a.timeout() / time.Duration(attempts)
	logger := a.logger()

	waitCtx, stop := WithAbort(ctx, a.Abort)
	defer stop()

	var (
		tried   int
		lastErr error
	)
	op := func() (*dom.Bitmap, error) {
		if Aborted(a.Abort) {
			return nil, backoff.Permanent(ErrCancelled)
		}
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrCancelled, err))
		}
		tried++

		attemptCtx, cancel := context.WithTimeout(ctx, perAttempt)
		defer cancel()

		img, err := a.Surface.Capture(attemptCtx, ref, opts)
		if err != nil {
			lastErr = err
			return nil, err
		}
		scale := opts.Scale
		if scale <= 0 {
			scale = 1
		}
		return &dom.Bitmap{Image: img, Scale: scale}, nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("capture attempt failed",
			zap.String("ref", ref),
			zap.Int("attempt", tried),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{unit: a.backoffUnit()}, uint64(attempts-1)),
		waitCtx)

	bmp, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err == nil {
		return bmp, nil
	}
	switch {
	case errors.Is(err, ErrCancelled):
		return nil, err
	case Aborted(a.Abort):
		return nil, ErrCancelled
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	if lastErr == nil {
		lastErr = err
	}
	return nil, &RasterizationError{Ref: ref, Attempts: tried, Err: lastErr}
}

func (a *Adapter) attempts() int {
	if a.Attempts <= 0 {
		return DefaultAttempts
	}
	return a.Attempts
}

func (a *Adapter) timeout() time.Duration {
	if a.Timeout <= 0 {
		return DefaultTimeout
	}
	return a.Timeout
}

func (a *Adapter) backoffUnit() time.Duration {
	if a.Backoff <= 0 {
		return DefaultBackoff
	}
	return a.Backoff
}

func (a *Adapter) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

// linearBackOff waits n*unit before the n-th retry.
type linearBackOff struct {
	unit time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.unit
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

// Aborted reports whether a is set. A nil Abort is never set.
func Aborted(a Abort) bool {
	return a != nil && a.Aborted()
}

// WithAbort derives a context that is also cancelled when a fires.
// Use it for waits that must stop on cancellation, not for captures.
func WithAbort(ctx context.Context, a Abort) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	if a != nil {
		go func() {
			select {
			case <-a.Done():
				cancel(ErrCancelled)
			case <-ctx.Done():
			}
		}()
	}
	return ctx, func() { cancel(nil) }
}
