package routing

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"transport-cost/core/timeline"
	"transport-cost/core/types"
	"transport-cost/internal/errors"
	"transport-cost/internal/logging"
)

// Retry defaults
const (
	DefaultTimeout        = 10 * time.Second
	DefaultMaxAttempts    = 4
	DefaultInitialBackoff = 200 * time.Millisecond
)

// Resilient wraps a provider with a per-attempt timeout and bounded retries
// with exponential backoff. Non-transient domain errors are returned as-is.
type Resilient struct {
	inner          timeline.SegmentProvider
	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	logger         *zap.Logger
}

// ResilientOption configures a Resilient provider
type ResilientOption func(*Resilient)

// WithTimeout bounds each attempt
func WithTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxAttempts sets the number of attempts including the first
func WithMaxAttempts(n int) ResilientOption {
	return func(r *Resilient) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithInitialBackoff sets the delay before the first retry; it doubles after each retry
func WithInitialBackoff(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d >= 0 {
			r.initialBackoff = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ResilientOption {
	return func(r *Resilient) { r.logger = l }
}

// NewResilient wraps inner
func NewResilient(inner timeline.SegmentProvider, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		inner:          inner,
		timeout:        DefaultTimeout,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		logger:         logging.Named("routing"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Segments implements timeline.SegmentProvider
func (r *Resilient) Segments(ctx context.Context, origin, destination types.Location) (*timeline.Leg, error) {
	var leg *timeline.Leg
	err := r.do(ctx, "segments", func(ctx context.Context) error {
		var err error
		leg, err = r.inner.Segments(ctx, origin, destination)
		return err
	})
	return leg, err
}

// Distance implements timeline.SegmentProvider
func (r *Resilient) Distance(ctx context.Context, from, to types.Location) (*timeline.Span, error) {
	var span *timeline.Span
	err := r.do(ctx, "distance", func(ctx context.Context) error {
		var err error
		span, err = r.inner.Distance(ctx, from, to)
		return err
	})
	return span, err
}

func (r *Resilient) do(ctx context.Context, op string, call func(context.Context) error) error {
	backoff := r.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Network("segment provider "+op+" cancelled", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := call(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if !transient(err) {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}

		r.logger.Warn("segment provider call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Network("segment provider "+op+" cancelled", ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}

	return errors.Network("segment provider "+op+" failed", lastErr).
		WithContext("attempts", r.maxAttempts)
}

// transient reports whether a retry may succeed. Domain errors describe the
// request or the data and are final; anything else, timeouts included, is retried.
func transient(err error) bool {
	var de *errors.Error
	if stderrors.As(err, &de) {
		return de.Type == errors.TypeNetwork
	}
	return !stderrors.Is(err, context.Canceled)
}
