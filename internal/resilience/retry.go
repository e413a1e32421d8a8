package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff describes an exponential backoff schedule. The zero value is
// usable; normalized fills in defaults (3 attempts, 500ms base doubling
// up to 30s, 25% jitter).
type Backoff struct {
	// Attempts is the total number of tries including the first one.
	Attempts int
	Base     time.Duration
	Cap      time.Duration
	Factor   float64

	// Jitter is the fraction of the computed delay randomized in both
	// directions. 0.25 means each sleep lands within ±25% of nominal.
	Jitter float64

	// Check decides whether an error is worth retrying. Nil means CanRetry.
	Check func(err error) bool

	// Notify, if set, is called before each retry sleep.
	Notify func(attempt int, err error)
}

func (b Backoff) normalized() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Base <= 0 {
		b.Base = 500 * time.Millisecond
	}
	if b.Cap <= 0 {
		b.Cap = 30 * time.Second
	}
	if b.Factor <= 0 {
		b.Factor = 2.0
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	if b.Check == nil {
		b.Check = CanRetry
	}
	return b
}

// delay computes the sleep before retry number attempt (0-based).
func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if d > float64(b.Cap) {
		d = float64(b.Cap)
	}
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// RetryVal runs fn until it succeeds, the error stops qualifying as
// retryable, attempts run out, or ctx is cancelled. The value from the
// first successful call is returned.
func RetryVal[T any](ctx context.Context, b Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	b = b.normalized()

	var zero T
	var lastErr error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !b.Check(err) || attempt == b.Attempts-1 {
			break
		}
		if b.Notify != nil {
			b.Notify(attempt+1, err)
		}

		timer := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// Retry is RetryVal for functions without a return value.
func Retry(ctx context.Context, b Backoff, fn func(ctx context.Context) error) error {
	_, err := RetryVal(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// LogRetries returns a Notify callback that logs each retry attempt
// against the named service and operation.
func LogRetries(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
