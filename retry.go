package dropflow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides whether a failed worker attempt should be retried and,
// if so, how long to wait before the next attempt. It wraps
// github.com/cenkalti/backoff/v4 rather than reimplementing backoff math,
// matching the pack's own preference for that library over a hand-rolled
// exponential-backoff loop.
type RetryPolicy struct {
	maxAttempts int
	newBackOff  func() backoff.BackOff
	shouldRetry func(error) bool
}

// RetryOption configures a RetryPolicy.
type RetryOption func(*RetryPolicy)

// WithMaxAttempts caps the number of attempts (including the first). Zero
// or negative means unlimited attempts, bounded only by the backoff's own
// MaxElapsedTime if any.
func WithMaxAttempts(n int) RetryOption {
	return func(p *RetryPolicy) { p.maxAttempts = n }
}

// WithShouldRetry installs a predicate deciding whether a given error is
// retryable at all. Defaults to retrying every non-nil error except those
// wrapping ErrInterrupted or ErrSilentStop.
func WithShouldRetry(pred func(error) bool) RetryOption {
	return func(p *RetryPolicy) { p.shouldRetry = pred }
}

// NewRetryPolicy builds a policy around an exponential backoff with the
// given initial interval. Use WithMaxAttempts / WithShouldRetry to refine it.
func NewRetryPolicy(initialInterval time.Duration, opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts: 0,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initialInterval
			b.MaxElapsedTime = 0
			return b
		},
		shouldRetry: defaultShouldRetry,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NoRetry returns a policy that never retries; a worker using it runs its
// callback exactly once.
func NoRetry() *RetryPolicy {
	return &RetryPolicy{maxAttempts: 1, shouldRetry: func(error) bool { return false }}
}

func defaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if IsKind(err, KindInterrupted) || IsKind(err, KindSilentStop) {
		return false
	}
	return true
}

// run executes fn, retrying per the policy's backoff and attempt cap until
// it succeeds, ctx is cancelled, the attempt cap is reached, or the error is
// not retryable. The last error is returned if every attempt fails.
func (p *RetryPolicy) run(ctx context.Context, fn func(context.Context) error) error {
	if p.maxAttempts == 1 {
		return fn(ctx)
	}

	b := backoff.WithContext(p.newBackOff(), ctx)
	attempts := 0
	var lastErr error

	op := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.shouldRetry(err) {
			return backoff.Permanent(err)
		}
		if p.maxAttempts > 0 && attempts >= p.maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, b); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
