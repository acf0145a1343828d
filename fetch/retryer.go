package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/Sargam-11/photocluster/internal/backoff"
)

// RetryOptions tunes a Retryer. Zero fields take the defaults: 3 retries,
// 1s initial delay doubling up to 10s.
type RetryOptions struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the grown delay.
	MaxDelay time.Duration
	// BackoffFactor multiplies the delay per retry.
	BackoffFactor float64
}

// Retryer wraps arbitrary operations with bounded exponential-backoff
// retries, independent of the request client's own retry loop. RetryCount
// and IsRetrying are live so a UI can show "retrying (2/3)" while Do runs.
type Retryer struct {
	opts RetryOptions
	calc *backoff.Calculator

	mu       sync.Mutex
	count    int
	retrying bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryer returns a Retryer with the given options.
func NewRetryer(opts RetryOptions) *Retryer {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}
	if opts.BackoffFactor <= 0 {
		opts.BackoffFactor = 2.0
	}
	return &Retryer{
		opts:  opts,
		calc:  backoff.Default(),
		sleep: sleepWithContext,
	}
}

// Do runs op, retrying failures up to MaxRetries times with delays of
// min(InitialDelay * BackoffFactor^retry, MaxDelay). The final error is
// surfaced only after every attempt is spent. Context cancellation aborts
// a pending wait and returns the context's error.
func (r *Retryer) Do(ctx context.Context, op func(ctx context.Context) error) error {
	r.mu.Lock()
	r.count = 0
	r.retrying = false
	r.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			r.setProgress(attempt, true)
			delay := r.calc.Delay(attempt-1, r.opts.InitialDelay, r.opts.MaxDelay, r.opts.BackoffFactor, 0)
			if err := r.sleep(ctx, delay); err != nil {
				r.setProgress(attempt, false)
				return err
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			r.setProgress(attempt, false)
			return nil
		}
	}
	r.setProgress(r.opts.MaxRetries, false)
	return lastErr
}

// RetryCount returns how many retries the current or most recent Do has
// used.
func (r *Retryer) RetryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// IsRetrying reports whether Do is past its first attempt and still running.
func (r *Retryer) IsRetrying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retrying
}

// Reset clears the visible retry counters. An in-flight Do is unaffected
// and will keep updating them as it proceeds.
func (r *Retryer) Reset() {
	r.mu.Lock()
	r.count = 0
	r.retrying = false
	r.mu.Unlock()
}

func (r *Retryer) setProgress(count int, retrying bool) {
	r.mu.Lock()
	r.count = count
	r.retrying = retrying
	r.mu.Unlock()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
