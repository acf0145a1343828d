package photocluster

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Sargam-11/photocluster/internal/backoff"
)

// RetryPolicy decides whether a settled attempt should be retried and how
// long to wait first.
type RetryPolicy interface {
	// ShouldRetry inspects the attempt outcome. Exactly one of resp and err
	// is non-nil. attempt is zero-based.
	ShouldRetry(resp *Response, err error, attempt int) (time.Duration, bool)
}

// BackoffStrategy selects the delay algorithm used between retries.
type BackoffStrategy int

const (
	// BackoffExponential doubles the delay each attempt (the default).
	BackoffExponential BackoffStrategy = iota
	// BackoffDecorrelatedJitter spreads delays randomly to avoid thundering
	// herds across many clients.
	BackoffDecorrelatedJitter
)

// DefaultRetryPolicy retries server (5xx) and transport failures with
// exponential delays, honoring Retry-After when the origin sends one.
// Timeouts, cancellations and 4xx responses are terminal.
type DefaultRetryPolicy struct {
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64
	calculator        *backoff.Calculator
}

// NewDefaultRetryPolicy creates the standard retry policy.
func NewDefaultRetryPolicy(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) *DefaultRetryPolicy {
	return &DefaultRetryPolicy{
		maxRetries:        maxRetries,
		initialBackoff:    initialBackoff,
		maxBackoff:        maxBackoff,
		backoffMultiplier: multiplier,
		jitter:            jitter,
		calculator:        backoff.Default(),
	}
}

// NewDefaultRetryPolicyWithStrategy creates a retry policy with a specific
// backoff strategy.
func NewDefaultRetryPolicyWithStrategy(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64, strategy BackoffStrategy) *DefaultRetryPolicy {
	p := NewDefaultRetryPolicy(maxRetries, initialBackoff, maxBackoff, multiplier, jitter)
	switch strategy {
	case BackoffDecorrelatedJitter:
		p.calculator = backoff.NewCalculator(backoff.DecorrelatedJitter{})
	default:
		p.calculator = backoff.Default()
	}
	return p
}

// ShouldRetry implements the RetryPolicy interface.
func (p *DefaultRetryPolicy) ShouldRetry(resp *Response, err error, attempt int) (time.Duration, bool) {
	if attempt >= p.maxRetries {
		return 0, false
	}

	var delay time.Duration
	switch {
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, false
		}
		var e *Error
		if errors.As(err, &e) {
			switch e.Type {
			case ErrorTypeTimeout, ErrorTypeClient, ErrorTypeParse, ErrorTypeValidation:
				return 0, false
			}
		}
	case resp != nil:
		if resp.StatusCode < 500 {
			return 0, false
		}
		delay = parseRetryAfter(resp.Header.Get("Retry-After"))
	default:
		return 0, false
	}

	if delay == 0 {
		delay = p.calculator.Delay(attempt, p.initialBackoff, p.maxBackoff, p.backoffMultiplier, p.jitter)
	}
	return delay, true
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds format and HTTP-date format.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}

// RetryBudget caps the number of retries allowed across all calls within a
// sliding window, protecting a struggling origin from retry storms.
type RetryBudget struct {
	maxRetries  int64
	perWindow   time.Duration
	current     int64
	windowStart int64
}

// NewRetryBudget creates a new retry budget tracker.
func NewRetryBudget(maxRetries int, perWindow time.Duration) *RetryBudget {
	return &RetryBudget{
		maxRetries:  int64(maxRetries),
		perWindow:   perWindow,
		windowStart: time.Now().UnixNano(),
	}
}

// Allow checks if a retry is allowed under the current budget.
func (rb *RetryBudget) Allow() bool {
	now := time.Now().UnixNano()
	windowStart := atomic.LoadInt64(&rb.windowStart)

	if now-windowStart >= int64(rb.perWindow) {
		if atomic.CompareAndSwapInt64(&rb.windowStart, windowStart, now) {
			atomic.StoreInt64(&rb.current, 0)
		}
	}

	if atomic.LoadInt64(&rb.current) >= rb.maxRetries {
		return false
	}
	return atomic.AddInt64(&rb.current, 1) <= rb.maxRetries
}

// Stats returns the consumed retries and the window start.
func (rb *RetryBudget) Stats() (current, max int64, windowStart time.Time) {
	return atomic.LoadInt64(&rb.current),
		rb.maxRetries,
		time.Unix(0, atomic.LoadInt64(&rb.windowStart))
}
