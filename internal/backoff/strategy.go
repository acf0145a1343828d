package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the wait before a retry attempt.
type Strategy interface {
	// Delay returns the wait duration before the given zero-based attempt.
	Delay(attempt int, base, limit time.Duration, factor, jitter float64) time.Duration
}

// Exponential grows delays geometrically: base * factor^attempt, capped at
// limit. A jitter fraction > 0 adds a uniform random share of the computed
// delay, still respecting the cap. Jitter 0 yields deterministic delays.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, base, limit time.Duration, factor, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// factor^31 overflows any practical cap long before this clamp matters.
	if attempt > 30 {
		attempt = 30
	}

	d := time.Duration(float64(base) * pow(factor, attempt))
	if d < 0 || d > limit {
		d = limit
	}

	if j := clampJitter(jitter); j > 0 {
		extra := time.Duration(float64(d) * j * rand.Float64())
		if d+extra > limit {
			d = limit
		} else {
			d += extra
		}
	}
	return d
}

// DecorrelatedJitter picks delays uniformly between base and base*3^attempt
// (capped at limit), trading strict growth for smoother tail latencies under
// contention. Factor and jitter parameters are ignored.
type DecorrelatedJitter struct{}

// Delay implements Strategy.
func (DecorrelatedJitter) Delay(attempt int, base, limit time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return base
	}
	if attempt > 10 {
		attempt = 10
	}

	lo := float64(base)
	hi := lo * pow(3, attempt)
	if m := float64(limit); hi > m || hi < 0 {
		hi = m
	}
	if hi < lo {
		hi = lo
	}

	d := time.Duration(lo + rand.Float64()*(hi-lo))
	if d < 0 || d > limit {
		d = limit
	}
	return d
}

// clampJitter bounds a jitter fraction to [0, 1].
func clampJitter(j float64) float64 {
	if j < 0 {
		return 0
	}
	if j > 1 {
		return 1
	}
	return j
}

// pow is integer exponentiation; avoids math.Pow's edge cases for whole
// exponents.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
