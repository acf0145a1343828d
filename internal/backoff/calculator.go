package backoff

import (
	"time"
)

// Calculator binds a Strategy so callers configure the algorithm once and
// then only ask for delays.
type Calculator struct {
	strategy Strategy
}

// NewCalculator returns a calculator using the given strategy.
func NewCalculator(strategy Strategy) *Calculator {
	return &Calculator{strategy: strategy}
}

// Default returns a calculator with plain exponential growth.
func Default() *Calculator {
	return NewCalculator(Exponential{})
}

// Delay computes the wait before the given zero-based attempt.
func (c *Calculator) Delay(attempt int, base, limit time.Duration, factor, jitter float64) time.Duration {
	return c.strategy.Delay(attempt, base, limit, factor, jitter)
}
