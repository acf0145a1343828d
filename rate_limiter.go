package photocluster

import (
	"sync/atomic"
	"time"
)

// RateLimiter is a lock-free token bucket. One token is granted per
// refillRate elapsed, up to maxTokens.
type RateLimiter struct {
	maxTokens  int64
	tokens     int64
	refillRate time.Duration
	lastRefill int64
}

// NewRateLimiter creates a full bucket of maxTokens refilled one token per
// refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		maxTokens:  int64(maxTokens),
		tokens:     int64(maxTokens),
		refillRate: refillRate,
		lastRefill: time.Now().UnixNano(),
	}
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.refillTokens()
	return rl.consumeToken()
}

// Tokens returns the currently available token count.
func (rl *RateLimiter) Tokens() int {
	return int(atomic.LoadInt64(&rl.tokens))
}

func (rl *RateLimiter) refillTokens() {
	now := time.Now().UnixNano()

	for {
		currentTokens := atomic.LoadInt64(&rl.tokens)
		lastRefill := atomic.LoadInt64(&rl.lastRefill)

		elapsed := now - lastRefill
		tokensToAdd := int64(0)
		if rl.refillRate > 0 {
			tokensToAdd = elapsed / int64(rl.refillRate)
		}
		if tokensToAdd == 0 {
			break
		}

		newTokens := currentTokens + tokensToAdd
		if newTokens > rl.maxTokens {
			newTokens = rl.maxTokens
		}

		// Advance lastRefill by whole refill intervals so fractional credit
		// carries over to the next refill.
		newLastRefill := lastRefill + tokensToAdd*int64(rl.refillRate)
		if !atomic.CompareAndSwapInt64(&rl.lastRefill, lastRefill, newLastRefill) {
			continue
		}

		atomic.StoreInt64(&rl.tokens, newTokens)
		break
	}
}

func (rl *RateLimiter) consumeToken() bool {
	for {
		currentTokens := atomic.LoadInt64(&rl.tokens)
		if currentTokens <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&rl.tokens, currentTokens, currentTokens-1) {
			return true
		}
	}
}
