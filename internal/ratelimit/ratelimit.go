// Package ratelimit paces outbound calls to the ads platform. One token
// bucket per store keeps the engine inside the platform's per-account
// rate limits.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a per-key token bucket
type RateLimiter struct {
	mu         sync.Mutex
	tokens     map[string]int
	lastRefill map[string]time.Time
	rate       int // tokens per second
	burst      int // max bucket size
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:     make(map[string]int),
		lastRefill: make(map[string]time.Time),
		rate:       rate,
		burst:      burst,
	}
}

// Allow checks if a call for key is allowed right now
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	lastRefill, exists := rl.lastRefill[key]

	if !exists {
		rl.tokens[key] = rl.burst - 1
		rl.lastRefill[key] = now
		return true
	}

	elapsed := now.Sub(lastRefill).Seconds()
	tokensToAdd := int(elapsed * float64(rl.rate))

	currentTokens := rl.tokens[key]
	newTokens := currentTokens + tokensToAdd
	if newTokens > rl.burst {
		newTokens = rl.burst
	}

	if newTokens > 0 {
		rl.tokens[key] = newTokens - 1
		rl.lastRefill[key] = now
		return true
	}

	rl.tokens[key] = 0
	return false
}

// Wait blocks until a token for key is available or the context ends.
// Callers in the worker cycle prefer waiting over burning executor
// retries on rate-limit rejections.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		if rl.Allow(key) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// GetRemainingTokens returns remaining tokens for a key
func (rl *RateLimiter) GetRemainingTokens(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens[key]
}

// Reset resets the rate limit for a key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.tokens, key)
	delete(rl.lastRefill, key)
}
