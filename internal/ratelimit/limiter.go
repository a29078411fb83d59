// Package ratelimit throttles calls to the flowsheet backend using a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watertap-org/flowsheet-int/internal/constants"
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
type RateLimiter struct {
	tokens       float64   // Current number of tokens available
	maxTokens    float64   // Maximum bucket capacity
	refillRate   float64   // Tokens added per second
	lastRefill   time.Time // Last time tokens were refilled
	lastWarnTime time.Time // Last time we warned about waiting
	cooldownEnd  time.Time // No tokens are handed out before this
	mu           sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - tokensPerSecond: Rate at which tokens are added
//   - burstSize: Maximum tokens that can accumulate (allows brief bursts)
func NewRateLimiter(tokensPerSecond float64, burstSize float64) *RateLimiter {
	return &RateLimiter{
		tokens:     burstSize, // Start with full bucket
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
	}
}

// NewBackendRateLimiter creates the limiter shared by all calls to one backend.
// A locally started backend is single-process; bursts of config listing and
// loading are fine, but scripted loops should not hammer it.
func NewBackendRateLimiter() *RateLimiter {
	return NewRateLimiter(constants.BackendRatePerSec, constants.BackendBurstCapacity)
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if d := rl.CooldownRemaining(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if rl.tryAcquire() {
		return nil
	}

	waitTime := rl.timeUntilNextToken()
	if waitTime > 2*time.Second {
		rl.mu.Lock()
		// Only warn every 10 seconds to avoid spam
		if time.Since(rl.lastWarnTime) > 10*time.Second {
			log.Warn().Dur("wait", waitTime).Msg("rate limited, waiting for backend capacity")
			rl.lastWarnTime = time.Now()
		}
		rl.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if rl.tryAcquire() {
			return nil
		}

		timer := time.NewTimer(rl.timeUntilNextToken())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Drain empties the bucket. Called when the backend reports it is overloaded
// so that queued callers slow down to the refill rate.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = 0
	rl.lastRefill = time.Now()
}

// SetCooldown blocks Wait for d. An active cooldown is only ever extended.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	end := time.Now().Add(d)
	if end.After(rl.cooldownEnd) {
		rl.cooldownEnd = end
	}
}

// CooldownRemaining returns how long the current cooldown still lasts.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if d := time.Until(rl.cooldownEnd); d > 0 {
		return d
	}
	return 0
}

// tryAcquire attempts to acquire one token without blocking.
func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

// refill must be called with mu held.
func (rl *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// timeUntilNextToken calculates how long to wait until at least one token is available.
func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tokensNeeded := 1.0 - rl.tokens
	if tokensNeeded <= 0 {
		return 0
	}
	return time.Duration(tokensNeeded / rl.refillRate * float64(time.Second))
}

// GetCurrentTokens returns the current number of tokens (for testing/debugging).
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := time.Since(rl.lastRefill).Seconds()
	tokens := rl.tokens + elapsed*rl.refillRate
	if tokens > rl.maxTokens {
		tokens = rl.maxTokens
	}
	return tokens
}
