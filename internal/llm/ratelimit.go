package llm

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// rateLimiter is a token bucket that refills from elapsed time on demand,
// so it needs no background goroutine.
type rateLimiter struct {
	lastRefill time.Time
	tokens     float64
	capacity   float64
	perSecond  float64
	mu         sync.Mutex
}

// newRateLimiter creates a rate limiter for the given requests per minute.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	capacity := float64(requestsPerMinute)
	return &rateLimiter{
		tokens:     capacity,
		capacity:   capacity,
		perSecond:  capacity / 60,
		lastRefill: time.Now(),
	}
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		delay := rl.reserve()
		if delay <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

// reserve takes a token when one is available, otherwise reports how long
// until the next token accrues.
func (rl *rateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens = math.Min(rl.capacity, rl.tokens+elapsed*rl.perSecond)
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	deficit := 1 - rl.tokens
	return time.Duration(deficit / rl.perSecond * float64(time.Second))
}
