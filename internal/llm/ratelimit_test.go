package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstWithinCapacity(t *testing.T) {
	rl := newRateLimiter(120)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, rl.wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "burst inside capacity should not block")
}

func TestRateLimiter_DelaysWhenExhausted(t *testing.T) {
	rl := newRateLimiter(60)
	rl.tokens = 0

	delay := rl.reserve()
	assert.Greater(t, delay, time.Duration(0))
	assert.LessOrEqual(t, delay, time.Second+50*time.Millisecond, "one token accrues per second at 60 rpm")
}

func TestRateLimiter_RefillsFromElapsedTime(t *testing.T) {
	rl := newRateLimiter(600)
	rl.tokens = 0
	rl.lastRefill = time.Now().Add(-time.Second)

	assert.Equal(t, time.Duration(0), rl.reserve(), "ten tokens accrued over the last second")
}

func TestRateLimiter_ContextCancellation(t *testing.T) {
	rl := newRateLimiter(60)
	rl.tokens = 0
	rl.lastRefill = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_ZeroConfigDefaults(t *testing.T) {
	rl := newRateLimiter(0)
	assert.Equal(t, 60.0, rl.capacity)
}
