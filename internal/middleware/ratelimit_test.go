package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter_CapWithinWindow(t *testing.T) {
	t.Parallel()

	limiter := NewMemoryRateLimiter(15*time.Minute, 10)

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Check("payer:10.0.0.1")
		require.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, retryAfter := limiter.Check("payer:10.0.0.1")
	assert.False(t, allowed)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 900)
}

func TestMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := NewMemoryRateLimiter(15*time.Minute, 1)

	allowed, _ := limiter.Check("payer-a:10.0.0.1")
	require.True(t, allowed)
	allowed, _ = limiter.Check("payer-a:10.0.0.1")
	require.False(t, allowed)

	allowed, _ = limiter.Check("payer-b:10.0.0.2")
	assert.True(t, allowed)
}

func TestMemoryRateLimiter_EvictsExpiredWindows(t *testing.T) {
	t.Parallel()

	limiter := NewMemoryRateLimiter(10*time.Millisecond, 5)

	limiter.Check("payer-a:10.0.0.1")
	limiter.Check("payer-b:10.0.0.2")

	time.Sleep(25 * time.Millisecond)

	limiter.Check("payer-c:10.0.0.3")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.windows, "payer-a:10.0.0.1")
	assert.NotContains(t, limiter.windows, "payer-b:10.0.0.2")
	assert.Contains(t, limiter.windows, "payer-c:10.0.0.3")
}

func TestMemoryRateLimiter_WindowResets(t *testing.T) {
	t.Parallel()

	limiter := NewMemoryRateLimiter(20*time.Millisecond, 1)

	allowed, _ := limiter.Check("payer:10.0.0.1")
	require.True(t, allowed)
	allowed, _ = limiter.Check("payer:10.0.0.1")
	require.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, _ = limiter.Check("payer:10.0.0.1")
	assert.True(t, allowed)
}
