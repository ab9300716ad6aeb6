package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, window Window) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, window, nil), mr
}

func TestRedisLimiter_AllowsUnderLimit(t *testing.T) {
	window := Window{Name: "login", Limit: 3, Period: time.Minute}
	limiter, _ := newTestLimiter(t, window)
	ctx := context.Background()

	for i := 0; i < window.Limit; i++ {
		res := limiter.Consume(ctx, "203.0.113.7")
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.False(t, res.Degraded)
		assert.Equal(t, window.Limit-i-1, res.Remaining)
	}
}

func TestRedisLimiter_BlocksOverLimit(t *testing.T) {
	window := Window{Name: "login", Limit: 2, Period: time.Minute}
	limiter, _ := newTestLimiter(t, window)
	ctx := context.Background()

	limiter.Consume(ctx, "client")
	limiter.Consume(ctx, "client")

	res := limiter.Consume(ctx, "client")
	require.False(t, res.Allowed)
	assert.False(t, res.Degraded)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, window.Period)
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	window := Window{Name: "login", Limit: 1, Period: time.Minute}
	limiter, _ := newTestLimiter(t, window)
	ctx := context.Background()

	require.True(t, limiter.Consume(ctx, "alpha").Allowed)
	require.False(t, limiter.Consume(ctx, "alpha").Allowed)

	assert.True(t, limiter.Consume(ctx, "beta").Allowed)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	window := Window{Name: "login", Limit: 1, Period: time.Minute}
	limiter, _ := newTestLimiter(t, window)
	ctx := context.Background()

	base := time.Now()
	limiter.WithClock(func() time.Time { return base })
	require.True(t, limiter.Consume(ctx, "client").Allowed)
	require.False(t, limiter.Consume(ctx, "client").Allowed)

	// Once the first request ages past the window, quota frees up.
	limiter.WithClock(func() time.Time { return base.Add(window.Period + time.Second) })
	assert.True(t, limiter.Consume(ctx, "client").Allowed)
}

func TestRedisLimiter_FailsOpenOnBackendError(t *testing.T) {
	window := Window{Name: "login", Limit: 5, Period: time.Minute}
	limiter, mr := newTestLimiter(t, window)

	mr.Close()

	res := limiter.Consume(context.Background(), "client")
	assert.True(t, res.Allowed)
	assert.True(t, res.Degraded)
	assert.Equal(t, window.Limit-1, res.Remaining)
}

func TestDisabled_AlwaysAllows(t *testing.T) {
	limiter := NewDisabled(Window{Name: "login", Limit: 5, Period: time.Minute})

	for i := 0; i < 20; i++ {
		res := limiter.Consume(context.Background(), "client")
		require.True(t, res.Allowed)
		require.True(t, res.Degraded)
	}
}
