// Package ratelimit enforces sliding-window request quotas for sensitive
// endpoints, backed by a shared Redis counter store.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Pre-configured windows. Login attempts are capped tighter and over a
// shorter window than password-reset requests.
var (
	LoginWindow         = Window{Name: "login", Limit: 5, Period: 15 * time.Minute}
	PasswordResetWindow = Window{Name: "password_reset", Limit: 3, Period: time.Hour}
)

// Window names a sliding-window quota: at most Limit requests within any
// rolling interval of length Period.
type Window struct {
	Name   string
	Limit  int
	Period time.Duration
}

// Result is the outcome of a Consume call. Degraded is set when the decision
// was made without the counter store, either because it errored and the
// limiter failed open or because limiting is disabled.
type Result struct {
	Allowed    bool
	Degraded   bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter consumes quota for a client key against one named window.
type Limiter interface {
	Consume(ctx context.Context, clientKey string) Result
}

// RedisLimiter tracks request timestamps per client in a Redis sorted set,
// giving true sliding-window semantics rather than fixed calendar buckets.
type RedisLimiter struct {
	client redis.UniversalClient
	window Window
	logger *slog.Logger
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter for the given window.
func NewRedis(client redis.UniversalClient, window Window, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the limiter's clock. Tests only.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	l.now = now
	return l
}

// Consume records one request for the client and reports whether it is
// within quota. Any Redis failure yields an allowed, degraded result; the
// limiter must never abort the caller's flow.
func (l *RedisLimiter) Consume(ctx context.Context, clientKey string) Result {
	key := fmt.Sprintf("ratelimit:%s:%s", l.window.Name, clientKey)
	now := l.now()
	windowStart := now.Add(-l.window.Period)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failOpen(err)
	}

	count := int(countCmd.Val())
	if count >= l.window.Limit {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: l.retryAfter(ctx, key, now),
		}
	}

	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	}
	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, key, member)
	pipe.Expire(ctx, key, l.window.Period)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failOpen(err)
	}

	return Result{Allowed: true, Remaining: l.window.Limit - count - 1}
}

// retryAfter computes when the oldest request in the window falls out of it.
// Best effort; errors collapse to the full window period.
func (l *RedisLimiter) retryAfter(ctx context.Context, key string, now time.Time) time.Duration {
	oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return l.window.Period
	}
	expiresAt := time.Unix(0, int64(oldest[0].Score)).Add(l.window.Period)
	if remaining := expiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

func (l *RedisLimiter) failOpen(err error) Result {
	if l.logger != nil {
		l.logger.Warn("rate limiter degraded, failing open",
			slog.String("window", l.window.Name),
			slog.String("error", err.Error()),
		)
	}
	return Result{Allowed: true, Degraded: true, Remaining: l.window.Limit - 1}
}

// Disabled is the always-allow stub used when no counter store is
// configured. Results are marked degraded so callers and tests can tell the
// difference from a real under-threshold decision.
type Disabled struct {
	window Window
}

// NewDisabled creates an always-allow limiter for the given window.
func NewDisabled(window Window) *Disabled {
	return &Disabled{window: window}
}

// Consume always allows.
func (d *Disabled) Consume(_ context.Context, _ string) Result {
	return Result{Allowed: true, Degraded: true, Remaining: d.window.Limit - 1}
}
