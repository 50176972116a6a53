// Package ratelimit implements fixed-window request limiting over
// Redis. Fixed windows trade burst behavior at window boundaries for a
// single O(1) counter per client.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix = "rate_limit:user:"
	ipKeyPrefix   = "rate_limit:ip:"
)

// Result is the outcome of a single limiter check. Limit, Remaining and
// Reset are derived from the same counter read so the X-RateLimit-*
// headers are always mutually consistent.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      int // seconds until the window expires
	RetryAfter int // seconds until a rejected client may retry
}

// Limiter counts requests per key in non-overlapping time windows.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// New builds a limiter allowing limit requests per window per key.
func New(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window}
}

// Check increments the key's window counter and decides whether the
// request may proceed. The increment happens even for rejected
// requests; a later pipeline failure does not roll it back.
func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}

	count := incr.Val()
	expiry := ttl.Val()
	if expiry < 0 {
		// First hit in a fresh window: INCR created the key without a
		// TTL, so this increment defines windowStart.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit window expire: %w", err)
		}
		expiry = l.window
	}

	reset := int(expiry.Round(time.Second).Seconds())
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     reset,
	}
	if !res.Allowed {
		res.RetryAfter = reset
	}
	return res, nil
}

// Key derives the limiter key for a request: per-user when an identity
// has been resolved, per source IP otherwise.
func Key(userID int64, remoteAddr string) string {
	if userID > 0 {
		return fmt.Sprintf("%s%d", userKeyPrefix, userID)
	}
	return ipKeyPrefix + ClientIP(remoteAddr)
}

// ClientIP strips the port from a RemoteAddr-style address.
func ClientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
