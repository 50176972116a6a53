package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, limit, window), mr
}

func TestCheckSequence(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, 60*time.Second)
	ctx := context.Background()
	key := "rate_limit:ip:192.0.2.1"

	first, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !first.Allowed || first.Remaining != 1 {
		t.Errorf("first = %+v, want allowed with remaining 1", first)
	}

	second, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Allowed || second.Remaining != 0 {
		t.Errorf("second = %+v, want allowed with remaining 0", second)
	}

	third, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if third.Allowed {
		t.Error("third request allowed, want rejected")
	}
	if third.Remaining != 0 {
		t.Errorf("third remaining = %d, want 0", third.Remaining)
	}
	if third.RetryAfter <= 0 || third.RetryAfter > 60 {
		t.Errorf("RetryAfter = %d, want within (0, 60]", third.RetryAfter)
	}
}

func TestCheckWindowReset(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, 60*time.Second)
	ctx := context.Background()
	key := "rate_limit:ip:192.0.2.1"

	if res, _ := limiter.Check(ctx, key); !res.Allowed {
		t.Fatal("first request rejected")
	}
	if res, _ := limiter.Check(ctx, key); res.Allowed {
		t.Fatal("over-limit request allowed")
	}

	mr.FastForward(61 * time.Second)

	res, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Error("request after window expiry rejected, want fresh window")
	}
	if res.Remaining != 0 {
		t.Errorf("fresh window remaining = %d, want 0 (limit 1, count 1)", res.Remaining)
	}
}

func TestCheckKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 60*time.Second)
	ctx := context.Background()

	if res, _ := limiter.Check(ctx, "rate_limit:ip:192.0.2.1"); !res.Allowed {
		t.Fatal("first key rejected")
	}
	if res, _ := limiter.Check(ctx, "rate_limit:ip:192.0.2.1"); res.Allowed {
		t.Fatal("first key not exhausted")
	}
	if res, _ := limiter.Check(ctx, "rate_limit:ip:198.51.100.9"); !res.Allowed {
		t.Error("second key rejected, want independent window")
	}
}

func TestKey(t *testing.T) {
	if got := Key(42, "192.0.2.1:5555"); got != "rate_limit:user:42" {
		t.Errorf("Key with user = %q", got)
	}
	if got := Key(0, "192.0.2.1:5555"); got != "rate_limit:ip:192.0.2.1" {
		t.Errorf("Key without user = %q", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.0.2.1:5555", "192.0.2.1"},
		{"[::1]:8080", "::1"},
		{"10.0.0.7", "10.0.0.7"},
	}
	for _, tt := range tests {
		if got := ClientIP(tt.in); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
