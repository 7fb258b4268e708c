package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMFALimiterRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewMFALimiter(rdb, MFAConfig{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.RecordFailure(ctx, "u1"); err != nil {
			t.Fatalf("failure %d: unexpected error %v", i+1, err)
		}
	}
	if err := l.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected budget left, got %v", err)
	}
	if err := l.RecordFailure(ctx, "u1"); !errors.Is(err, ErrMFARateLimited) {
		t.Fatalf("expected last failure to rate limit, got %v", err)
	}
	if err := l.Check(ctx, "u1"); !errors.Is(err, ErrMFARateLimited) {
		t.Fatalf("expected Check to reject, got %v", err)
	}
	if err := l.Check(ctx, "u2"); err != nil {
		t.Fatalf("other principal must not be limited: %v", err)
	}

	if err := l.Reset(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected reset to clear the counter, got %v", err)
	}

	_ = l.RecordFailure(ctx, "u3")
	if ttl := mr.TTL("amfa:u3"); ttl != time.Minute {
		t.Fatalf("expected cooldown ttl of 1m, got %v", ttl)
	}
}

func TestMFALimiterLocalCooldown(t *testing.T) {
	l := NewMFALimiter(nil, MFAConfig{MaxAttempts: 2, Cooldown: time.Minute})
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "u1")
	if err := l.RecordFailure(ctx, "u1"); !errors.Is(err, ErrMFARateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}

	now = now.Add(time.Minute)
	if err := l.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected counter to expire after cooldown, got %v", err)
	}
}

func TestNilMFALimiterIsNoOp(t *testing.T) {
	var l *MFALimiter
	if err := l.Check(context.Background(), "u"); err != nil {
		t.Fatalf("nil limiter Check: %v", err)
	}
	if err := l.RecordFailure(context.Background(), "u"); err != nil {
		t.Fatalf("nil limiter RecordFailure: %v", err)
	}
}
