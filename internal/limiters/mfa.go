package limiters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMFAMaxAttempts = 5
	defaultMFACooldown    = 15 * time.Minute
)

var (
	ErrMFARateLimited = errors.New("mfa attempts rate limited")
	ErrMFAUnavailable = errors.New("mfa limiter unavailable")
)

// MFAConfig holds thresholds for failed second-factor attempts.
type MFAConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// MFALimiter counts consecutive failed TOTP and recovery-code attempts per
// principal. With a Redis client the counters are shared across instances;
// without one they live in process memory.
type MFALimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration

	mu    sync.Mutex
	local map[string]localCounter
	now   func() time.Time
}

type localCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMFALimiter creates the limiter. Zero-value fields in cfg fall back to
// 5 attempts per 15 minutes.
func NewMFALimiter(redisClient redis.UniversalClient, cfg MFAConfig) *MFALimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultMFAMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultMFACooldown
	}
	return &MFALimiter{
		redis:       redisClient,
		maxAttempts: int64(max),
		cooldown:    cd,
		local:       make(map[string]localCounter),
		now:         time.Now,
	}
}

func (l *MFALimiter) key(principalID string) string {
	return "amfa:" + principalID
}

// Check rejects once the failure budget for principalID is spent.
func (l *MFALimiter) Check(ctx context.Context, principalID string) error {
	if l == nil {
		return nil
	}
	count, err := l.get(ctx, l.key(principalID))
	if err != nil {
		return err
	}
	if count >= l.maxAttempts {
		return ErrMFARateLimited
	}
	return nil
}

// RecordFailure counts one failed attempt. It returns ErrMFARateLimited when
// this failure spends the last attempt.
func (l *MFALimiter) RecordFailure(ctx context.Context, principalID string) error {
	if l == nil {
		return nil
	}
	count, err := l.incr(ctx, l.key(principalID))
	if err != nil {
		return err
	}
	if count >= l.maxAttempts {
		return ErrMFARateLimited
	}
	return nil
}

// Reset clears the failure counter after a successful attempt.
func (l *MFALimiter) Reset(ctx context.Context, principalID string) error {
	if l == nil {
		return nil
	}
	key := l.key(principalID)
	if l.redis == nil {
		l.mu.Lock()
		delete(l.local, key)
		l.mu.Unlock()
		return nil
	}
	if err := l.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	return nil
}

func (l *MFALimiter) get(ctx context.Context, key string) (int64, error) {
	if l.redis == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		c, ok := l.local[key]
		if !ok || !l.now().Before(c.expiresAt) {
			return 0, nil
		}
		return c.count, nil
	}
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	return count, nil
}

func (l *MFALimiter) incr(ctx context.Context, key string) (int64, error) {
	if l.redis == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		now := l.now()
		c, ok := l.local[key]
		if !ok || !now.Before(c.expiresAt) {
			c = localCounter{expiresAt: now.Add(l.cooldown)}
		}
		c.count++
		l.local[key] = c
		return c.count, nil
	}
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
		}
	}
	return count, nil
}
