package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

// Rule is a fixed budget of Limit hits per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Enabled reports whether the rule limits anything.
func (r Rule) Enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

// Limiter admits or rejects a hit for key under rule.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) error
}

// Redis enforces rules with shared fixed-window counters so every instance
// sees the same budget.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed limiter. Keys are stored as prefix+key.
func NewRedis(redisClient redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "rl:"
	}
	return &Redis{redis: redisClient, prefix: prefix}
}

// Allow increments the window counter for key and rejects once it exceeds
// rule.Limit.
func (l *Redis) Allow(ctx context.Context, key string, rule Rule) error {
	if !rule.Enabled() {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.prefix+key, rule.Window)
	if err != nil {
		return err
	}
	if count > int64(rule.Limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Redis) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Local enforces rules with in-process token buckets. Budgets are per
// process, so it is only suitable for single-instance deployments.
type Local struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type localBucket struct {
	limiter  *xrate.Limiter
	rule     Rule
	lastSeen time.Time
}

// NewLocal creates an in-process limiter. Buckets idle for longer than
// their window are dropped on the next sweep.
func NewLocal() *Local {
	return &Local{
		buckets: make(map[string]*localBucket),
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow spends one token from key's bucket. A bucket holds rule.Limit
// tokens and refills at Limit per Window.
func (l *Local) Allow(_ context.Context, key string, rule Rule) error {
	if !rule.Enabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok || b.rule != rule {
		every := rule.Window / time.Duration(rule.Limit)
		b = &localBucket{
			limiter: xrate.NewLimiter(xrate.Every(every), rule.Limit),
			rule:    rule,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

func (l *Local) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		idle := l.idleTTL
		if b.rule.Window > idle {
			idle = b.rule.Window
		}
		if now.Sub(b.lastSeen) > idle {
			delete(l.buckets, key)
		}
	}
}
