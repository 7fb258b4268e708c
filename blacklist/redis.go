package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared blacklist backend.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedis creates a Redis blacklist. Keys are prefix + fingerprint;
// an empty prefix selects "bl:".
func NewRedis(redisClient redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "bl:"
	}
	return &Redis{redis: redisClient, prefix: prefix, now: time.Now}
}

func (r *Redis) key(token string) string {
	return r.prefix + Fingerprint(token)
}

// Add stores the fingerprint with a TTL equal to the remaining lifetime.
func (r *Redis) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, r.key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Claim uses SET NX so only one caller wins per token.
func (r *Redis) Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return false, nil
	}
	ok, err := r.redis.SetNX(ctx, r.key(token), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Contains reports whether the fingerprint key still exists.
func (r *Redis) Contains(ctx context.Context, token string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
