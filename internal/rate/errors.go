package rate

import "errors"

var (
	// ErrRateLimited is returned once a key has spent its budget for the
	// current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend failures from the Redis limiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
