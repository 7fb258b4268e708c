package blacklist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures. Callers treat it as a failed
// operation, not as "token not revoked".
var ErrUnavailable = errors.New("token blacklist unavailable")

// Store is the contract shared by all backends.
type Store interface {
	// Add revokes token until expiresAt. Adding an expired or already
	// revoked token succeeds.
	Add(ctx context.Context, token string, expiresAt time.Time) error
	// Claim revokes token and reports whether this call was the one that
	// revoked it. Concurrent claims of one token yield exactly one true.
	Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error)
	// Contains reports whether token is revoked and not yet expired.
	Contains(ctx context.Context, token string) (bool, error)
}

// Fingerprint returns the hex SHA-256 of token, used as the storage key.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
