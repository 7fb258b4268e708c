package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/procureauth/jwt"
)

// AccessIdentity is what a verified, unrevoked access token asserts.
type AccessIdentity struct {
	Subject   string
	LoginID   string
	Role      string
	TenantID  string
	ExpiresAt time.Time
}

// ValidateErrors carries host-level sentinel errors used by validation.
type ValidateErrors struct {
	EngineNotReady       error
	TokenRevoked         error
	BlacklistUnavailable error
}

// ValidateDeps captures access token validation dependencies.
type ValidateDeps struct {
	ParseAccess func(string) (*jwt.AccessClaims, error)
	IsRevoked   func(context.Context, string) (bool, error)
	Now         func() time.Time
	Observe     func(time.Duration)

	Errors ValidateErrors
}

// RunValidateAccess verifies signature, kind and expiry, then consults the
// blacklist. A blacklist outage fails closed.
func RunValidateAccess(ctx context.Context, token string, deps ValidateDeps) (AccessIdentity, error) {
	if deps.ParseAccess == nil {
		return AccessIdentity{}, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Observe != nil {
		start := deps.Now()
		defer func() { deps.Observe(deps.Now().Sub(start)) }()
	}

	claims, err := deps.ParseAccess(token)
	if err != nil {
		return AccessIdentity{}, err
	}

	if deps.IsRevoked != nil {
		revoked, err := deps.IsRevoked(ctx, token)
		if err != nil {
			if errors.Is(err, deps.Errors.BlacklistUnavailable) {
				return AccessIdentity{}, err
			}
			return AccessIdentity{}, fmt.Errorf("%w: %v", deps.Errors.BlacklistUnavailable, err)
		}
		if revoked {
			return AccessIdentity{}, deps.Errors.TokenRevoked
		}
	}

	return AccessIdentity{
		Subject:   claims.Subject,
		LoginID:   claims.LoginID,
		Role:      claims.Role,
		TenantID:  claims.TenantID,
		ExpiresAt: expiryOf(claims),
	}, nil
}
