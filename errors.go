package procureauth

import (
	"errors"

	"github.com/MrEthical07/procureauth/csrf"
	"github.com/MrEthical07/procureauth/internal/limiters"
	"github.com/MrEthical07/procureauth/jwt"
)

var (
	// ErrInvalidCredentials is returned by every failed credential check,
	// whatever the underlying cause.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount marks a disabled account. Login folds it into
	// ErrInvalidCredentials before it reaches a caller.
	ErrInactiveAccount = errors.New("account inactive")
	// ErrTokenExpired is returned when a token is past its exp claim.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrInvalidSignature covers tampered, malformed, foreign-secret and
	// wrong-kind tokens.
	ErrInvalidSignature = jwt.ErrInvalidSignature
	// ErrInvalidRefreshToken is the single outcome of any failed refresh.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrTokenRevoked is returned for tokens present in the blacklist.
	ErrTokenRevoked = errors.New("token revoked")

	ErrMFARequired         = errors.New("mfa required")
	ErrInvalidMFAToken     = errors.New("invalid mfa token")
	ErrMFANotConfigured    = errors.New("mfa not configured")
	ErrMFAAlreadyEnabled   = errors.New("mfa already enabled")
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
	ErrMFARateLimited      = limiters.ErrMFARateLimited

	ErrCSRFTokenMissing = csrf.ErrTokenMissing
	ErrCSRFTokenInvalid = csrf.ErrTokenInvalid

	// ErrBlacklistUnavailable is returned when the revocation backend
	// cannot be reached. Validation fails closed on it.
	ErrBlacklistUnavailable = errors.New("token blacklist unavailable")
	// ErrMFAStoreUnavailable wraps MFA store and limiter backend failures.
	ErrMFAStoreUnavailable = errors.New("mfa store unavailable")
	// ErrPrincipalNotFound is returned when a token subject no longer
	// resolves to an account.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrEngineNotReady is returned by methods on a nil or partially built
	// Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
