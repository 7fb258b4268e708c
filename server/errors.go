package server

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/procureauth"
	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/middleware"
	"github.com/gin-gonic/gin"
)

// Client-visible error codes.
const (
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeRefreshTokenMissing = "REFRESH_TOKEN_MISSING"
	CodeTokenRefreshFailed  = "TOKEN_REFRESH_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenRevoked        = "TOKEN_REVOKED"
	CodeMFARequired         = "MFA_REQUIRED"
	CodeInvalidMFAToken     = "INVALID_MFA_TOKEN"
	CodeMFANotConfigured    = "MFA_NOT_CONFIGURED"
	CodeMFAAlreadyEnabled   = "MFA_ALREADY_ENABLED"
	CodeMFARateLimited      = "MFA_RATE_LIMITED"
	CodeInvalidRecoveryCode = "INVALID_RECOVERY_CODE"
	CodeCSRFTokenMissing    = "CSRF_TOKEN_MISSING"
	CodeCSRFTokenInvalid    = "CSRF_TOKEN_INVALID"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeBadRequest          = "BAD_REQUEST"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorTable is matched top to bottom with errors.Is. Both credential
// errors share one code so a response never reveals whether an account
// exists or is disabled.
var errorTable = []errorMapping{
	{procureauth.ErrInvalidCredentials, http.StatusOK, CodeInvalidCredentials, "invalid username or password"},
	{procureauth.ErrInactiveAccount, http.StatusOK, CodeInvalidCredentials, "invalid username or password"},
	{procureauth.ErrInvalidRefreshToken, http.StatusOK, CodeTokenRefreshFailed, "token refresh failed"},
	{procureauth.ErrInvalidRecoveryCode, http.StatusOK, CodeInvalidRecoveryCode, "invalid recovery code"},
	{middleware.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthorized, "authentication required"},
	{procureauth.ErrTokenExpired, http.StatusUnauthorized, CodeTokenExpired, "token expired"},
	{procureauth.ErrTokenRevoked, http.StatusUnauthorized, CodeTokenRevoked, "token revoked"},
	{procureauth.ErrInvalidSignature, http.StatusUnauthorized, CodeInvalidToken, "invalid token"},
	{procureauth.ErrPrincipalNotFound, http.StatusUnauthorized, CodeUnauthorized, "authentication required"},
	{procureauth.ErrMFARequired, http.StatusUnauthorized, CodeMFARequired, "mfa verification required"},
	{procureauth.ErrInvalidMFAToken, http.StatusUnauthorized, CodeInvalidMFAToken, "invalid mfa token"},
	{procureauth.ErrMFAAlreadyEnabled, http.StatusUnauthorized, CodeMFAAlreadyEnabled, "mfa is already enabled"},
	{procureauth.ErrMFANotConfigured, http.StatusBadRequest, CodeMFANotConfigured, "mfa is not configured"},
	{procureauth.ErrMFARateLimited, http.StatusTooManyRequests, CodeMFARateLimited, "too many failed attempts, try again later"},
	{procureauth.ErrCSRFTokenMissing, http.StatusForbidden, CodeCSRFTokenMissing, "csrf token missing"},
	{procureauth.ErrCSRFTokenInvalid, http.StatusForbidden, CodeCSRFTokenInvalid, "csrf token invalid"},
	{middleware.ErrTooManyRequests, http.StatusTooManyRequests, CodeTooManyRequests, "too many requests"},
	{procureauth.ErrBlacklistUnavailable, http.StatusServiceUnavailable, CodeServiceUnavailable, "service temporarily unavailable"},
	{procureauth.ErrMFAStoreUnavailable, http.StatusServiceUnavailable, CodeServiceUnavailable, "service temporarily unavailable"},
}

var internalError = errorMapping{status: http.StatusInternalServerError, code: CodeInternal, message: "internal server error"}

func lookupError(err error) errorMapping {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m
		}
	}
	return internalError
}

// writeError renders err through errorTable. Unmapped errors are logged
// with the request id and hidden behind INTERNAL_SERVER_ERROR.
func writeError(log *logger.Logger) middleware.AbortFunc {
	return func(c *gin.Context, err error) {
		m := lookupError(err)
		if m.code == CodeInternal || m.code == CodeServiceUnavailable {
			log.WithContext(c.Request.Context()).WithError(err).Error("request failed", map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})
		}
		respondError(c, m.status, m.code, m.message)
	}
}
