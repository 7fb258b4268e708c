package client

import (
	"errors"
	"fmt"
)

// Error codes the server answers with. The list mirrors the server's error
// table so callers can branch without string literals.
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

// ErrClosed is returned by every call on a closed AuthContext.
var ErrClosed = errors.New("client: auth context closed")

// APIError is an error envelope returned by the server. StatusCode is the
// HTTP status; several codes arrive with 200.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// HasCode reports whether err is an APIError carrying code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func (e *APIError) csrfRejected() bool {
	return e.Code == CodeCSRFTokenMissing || e.Code == CodeCSRFTokenInvalid
}

// sessionExpired reports whether a refresh could repair the request.
func (e *APIError) sessionExpired() bool {
	if e.StatusCode != 401 {
		return false
	}
	switch e.Code {
	case CodeTokenExpired, CodeUnauthorized, CodeTokenRevoked:
		return true
	}
	return false
}
