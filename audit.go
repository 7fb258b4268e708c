package procureauth

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/procureauth/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one security-relevant record. It never carries passwords,
// tokens, secrets or recovery codes.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZerologSink    = audit.ZerologSink
)

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

// NewZerologSink writes events through l at info level for successes and
// warn level for failures.
func NewZerologSink(l zerolog.Logger) *ZerologSink { return audit.NewZerologSink(l) }

const (
	auditEventLoginSuccess   = "login_success"
	auditEventLoginFailure   = "login_failure"
	auditEventRefreshSuccess = "refresh_success"
	auditEventRefreshInvalid = "refresh_invalid"
	auditEventLogout         = "logout"
	auditEventMFAEnabled     = "mfa_enabled"
	auditEventMFADisabled    = "mfa_disabled"
	auditEventMFASuccess     = "mfa_success"
	auditEventMFAFailure     = "mfa_failure"
	auditEventRecoveryUsed   = "recovery_code_used"
	auditEventRecoveryFailed = "recovery_code_failed"
	auditEventMFAGuardDenied = "mfa_guard_denied"
	auditEventCSRFRejected   = "csrf_rejected"
)

// AuditErrorCode is the stable, non-sensitive cause recorded on failed
// events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrMFARequired        AuditErrorCode = "mfa_required"
	auditErrMFAInvalid         AuditErrorCode = "mfa_invalid"
	auditErrMFANotConfigured   AuditErrorCode = "mfa_not_configured"
	auditErrMFAAlreadyEnabled  AuditErrorCode = "mfa_already_enabled"
	auditErrRecoveryInvalid    AuditErrorCode = "recovery_code_invalid"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrCSRF               AuditErrorCode = "csrf"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// errRefreshReuse only ever appears in audit records. Callers see
// ErrInvalidRefreshToken.
var errRefreshReuse = errors.New("refresh token reuse")

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInactiveAccount):
		return auditErrAccountDisabled
	case errors.Is(err, ErrPrincipalNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, errRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrInvalidRefreshToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrMFARequired):
		return auditErrMFARequired
	case errors.Is(err, ErrInvalidMFAToken):
		return auditErrMFAInvalid
	case errors.Is(err, ErrMFANotConfigured):
		return auditErrMFANotConfigured
	case errors.Is(err, ErrMFAAlreadyEnabled):
		return auditErrMFAAlreadyEnabled
	case errors.Is(err, ErrInvalidRecoveryCode):
		return auditErrRecoveryInvalid
	case errors.Is(err, ErrMFARateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrCSRFTokenMissing),
		errors.Is(err, ErrCSRFTokenInvalid):
		return auditErrCSRF
	case errors.Is(err, ErrBlacklistUnavailable),
		errors.Is(err, ErrMFAStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
