package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/procureauth/internal/logger"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Login    LoginDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Validate ValidateDeps
	MFA      MFADeps
}

// AccountRecord is the flow-local view of a credential record.
type AccountRecord struct {
	ID           string
	LoginID      string
	PasswordHash string
	Role         string
	TenantID     string
	ProfileID    string
	Active       bool
}

// IssuedTokens is the flow-local login and refresh response shape.
type IssuedTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Account          AccountRecord
	MFARequired      bool
}

// AuditFunc emits one audit record. meta is evaluated lazily so callers pay
// nothing when auditing is off.
type AuditFunc func(ctx context.Context, event string, success bool, userID string, err error, meta func() map[string]string)

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noopMetric(int) {}

func orNop(l *logger.Logger) *logger.Logger {
	if l == nil {
		return logger.Nop()
	}
	return l
}
