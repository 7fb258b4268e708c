package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/jwt"
)

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess       int
	RefreshFailure       int
	RefreshReuseDetected int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess string
	RefreshFailure string
}

// RefreshErrors carries host-level sentinel errors used by the refresh flow.
type RefreshErrors struct {
	EngineNotReady      error
	InvalidRefreshToken error
	// Reuse is recorded as the audit cause when a rotated token comes back.
	Reuse error
}

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	ParseRefresh func(string) (*jwt.RefreshClaims, error)
	// ClaimRefresh revokes the presented token and reports whether this call
	// was the one that revoked it.
	ClaimRefresh func(context.Context, string, time.Time) (bool, error)
	GetByID      func(context.Context, string) (AccountRecord, error)
	MFAEnabled   func(context.Context, string) (bool, error)

	IssueAccess  func(AccountRecord) (string, time.Time, error)
	IssueRefresh func(subject string) (string, time.Time, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Log       *logger.Logger

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh verifies a refresh token, burns it, re-resolves the account
// from the store and issues a fresh access/refresh pair. Every failure
// collapses to Errors.InvalidRefreshToken.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (*IssuedTokens, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	deps.Log = orNop(deps.Log)
	if deps.ParseRefresh == nil || deps.ClaimRefresh == nil || deps.GetByID == nil ||
		deps.IssueAccess == nil || deps.IssueRefresh == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(userID, reason string, cause error) (*IssuedTokens, error) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, userID, cause, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		deps.Log.WithContext(ctx).Debug("refresh rejected", map[string]interface{}{"user_id": userID, "reason": reason})
		return nil, deps.Errors.InvalidRefreshToken
	}

	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		return fail("", "parse", err)
	}
	subject := claims.Subject
	won, err := deps.ClaimRefresh(ctx, refreshToken, expiryOf(claims))
	if err != nil {
		deps.Log.WithContext(ctx).WithError(err).Error("refresh revocation failed", map[string]interface{}{"user_id": subject})
		return fail(subject, "blacklist_unavailable", err)
	}
	if !won {
		deps.MetricInc(deps.Metrics.RefreshReuseDetected)
		deps.Log.WithContext(ctx).Warn("refresh token reuse", map[string]interface{}{"user_id": subject})
		return fail(subject, "reuse", deps.Errors.Reuse)
	}

	account, err := deps.GetByID(ctx, subject)
	if err != nil {
		return fail(subject, "principal_lookup", err)
	}
	if !account.Active {
		return fail(subject, "account_inactive", nil)
	}
	account.PasswordHash = ""

	out := &IssuedTokens{Account: account}
	if out.AccessToken, out.AccessExpiresAt, err = deps.IssueAccess(account); err != nil {
		return fail(subject, "issue_access", err)
	}
	if out.RefreshToken, out.RefreshExpiresAt, err = deps.IssueRefresh(account.ID); err != nil {
		return fail(subject, "issue_refresh", err)
	}
	out.MFARequired = mfaRequired(ctx, account.ID, deps.MFAEnabled, deps.Log)

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, account.ID, nil, nil)
	return out, nil
}
