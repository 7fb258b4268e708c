package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/procureauth/internal/logger"
)

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginMFARequired int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	InactiveAccount    error
	NotFound           error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Now func() time.Time

	GetByLoginID func(context.Context, string) (AccountRecord, error)
	RecordLogin  func(context.Context, string, time.Time) error
	MFAEnabled   func(context.Context, string) (bool, error)

	CheckPassword func(password, hash string) (bool, error)
	BurnPassword  func(password string)

	// Rehash is optional. It is called with the plaintext after a
	// successful check and reports whether the stored hash was replaced.
	Rehash func(ctx context.Context, accountID, password, hash string) (bool, error)

	IssueAccess  func(AccountRecord) (string, time.Time, error)
	IssueRefresh func(subject string) (string, time.Time, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Log       *logger.Logger

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.BurnPassword == nil {
		deps.BurnPassword = func(string) {}
	}
	deps.Log = orNop(deps.Log)
}

// RunValidateCredentials resolves loginID and checks password. Every failure
// returns Errors.InvalidCredentials; the concrete reason is only logged.
// Lookup misses still spend one hash comparison so they cost about as much
// as a wrong password.
func RunValidateCredentials(ctx context.Context, loginID, password string, deps LoginDeps) (AccountRecord, error) {
	normalizeLoginDeps(&deps)
	if deps.GetByLoginID == nil || deps.CheckPassword == nil {
		return AccountRecord{}, deps.Errors.EngineNotReady
	}

	fail := func(userID, reason string, cause error) (AccountRecord, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, cause, func() map[string]string {
			return map[string]string{
				"login_id": loginID,
				"reason":   reason,
			}
		})
		fields := map[string]interface{}{"login_id": loginID, "reason": reason}
		if cause != nil && !errors.Is(cause, deps.Errors.NotFound) && !errors.Is(cause, deps.Errors.InactiveAccount) && !errors.Is(cause, deps.Errors.InvalidCredentials) {
			deps.Log.WithContext(ctx).WithError(cause).Warn("credential check failed", fields)
		} else {
			deps.Log.WithContext(ctx).Debug("credential check failed", fields)
		}
		return AccountRecord{}, deps.Errors.InvalidCredentials
	}

	if loginID == "" || password == "" {
		deps.BurnPassword(password)
		return fail("", "empty_input", deps.Errors.InvalidCredentials)
	}

	account, err := deps.GetByLoginID(ctx, loginID)
	if err != nil {
		deps.BurnPassword(password)
		if errors.Is(err, deps.Errors.NotFound) {
			return fail("", "not_found", err)
		}
		return fail("", "lookup_error", err)
	}
	if account.PasswordHash == "" {
		deps.BurnPassword(password)
		return fail(account.ID, "missing_hash", deps.Errors.InvalidCredentials)
	}

	ok, err := deps.CheckPassword(password, account.PasswordHash)
	if err != nil {
		return fail(account.ID, "hash_error", err)
	}
	if !ok {
		return fail(account.ID, "password_mismatch", deps.Errors.InvalidCredentials)
	}
	if !account.Active {
		return fail(account.ID, "account_inactive", deps.Errors.InactiveAccount)
	}

	if deps.Rehash != nil {
		// Best effort; the old hash still verifies.
		upgraded, err := deps.Rehash(ctx, account.ID, password, account.PasswordHash)
		if err != nil {
			deps.Log.WithContext(ctx).WithError(err).Warn("password rehash failed", map[string]interface{}{"user_id": account.ID})
		} else if upgraded {
			deps.Log.WithContext(ctx).Info("password hash upgraded", map[string]interface{}{"user_id": account.ID})
		}
	}

	account.PasswordHash = ""
	return account, nil
}

// RunLogin validates credentials and issues tokens. The refresh token is
// only issued when rememberMe is set. When the account has MFA enabled the
// result is flagged MFARequired; the access token is still issued and
// protected routes stay gated by the MFA check until a second factor is
// presented.
func RunLogin(ctx context.Context, loginID, password string, rememberMe bool, deps LoginDeps) (*IssuedTokens, error) {
	normalizeLoginDeps(&deps)
	if deps.IssueAccess == nil || deps.IssueRefresh == nil {
		return nil, deps.Errors.EngineNotReady
	}

	account, err := RunValidateCredentials(ctx, loginID, password, deps)
	if err != nil {
		return nil, err
	}

	out := &IssuedTokens{Account: account}
	out.AccessToken, out.AccessExpiresAt, err = deps.IssueAccess(account)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.Log.WithContext(ctx).WithError(err).Error("access token issuance failed", map[string]interface{}{"user_id": account.ID})
		return nil, err
	}
	if rememberMe {
		out.RefreshToken, out.RefreshExpiresAt, err = deps.IssueRefresh(account.ID)
		if err != nil {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.Log.WithContext(ctx).WithError(err).Error("refresh token issuance failed", map[string]interface{}{"user_id": account.ID})
			return nil, err
		}
	}

	out.MFARequired = mfaRequired(ctx, account.ID, deps.MFAEnabled, deps.Log)
	if out.MFARequired {
		deps.MetricInc(deps.Metrics.LoginMFARequired)
	}

	if deps.RecordLogin != nil {
		// Best effort; the login itself already succeeded.
		if err := deps.RecordLogin(ctx, account.ID, deps.Now()); err != nil {
			deps.Log.WithContext(ctx).WithError(err).Warn("last login update failed", map[string]interface{}{"user_id": account.ID})
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, account.ID, nil, func() map[string]string {
		return map[string]string{
			"login_id":    account.LoginID,
			"remember_me": boolString(rememberMe),
			"mfa":         boolString(out.MFARequired),
		}
	})
	return out, nil
}

// mfaRequired fails closed: an unreadable enrollment counts as enabled.
func mfaRequired(ctx context.Context, accountID string, lookup func(context.Context, string) (bool, error), log *logger.Logger) bool {
	if lookup == nil {
		return false
	}
	enabled, err := lookup(ctx, accountID)
	if err != nil {
		log.WithContext(ctx).WithError(err).Warn("mfa lookup failed, requiring second factor", map[string]interface{}{"user_id": accountID})
		return true
	}
	return enabled
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
