package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/jwt"
)

// MFARecord is the flow-local enrollment view.
type MFARecord struct {
	Enabled                bool
	Secret                 string
	RecoveryCodesRemaining int
	RecoveryCodeHashes     []string
	LastUsedAt             *time.Time
}

// MFASetupResult is an unpersisted enrollment preview.
type MFASetupResult struct {
	Secret        string
	OTPAuthURL    string
	QRCodeDataURL string
	RecoveryCodes []string
}

// MFAMetrics carries metric IDs needed by the MFA flows.
type MFAMetrics struct {
	Setup              int
	Enabled            int
	Disabled           int
	VerifySuccess      int
	VerifyFailure      int
	RecoveryCodeUsed   int
	RecoveryCodeFailed int
	RateLimited        int
	GuardRejected      int
}

// MFAEvents carries audit event names used by the MFA flows.
type MFAEvents struct {
	Enabled        string
	Disabled       string
	VerifySuccess  string
	VerifyFailure  string
	RecoveryUsed   string
	RecoveryFailed string
}

// MFAErrors carries host-level sentinel errors used by the MFA flows.
type MFAErrors struct {
	EngineNotReady      error
	AlreadyEnabled      error
	NotConfigured       error
	InvalidMFAToken     error
	InvalidRecoveryCode error
	MFARequired         error
	RateLimited         error
	StoreUnavailable    error
	NotFound            error
}

// MFADeps captures enrollment, verification and guard dependencies.
type MFADeps struct {
	RecoveryCodeCount int
	Now               func() time.Time
	RandomIndex       func(int) (int, error)

	GetAccount          func(context.Context, string) (AccountRecord, error)
	GetMFA              func(context.Context, string) (MFARecord, error)
	EnableMFA           func(ctx context.Context, accountID, secret string, hashes []string, at time.Time) error
	DisableMFA          func(context.Context, string) error
	TouchMFA            func(context.Context, string, time.Time) error
	ConsumeRecoveryCode func(ctx context.Context, accountID, hash string, at time.Time) (bool, error)

	Enroll     func(account string) (secret, uri string, err error)
	QRCode     func(uri string) (string, error)
	VerifyCode func(code, secret string, now time.Time) (bool, error)
	ParseMFA   func(string) (*jwt.MFAClaims, error)

	CheckLimiter  func(context.Context, string) error
	RecordFailure func(context.Context, string) error
	ResetLimiter  func(context.Context, string) error
	IsRateLimited func(error) bool

	MetricInc func(int)
	EmitAudit AuditFunc
	Log       *logger.Logger

	Metrics MFAMetrics
	Events  MFAEvents
	Errors  MFAErrors
}

func normalizeMFADeps(deps *MFADeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RandomIndex == nil {
		deps.RandomIndex = cryptoRandomIndex
	}
	if deps.RecoveryCodeCount <= 0 {
		deps.RecoveryCodeCount = DefaultRecoveryCodes
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.CheckLimiter == nil {
		deps.CheckLimiter = func(context.Context, string) error { return nil }
	}
	if deps.RecordFailure == nil {
		deps.RecordFailure = func(context.Context, string) error { return nil }
	}
	if deps.ResetLimiter == nil {
		deps.ResetLimiter = func(context.Context, string) error { return nil }
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	deps.Log = orNop(deps.Log)
}

// unavailable classifies a store error as an outage. A missing account is
// not an outage and passes through unchanged.
func (deps *MFADeps) unavailable(err error) error {
	if errors.Is(err, deps.Errors.StoreUnavailable) || (deps.Errors.NotFound != nil && errors.Is(err, deps.Errors.NotFound)) {
		return err
	}
	return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
}

// RunSetupMFA generates a secret, its otpauth URI and QR image and a set of
// recovery codes. Nothing is persisted.
func RunSetupMFA(ctx context.Context, accountID string, deps MFADeps) (*MFASetupResult, error) {
	normalizeMFADeps(&deps)
	if deps.GetAccount == nil || deps.GetMFA == nil || deps.Enroll == nil || deps.QRCode == nil {
		return nil, deps.Errors.EngineNotReady
	}

	account, err := deps.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	current, err := deps.GetMFA(ctx, accountID)
	if err != nil {
		return nil, deps.unavailable(err)
	}
	if current.Enabled {
		return nil, deps.Errors.AlreadyEnabled
	}

	secret, uri, err := deps.Enroll(account.LoginID)
	if err != nil {
		return nil, err
	}
	qr, err := deps.QRCode(uri)
	if err != nil {
		return nil, err
	}
	codes, _, err := GenerateRecoveryCodes(deps.RecoveryCodeCount, deps.RandomIndex)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Setup)
	return &MFASetupResult{
		Secret:        secret,
		OTPAuthURL:    uri,
		QRCodeDataURL: qr,
		RecoveryCodes: codes,
	}, nil
}

// RunEnableMFA confirms that the caller's authenticator produces codes for
// secret, then persists the secret with freshly generated recovery codes.
// The plaintext codes are returned exactly once.
func RunEnableMFA(ctx context.Context, accountID, secret, code string, deps MFADeps) ([]string, error) {
	normalizeMFADeps(&deps)
	if deps.GetMFA == nil || deps.EnableMFA == nil || deps.VerifyCode == nil {
		return nil, deps.Errors.EngineNotReady
	}

	current, err := deps.GetMFA(ctx, accountID)
	if err != nil {
		return nil, deps.unavailable(err)
	}
	if current.Enabled {
		return nil, deps.Errors.AlreadyEnabled
	}

	now := deps.Now()
	ok, err := deps.VerifyCode(code, secret, now)
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.VerifyFailure)
		deps.EmitAudit(ctx, deps.Events.VerifyFailure, false, accountID, deps.Errors.InvalidMFAToken, func() map[string]string {
			return map[string]string{"stage": "enable"}
		})
		return nil, deps.Errors.InvalidMFAToken
	}

	codes, hashes, err := GenerateRecoveryCodes(deps.RecoveryCodeCount, deps.RandomIndex)
	if err != nil {
		return nil, err
	}
	if err := deps.EnableMFA(ctx, accountID, secret, hashes, now); err != nil {
		return nil, deps.unavailable(err)
	}

	deps.MetricInc(deps.Metrics.Enabled)
	deps.EmitAudit(ctx, deps.Events.Enabled, true, accountID, nil, nil)
	return codes, nil
}

// RunDisableMFA clears the enrollment. Repeating it is harmless.
func RunDisableMFA(ctx context.Context, accountID string, deps MFADeps) error {
	normalizeMFADeps(&deps)
	if deps.DisableMFA == nil {
		return deps.Errors.EngineNotReady
	}
	if err := deps.DisableMFA(ctx, accountID); err != nil {
		return err
	}
	if err := deps.ResetLimiter(ctx, accountID); err != nil {
		deps.Log.WithContext(ctx).WithError(err).Warn("mfa limiter reset failed", map[string]interface{}{"user_id": accountID})
	}
	deps.MetricInc(deps.Metrics.Disabled)
	deps.EmitAudit(ctx, deps.Events.Disabled, true, accountID, nil, nil)
	return nil
}

// RunVerifyMFA checks a TOTP code for an enrolled account. A wrong code is
// (false, nil) until the failure budget runs out, after which the limiter
// error is returned.
func RunVerifyMFA(ctx context.Context, accountID, code string, deps MFADeps) (bool, error) {
	normalizeMFADeps(&deps)
	if deps.GetMFA == nil || deps.VerifyCode == nil {
		return false, deps.Errors.EngineNotReady
	}

	if err := checkMFALimiter(ctx, accountID, &deps); err != nil {
		return false, err
	}

	rec, err := deps.GetMFA(ctx, accountID)
	if err != nil {
		return false, deps.unavailable(err)
	}
	if !rec.Enabled || rec.Secret == "" {
		return false, deps.Errors.NotConfigured
	}

	now := deps.Now()
	ok, err := deps.VerifyCode(code, rec.Secret, now)
	if err != nil {
		deps.Log.WithContext(ctx).WithError(err).Error("stored totp secret unusable", map[string]interface{}{"user_id": accountID})
		return false, deps.unavailable(err)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.VerifyFailure)
		deps.EmitAudit(ctx, deps.Events.VerifyFailure, false, accountID, deps.Errors.InvalidMFAToken, nil)
		return false, recordMFAFailure(ctx, accountID, &deps)
	}

	if deps.TouchMFA != nil {
		if err := deps.TouchMFA(ctx, accountID, now); err != nil {
			deps.Log.WithContext(ctx).WithError(err).Warn("mfa last-used update failed", map[string]interface{}{"user_id": accountID})
		}
	}
	_ = deps.ResetLimiter(ctx, accountID)
	deps.MetricInc(deps.Metrics.VerifySuccess)
	deps.EmitAudit(ctx, deps.Events.VerifySuccess, true, accountID, nil, nil)
	return true, nil
}

// RunVerifyRecoveryCode consumes one recovery code. When the enrollment
// carries its hashes the code is matched here first and a miss costs no
// write. The store performs the removal as a single conditional write, so
// among concurrent callers presenting the same code at most one succeeds.
func RunVerifyRecoveryCode(ctx context.Context, accountID, code string, deps MFADeps) (bool, error) {
	normalizeMFADeps(&deps)
	if deps.GetMFA == nil || deps.ConsumeRecoveryCode == nil {
		return false, deps.Errors.EngineNotReady
	}

	if err := checkMFALimiter(ctx, accountID, &deps); err != nil {
		return false, err
	}

	rec, err := deps.GetMFA(ctx, accountID)
	if err != nil {
		return false, deps.unavailable(err)
	}
	if !rec.Enabled || rec.RecoveryCodesRemaining == 0 {
		return false, deps.Errors.NotConfigured
	}

	hash := ""
	if rec.RecoveryCodeHashes != nil {
		if ok, idx := VerifyAndConsumeRecoveryCode(code, rec.RecoveryCodeHashes); ok {
			hash = rec.RecoveryCodeHashes[idx]
		}
	} else if canonical := CanonicalizeRecoveryCode(code); canonical != "" {
		hash = HashRecoveryCode(canonical)
	}

	consumed := false
	if hash != "" {
		consumed, err = deps.ConsumeRecoveryCode(ctx, accountID, hash, deps.Now())
		if err != nil {
			return false, deps.unavailable(err)
		}
	}
	if !consumed {
		deps.MetricInc(deps.Metrics.RecoveryCodeFailed)
		deps.EmitAudit(ctx, deps.Events.RecoveryFailed, false, accountID, deps.Errors.InvalidRecoveryCode, nil)
		return false, recordMFAFailure(ctx, accountID, &deps)
	}

	_ = deps.ResetLimiter(ctx, accountID)
	deps.MetricInc(deps.Metrics.RecoveryCodeUsed)
	deps.EmitAudit(ctx, deps.Events.RecoveryUsed, true, accountID, nil, func() map[string]string {
		return map[string]string{"remaining": fmt.Sprint(rec.RecoveryCodesRemaining - 1)}
	})
	return true, nil
}

// RunMFAStatus is a read-only enrollment lookup.
func RunMFAStatus(ctx context.Context, accountID string, deps MFADeps) (MFARecord, error) {
	normalizeMFADeps(&deps)
	if deps.GetMFA == nil {
		return MFARecord{}, deps.Errors.EngineNotReady
	}
	rec, err := deps.GetMFA(ctx, accountID)
	if err != nil {
		return MFARecord{}, deps.unavailable(err)
	}
	rec.Secret = ""
	rec.RecoveryCodeHashes = nil
	return rec, nil
}

// RunCheckMFA is the MFA guard. Accounts without an enabled enrollment
// pass. Enrolled accounts must present an MFA-verified token whose subject
// is the same account. An unreadable enrollment denies the request.
func RunCheckMFA(ctx context.Context, accountID, mfaToken string, deps MFADeps) error {
	normalizeMFADeps(&deps)
	if deps.GetMFA == nil || deps.ParseMFA == nil {
		return deps.Errors.EngineNotReady
	}

	rec, err := deps.GetMFA(ctx, accountID)
	if err != nil {
		deps.MetricInc(deps.Metrics.GuardRejected)
		return deps.unavailable(err)
	}
	if !rec.Enabled {
		return nil
	}
	if mfaToken == "" {
		deps.MetricInc(deps.Metrics.GuardRejected)
		return deps.Errors.MFARequired
	}

	claims, err := deps.ParseMFA(mfaToken)
	if err != nil || !claims.MFAVerified || claims.Subject != accountID {
		deps.MetricInc(deps.Metrics.GuardRejected)
		deps.Log.WithContext(ctx).Debug("mfa token rejected", map[string]interface{}{"user_id": accountID})
		return deps.Errors.InvalidMFAToken
	}
	return nil
}

func checkMFALimiter(ctx context.Context, accountID string, deps *MFADeps) error {
	if err := deps.CheckLimiter(ctx, accountID); err != nil {
		if deps.IsRateLimited(err) {
			deps.MetricInc(deps.Metrics.RateLimited)
			return deps.Errors.RateLimited
		}
		return deps.unavailable(err)
	}
	return nil
}

func recordMFAFailure(ctx context.Context, accountID string, deps *MFADeps) error {
	if err := deps.RecordFailure(ctx, accountID); err != nil {
		if deps.IsRateLimited(err) {
			deps.MetricInc(deps.Metrics.RateLimited)
			return deps.Errors.RateLimited
		}
		deps.Log.WithContext(ctx).WithError(err).Warn("mfa failure not recorded", map[string]interface{}{"user_id": accountID})
	}
	return nil
}
