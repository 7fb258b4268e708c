package procureauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/procureauth/internal/audit"
	"github.com/MrEthical07/procureauth/internal/flows"
	"github.com/MrEthical07/procureauth/internal/limiters"
	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/jwt"
	"github.com/MrEthical07/procureauth/password"
)

// Engine is the authentication and MFA service. It is built once by
// Builder and safe for concurrent use.
type Engine struct {
	config        Config
	jwtManager    *jwt.Manager
	hasher        *password.Hasher
	totp          *totpManager
	credentials   CredentialStore
	mfaStore      MFAStore
	blacklist     TokenBlacklist
	blacklistKind string
	mfaLimiter    *limiters.MFALimiter
	audit         *audit.Dispatcher
	metrics       *Metrics
	log           *logger.Logger
	flows         flows.Service
	closers       []func()
}

// Close drains the audit queue and stops background sweepers.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	for _, c := range e.closers {
		c()
	}
	e.closers = nil
}

// AuditDropped reports events discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// HashPassword hashes plaintext with the configured algorithm.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(plaintext)
}

// Principal re-reads an account by id. Disabled accounts resolve to
// ErrPrincipalNotFound so a still-valid access token cannot outlive a
// deactivation on routes that call this.
func (e *Engine) Principal(ctx context.Context, id string) (*Principal, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}
	rec, err := e.credentials.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != AccountActive {
		return nil, ErrPrincipalNotFound
	}
	p := PrincipalFromRecord(rec)
	return &p, nil
}

// RecordCSRFRejection counts and audits a request refused by the CSRF
// guard. The HTTP layer calls it; the guard itself has no engine access.
func (e *Engine) RecordCSRFRejection(ctx context.Context, path string, err error) {
	if e == nil {
		return
	}
	e.metricInc(MetricCSRFRejected)
	e.emitAudit(ctx, auditEventCSRFRejected, false, "", err, func() map[string]string {
		return map[string]string{"path": path}
	})
}

func (e *Engine) newFlowService() flows.Service {
	return flows.New(flows.Deps{
		Login: flows.LoginDeps{
			GetByLoginID:  e.lookupByLoginID,
			RecordLogin:   e.credentials.RecordLogin,
			MFAEnabled:    e.mfaEnabled,
			CheckPassword: e.hasher.Check,
			BurnPassword:  e.hasher.Burn,
			Rehash:        e.passwordRehash(),
			IssueAccess:   e.issueAccess,
			IssueRefresh:  e.jwtManager.CreateRefresh,
			MetricInc:     e.flowMetricInc,
			EmitAudit:     e.emitAudit,
			Log:           e.log.WithComponent("login"),
			Metrics: flows.LoginMetrics{
				LoginSuccess:     int(MetricLoginSuccess),
				LoginFailure:     int(MetricLoginFailure),
				LoginMFARequired: int(MetricLoginMFARequired),
			},
			Events: flows.LoginEvents{
				LoginSuccess: auditEventLoginSuccess,
				LoginFailure: auditEventLoginFailure,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				InactiveAccount:    ErrInactiveAccount,
				NotFound:           ErrPrincipalNotFound,
			},
		},
		Refresh: flows.RefreshDeps{
			ParseRefresh: e.jwtManager.ParseRefresh,
			ClaimRefresh: e.blacklist.Claim,
			GetByID:      e.lookupByID,
			MFAEnabled:   e.mfaEnabled,
			IssueAccess:  e.issueAccess,
			IssueRefresh: e.jwtManager.CreateRefresh,
			MetricInc:    e.flowMetricInc,
			EmitAudit:    e.emitAudit,
			Log:          e.log.WithComponent("refresh"),
			Metrics: flows.RefreshMetrics{
				RefreshSuccess:       int(MetricRefreshSuccess),
				RefreshFailure:       int(MetricRefreshFailure),
				RefreshReuseDetected: int(MetricRefreshReuseDetected),
			},
			Events: flows.RefreshEvents{
				RefreshSuccess: auditEventRefreshSuccess,
				RefreshFailure: auditEventRefreshInvalid,
			},
			Errors: flows.RefreshErrors{
				EngineNotReady:      ErrEngineNotReady,
				InvalidRefreshToken: ErrInvalidRefreshToken,
				Reuse:               errRefreshReuse,
			},
		},
		Logout: flows.LogoutDeps{
			ParseAccess:  e.jwtManager.ParseAccess,
			ParseRefresh: e.jwtManager.ParseRefresh,
			Revoke:       e.blacklist.Add,
			MetricInc:    e.flowMetricInc,
			EmitAudit:    e.emitAudit,
			Log:          e.log.WithComponent("logout"),
			LogoutMetric: int(MetricLogout),
			LogoutEvent:  auditEventLogout,
			Errors: flows.LogoutErrors{
				EngineNotReady:       ErrEngineNotReady,
				BlacklistUnavailable: ErrBlacklistUnavailable,
			},
		},
		Validate: flows.ValidateDeps{
			ParseAccess: e.jwtManager.ParseAccess,
			IsRevoked:   e.blacklist.Contains,
			Observe:     e.observeValidate(),
			Errors: flows.ValidateErrors{
				EngineNotReady:       ErrEngineNotReady,
				TokenRevoked:         ErrTokenRevoked,
				BlacklistUnavailable: ErrBlacklistUnavailable,
			},
		},
		MFA: flows.MFADeps{
			RecoveryCodeCount:   e.config.TOTP.RecoveryCodeCount,
			GetAccount:          e.lookupByID,
			GetMFA:              e.mfaRecord,
			EnableMFA:           e.mfaStore.EnableMFA,
			DisableMFA:          e.mfaStore.DisableMFA,
			TouchMFA:            e.mfaStore.TouchMFA,
			ConsumeRecoveryCode: e.mfaStore.ConsumeRecoveryCode,
			Enroll:              e.enrollTOTP,
			QRCode:              QRCodeDataURL,
			VerifyCode:          e.totp.VerifyCode,
			ParseMFA:            e.jwtManager.ParseMFA,
			CheckLimiter:        e.mfaLimiter.Check,
			RecordFailure:       e.mfaLimiter.RecordFailure,
			ResetLimiter:        e.mfaLimiter.Reset,
			IsRateLimited: func(err error) bool {
				return errors.Is(err, limiters.ErrMFARateLimited)
			},
			MetricInc: e.flowMetricInc,
			EmitAudit: e.emitAudit,
			Log:       e.log.WithComponent("mfa"),
			Metrics: flows.MFAMetrics{
				Setup:              int(MetricMFASetup),
				Enabled:            int(MetricMFAEnabled),
				Disabled:           int(MetricMFADisabled),
				VerifySuccess:      int(MetricMFAVerifySuccess),
				VerifyFailure:      int(MetricMFAVerifyFailure),
				RecoveryCodeUsed:   int(MetricRecoveryCodeUsed),
				RecoveryCodeFailed: int(MetricRecoveryCodeFailed),
				RateLimited:        int(MetricMFARateLimited),
				GuardRejected:      int(MetricMFAGuardRejected),
			},
			Events: flows.MFAEvents{
				Enabled:        auditEventMFAEnabled,
				Disabled:       auditEventMFADisabled,
				VerifySuccess:  auditEventMFASuccess,
				VerifyFailure:  auditEventMFAFailure,
				RecoveryUsed:   auditEventRecoveryUsed,
				RecoveryFailed: auditEventRecoveryFailed,
			},
			Errors: flows.MFAErrors{
				EngineNotReady:      ErrEngineNotReady,
				AlreadyEnabled:      ErrMFAAlreadyEnabled,
				NotConfigured:       ErrMFANotConfigured,
				InvalidMFAToken:     ErrInvalidMFAToken,
				InvalidRecoveryCode: ErrInvalidRecoveryCode,
				MFARequired:         ErrMFARequired,
				RateLimited:         ErrMFARateLimited,
				StoreUnavailable:    ErrMFAStoreUnavailable,
				NotFound:            ErrPrincipalNotFound,
			},
		},
	})
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) observeValidate() func(time.Duration) {
	if !e.metrics.LatencyEnabled() {
		return nil
	}
	return func(d time.Duration) {
		e.metrics.Observe(MetricValidateLatency, d)
	}
}

func (e *Engine) lookupByLoginID(ctx context.Context, loginID string) (flows.AccountRecord, error) {
	rec, err := e.credentials.GetByLoginID(ctx, loginID)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toAccountRecord(rec), nil
}

func (e *Engine) lookupByID(ctx context.Context, id string) (flows.AccountRecord, error) {
	rec, err := e.credentials.GetByID(ctx, id)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toAccountRecord(rec), nil
}

// passwordRehash returns nil unless the credential store can replace hashes.
func (e *Engine) passwordRehash() func(context.Context, string, string, string) (bool, error) {
	updater, ok := e.credentials.(PasswordRehasher)
	if !ok {
		return nil
	}
	return func(ctx context.Context, accountID, password, hash string) (bool, error) {
		if !e.hasher.NeedsRehash(hash) {
			return false, nil
		}
		fresh, err := e.hasher.Hash(password)
		if err != nil {
			return false, err
		}
		if err := updater.UpdatePasswordHash(ctx, accountID, hash, fresh); err != nil {
			return false, err
		}
		return true, nil
	}
}

func (e *Engine) mfaEnabled(ctx context.Context, accountID string) (bool, error) {
	m, err := e.mfaStore.GetMFA(ctx, accountID)
	if err != nil {
		return false, err
	}
	return m.Enabled, nil
}

func (e *Engine) mfaRecord(ctx context.Context, accountID string) (flows.MFARecord, error) {
	m, err := e.mfaStore.GetMFA(ctx, accountID)
	if err != nil {
		return flows.MFARecord{}, err
	}
	return flows.MFARecord{
		Enabled:                m.Enabled,
		Secret:                 m.Secret,
		RecoveryCodesRemaining: m.RecoveryCodesRemaining,
		RecoveryCodeHashes:     m.RecoveryCodeHashes,
		LastUsedAt:             m.LastUsedAt,
	}, nil
}

func (e *Engine) issueAccess(a flows.AccountRecord) (string, time.Time, error) {
	return e.jwtManager.CreateAccess(a.ID, a.LoginID, a.Role, a.TenantID)
}

func (e *Engine) enrollTOTP(account string) (string, string, error) {
	key, err := e.totp.Enroll(account)
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func toAccountRecord(rec CredentialRecord) flows.AccountRecord {
	return flows.AccountRecord{
		ID:           rec.ID,
		LoginID:      rec.LoginID,
		PasswordHash: rec.PasswordHash,
		Role:         rec.Role,
		TenantID:     rec.TenantID,
		ProfileID:    rec.ProfileID,
		Active:       rec.Status == AccountActive,
	}
}

func principalFromAccount(a flows.AccountRecord) Principal {
	return Principal{
		ID:        a.ID,
		LoginID:   a.LoginID,
		Role:      a.Role,
		TenantID:  a.TenantID,
		ProfileID: a.ProfileID,
	}
}

func loginResultFromTokens(t *flows.IssuedTokens) *LoginResult {
	return &LoginResult{
		AccessToken:      t.AccessToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshToken:     t.RefreshToken,
		RefreshExpiresAt: t.RefreshExpiresAt,
		Principal:        principalFromAccount(t.Account),
		MFARequired:      t.MFARequired,
	}
}
