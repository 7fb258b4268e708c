package procureauth

import (
	"context"
	"time"
)

// SetupMFA returns an enrollment preview for principalID. Nothing is stored;
// EnableMFA persists the secret once the user proves they can produce codes.
func (e *Engine) SetupMFA(ctx context.Context, principalID string) (*MFASetup, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.SetupMFA(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return &MFASetup{
		Secret:        res.Secret,
		OTPAuthURL:    res.OTPAuthURL,
		QRCodeDataURL: res.QRCodeDataURL,
		RecoveryCodes: res.RecoveryCodes,
	}, nil
}

// EnableMFA verifies code against secret and stores the enrollment with a
// fresh set of recovery codes.
func (e *Engine) EnableMFA(ctx context.Context, principalID, secret, code string) (*MFAEnableResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	codes, err := e.flows.EnableMFA(ctx, principalID, secret, code)
	if err != nil {
		return nil, err
	}
	return &MFAEnableResult{Enabled: true, RecoveryCodes: codes}, nil
}

// DisableMFA clears the enrollment. It succeeds when none exists.
func (e *Engine) DisableMFA(ctx context.Context, principalID string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.DisableMFA(ctx, principalID)
}

// VerifyMFA checks a TOTP code. A wrong code is (false, nil) until the
// failed-attempt budget is spent, then ErrMFARateLimited.
func (e *Engine) VerifyMFA(ctx context.Context, principalID, code string) (bool, error) {
	if e == nil || !e.flows.Initialized() {
		return false, ErrEngineNotReady
	}
	return e.flows.VerifyMFA(ctx, principalID, code)
}

// VerifyRecoveryCode consumes a recovery code. Each code works once, also
// under concurrent submission.
func (e *Engine) VerifyRecoveryCode(ctx context.Context, principalID, code string) (bool, error) {
	if e == nil || !e.flows.Initialized() {
		return false, ErrEngineNotReady
	}
	return e.flows.VerifyRecoveryCode(ctx, principalID, code)
}

// IssueMFAVerifiedToken mints the short-lived token the MFA guard accepts.
// Call it only after VerifyMFA or VerifyRecoveryCode returned true.
func (e *Engine) IssueMFAVerifiedToken(principalID string) (string, time.Time, error) {
	if e == nil || e.jwtManager == nil {
		return "", time.Time{}, ErrEngineNotReady
	}
	return e.jwtManager.CreateMFA(principalID)
}

func (e *Engine) MFAStatus(ctx context.Context, principalID string) (*MFAStatus, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	rec, err := e.flows.MFAStatus(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return &MFAStatus{
		Enabled:                rec.Enabled,
		LastUsed:               rec.LastUsedAt,
		RecoveryCodesRemaining: rec.RecoveryCodesRemaining,
	}, nil
}

// CheckMFA is the MFA guard for protected routes. It passes accounts
// without MFA and otherwise requires an MFA-verified token for p.
func (e *Engine) CheckMFA(ctx context.Context, p *Principal, mfaToken string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if p == nil || p.ID == "" {
		return ErrPrincipalNotFound
	}
	if err := e.flows.CheckMFA(ctx, p.ID, mfaToken); err != nil {
		e.emitAudit(ctx, auditEventMFAGuardDenied, false, p.ID, err, nil)
		return err
	}
	return nil
}
