package procureauth

import "github.com/MrEthical07/procureauth/internal/security"

type (
	SecurityReport   = security.Report
	SecurityWarning  = security.Warning
	SecurityWarnings = security.Warnings
)

// SecurityReport describes the posture of the built engine.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:  e.config.JWT.SigningMethod,
		AccessTTL:         e.config.JWT.AccessTTL,
		RefreshTTL:        e.config.JWT.RefreshTTL,
		MFATTL:            e.config.JWT.MFATTL,
		PasswordAlgorithm: e.config.Password.Algorithm,
		BcryptCost:        e.config.Password.BcryptCost,
		BlacklistBackend:  e.blacklistKind,
		MFAMaxAttempts:    e.config.MFA.MaxFailedAttempts,
		MFACooldown:       e.config.MFA.Cooldown,
		RecoveryCodes:     e.config.TOTP.RecoveryCodeCount,
		AuditEnabled:      e.config.Audit.Enabled,
		AuditDropIfFull:   e.config.Audit.DropIfFull,
		MetricsEnabled:    e.config.Metrics.Enabled,
	})
}

// SecurityWarnings lints the engine's settings. An empty result means
// nothing weaker than production defaults was found.
func (e *Engine) SecurityWarnings() SecurityWarnings {
	return security.Lint(e.SecurityReport())
}
