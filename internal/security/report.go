package security

import (
	"sort"
	"time"
)

// Report summarizes the security-relevant posture of a built engine.
type Report struct {
	SigningAlgorithm  string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	MFATTL            time.Duration
	PasswordAlgorithm string
	BcryptCost        int
	BlacklistBackend  string
	BlacklistShared   bool
	MFAMaxAttempts    int
	MFACooldown       time.Duration
	RecoveryCodes     int
	AuditEnabled      bool
	AuditMayDrop      bool
	MetricsEnabled    bool
}

type ReportInput struct {
	SigningAlgorithm  string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	MFATTL            time.Duration
	PasswordAlgorithm string
	BcryptCost        int
	BlacklistBackend  string
	MFAMaxAttempts    int
	MFACooldown       time.Duration
	RecoveryCodes     int
	AuditEnabled      bool
	AuditDropIfFull   bool
	MetricsEnabled    bool
}

func BuildReport(input ReportInput) Report {
	return Report{
		SigningAlgorithm:  input.SigningAlgorithm,
		AccessTTL:         input.AccessTTL,
		RefreshTTL:        input.RefreshTTL,
		MFATTL:            input.MFATTL,
		PasswordAlgorithm: input.PasswordAlgorithm,
		BcryptCost:        input.BcryptCost,
		BlacklistBackend:  input.BlacklistBackend,
		BlacklistShared:   input.BlacklistBackend != "memory",
		MFAMaxAttempts:    input.MFAMaxAttempts,
		MFACooldown:       input.MFACooldown,
		RecoveryCodes:     input.RecoveryCodes,
		AuditEnabled:      input.AuditEnabled,
		AuditMayDrop:      input.AuditEnabled && input.AuditDropIfFull,
		MetricsEnabled:    input.MetricsEnabled,
	}
}

// Warning is one lint finding. Code is stable and safe to match on.
type Warning struct {
	Code    string
	Message string
}

type Warnings []Warning

func (ws Warnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	sort.Strings(out)
	return out
}

func (ws Warnings) Has(code string) bool {
	for _, w := range ws {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Lint flags settings that are valid but weaker than a production
// deployment should run with.
func Lint(r Report) Warnings {
	var ws Warnings
	add := func(code, msg string) {
		ws = append(ws, Warning{Code: code, Message: msg})
	}

	if r.AccessTTL > 24*time.Hour {
		add("access_ttl_long", "access tokens outlive a working day")
	}
	if r.RefreshTTL > 90*24*time.Hour {
		add("refresh_ttl_long", "refresh tokens live longer than 90 days")
	}
	if r.PasswordAlgorithm == "bcrypt" && r.BcryptCost < 10 {
		add("bcrypt_cost_low", "bcrypt cost below 10")
	}
	if !r.BlacklistShared {
		add("blacklist_process_local", "revocations are not shared across instances")
	}
	if r.MFAMaxAttempts > 10 {
		add("mfa_attempts_high", "more than 10 second-factor attempts allowed per cooldown")
	}
	if r.MFATTL > 10*time.Minute {
		add("mfa_ttl_long", "mfa-verified tokens live longer than 10 minutes")
	}
	if !r.AuditEnabled {
		add("audit_disabled", "security events are not audited")
	}
	return ws
}
