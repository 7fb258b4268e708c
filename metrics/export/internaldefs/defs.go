package internaldefs

import (
	"github.com/MrEthical07/procureauth"
)

// CounterDef binds a MetricID to its Prometheus name and to the OTel family
// instrument and outcome attribute it is reported under.
type CounterDef struct {
	ID      procureauth.MetricID
	Name    string
	Help    string
	Family  string
	Outcome string
}

// HistogramDef binds a latency MetricID to its exported names.
type HistogramDef struct {
	ID     procureauth.MetricID
	Name   string
	Help   string
	Family string
}

// FamilyDef is one OTel instrument grouping related counters.
type FamilyDef struct {
	Name string
	Help string
}

const (
	FamilyLogin      = "procureauth.login"
	FamilyRefresh    = "procureauth.refresh"
	FamilySession    = "procureauth.session"
	FamilyEnrollment = "procureauth.mfa.enrollment"
	FamilyMFAVerify  = "procureauth.mfa.verify"
	FamilyRejected   = "procureauth.guard.rejected"
)

// Families lists the OTel counter instruments in export order.
var Families = []FamilyDef{
	{Name: FamilyLogin, Help: "Login attempts by outcome."},
	{Name: FamilyRefresh, Help: "Refresh rotations by outcome."},
	{Name: FamilySession, Help: "Session terminations and revoked-token rejections."},
	{Name: FamilyEnrollment, Help: "MFA enrollment changes."},
	{Name: FamilyMFAVerify, Help: "Second-factor verifications by method and outcome."},
	{Name: FamilyRejected, Help: "Requests rejected by a route guard."},
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{procureauth.MetricLoginSuccess, "procureauth_login_success_total", "Successful login attempts.", FamilyLogin, "success"},
	{procureauth.MetricLoginFailure, "procureauth_login_failure_total", "Failed login attempts.", FamilyLogin, "failure"},
	{procureauth.MetricLoginMFARequired, "procureauth_login_mfa_required_total", "Logins that require a second factor.", FamilyLogin, "mfa_required"},
	{procureauth.MetricRefreshSuccess, "procureauth_refresh_success_total", "Successful refresh rotations.", FamilyRefresh, "success"},
	{procureauth.MetricRefreshFailure, "procureauth_refresh_failure_total", "Rejected refresh attempts.", FamilyRefresh, "failure"},
	{procureauth.MetricRefreshReuseDetected, "procureauth_refresh_reuse_detected_total", "Refresh tokens presented after rotation.", FamilyRefresh, "reuse_detected"},
	{procureauth.MetricLogout, "procureauth_logout_total", "Logout operations.", FamilySession, "logout"},
	{procureauth.MetricTokenRevoked, "procureauth_token_revoked_total", "Access tokens rejected by the blacklist.", FamilySession, "token_revoked"},
	{procureauth.MetricMFASetup, "procureauth_mfa_setup_total", "MFA enrollment previews generated.", FamilyEnrollment, "setup"},
	{procureauth.MetricMFAEnabled, "procureauth_mfa_enabled_total", "MFA enrollments confirmed.", FamilyEnrollment, "enabled"},
	{procureauth.MetricMFADisabled, "procureauth_mfa_disabled_total", "MFA enrollments removed.", FamilyEnrollment, "disabled"},
	{procureauth.MetricMFAVerifySuccess, "procureauth_mfa_verify_success_total", "Accepted TOTP codes.", FamilyMFAVerify, "totp_success"},
	{procureauth.MetricMFAVerifyFailure, "procureauth_mfa_verify_failure_total", "Rejected TOTP codes.", FamilyMFAVerify, "totp_failure"},
	{procureauth.MetricRecoveryCodeUsed, "procureauth_recovery_code_used_total", "Recovery codes consumed.", FamilyMFAVerify, "recovery_used"},
	{procureauth.MetricRecoveryCodeFailed, "procureauth_recovery_code_failed_total", "Rejected recovery codes.", FamilyMFAVerify, "recovery_failed"},
	{procureauth.MetricMFARateLimited, "procureauth_mfa_rate_limited_total", "Second-factor attempts refused by the limiter.", FamilyMFAVerify, "rate_limited"},
	{procureauth.MetricMFAGuardRejected, "procureauth_mfa_guard_rejected_total", "Requests rejected by the MFA guard.", FamilyRejected, "mfa"},
	{procureauth.MetricCSRFRejected, "procureauth_csrf_rejected_total", "Requests rejected by the CSRF guard.", FamilyRejected, "csrf"},
}

// HistogramDefs lists latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: procureauth.MetricValidateLatency, Name: "procureauth_validate_latency_seconds", Help: "Access token validation latency.", Family: "procureauth.validate.latency"},
}

// HistogramBounds are the upper bounds in seconds, matching the engine's
// millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
