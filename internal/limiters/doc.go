// Package limiters provides domain-specific attempt counters layered beneath
// the per-route budgets in internal/rate.
//
// [MFALimiter] counts consecutive failed TOTP and recovery-code attempts per
// principal and locks the second factor for a cooldown once the threshold is
// reached. A successful verification resets the counter.
//
// All methods are nil-safe: a nil *MFALimiter never limits.
//
// # What this package must NOT do
//
//   - Import procureauth or any sibling internal package.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
