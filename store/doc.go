// Package store is the SQL-backed CredentialStore and MFAStore used by the
// procureauth server and CLI.
//
// Accounts live in login_accounts. Employees that predate it live in
// emp_accounts and can still sign in: Resolve looks at the current table
// first and falls back to the legacy one, and MigrateLegacyAccounts copies
// legacy rows forward.
//
// Recovery codes are stored one row per hash in mfa_recovery_codes.
// Consuming a code is a single conditional DELETE; the caller that sees
// RowsAffected == 1 is the only winner.
//
// # What this package must NOT do
//
//   - Delete an account row.
//   - Store plaintext recovery codes or return the MFA secret outside
//     GetMFA.
package store
