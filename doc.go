// Package procureauth is the authentication and session-security core of
// the procurement backend: password verification, signed access and
// refresh tokens, TOTP second factor with single-use recovery codes, token
// revocation and the MFA guard.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// procureauth is the public surface. It exposes [Engine], [Builder],
// [Config], the store interfaces and value types. Flow orchestration, rate
// limiting and audit dispatch live under internal/ and are never exported.
// Persistence is supplied by the caller through [CredentialStore] and
// [MFAStore]; the store package provides a gorm implementation.
//
// # What this package must NOT do
//
//   - Return a more specific error than ErrInvalidCredentials from a failed
//     login, so responses do not reveal whether an account exists.
//   - Log or audit passwords, tokens, TOTP secrets or recovery codes.
//   - Import any sub-package that re-imports procureauth.
//
// # Performance contract
//
// ValidateAccess is the hot path. It verifies the signature locally and
// makes exactly one blacklist lookup. Login, Refresh and the MFA operations
// each make a bounded number of store round-trips.
package procureauth
