// Package blacklist records access and refresh tokens that were invalidated
// before their natural expiry.
//
// Tokens are stored by SHA-256 fingerprint, never raw. Every entry carries
// the token's own expiry and is irrelevant afterwards, so no backend grows
// without bound.
//
//   - [Redis] keeps entries with a TTL equal to the remaining token lifetime
//     and is visible to every instance sharing the Redis deployment.
//   - [Gorm] keeps entries in a revoked_tokens table for deployments that
//     have a database but no Redis; [Gorm.Sweep] purges expired rows.
//   - [Memory] keeps entries in process memory with lazy eviction and a
//     periodic sweep. It is only correct for single-instance deployments:
//     a token revoked on one instance stays valid on every other.
package blacklist
