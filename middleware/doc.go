// Package middleware holds the gin middleware for the procureauth HTTP
// surface.
//
// # Route pipeline
//
// Every route is declared once as a [Route]. [Pipeline.Handler] turns that
// declaration into a single gin handler that runs, in order:
//
//  1. the per-route rate limit (client IP keyed),
//  2. the CSRF guard, which validates unsafe requests to non-exempt paths
//     and mints a cookie for the rest ([Pipeline.Verify] keeps
//     RequiresCSRF in step with its exemption list),
//  3. access-token validation from the token cookie when RequiresAuth is set,
//  4. the MFA guard reading X-MFA-Token when RequiresMFA is set.
//
// Any rejection goes through the configured AbortFunc so the server can
// render its own envelope.
//
// # Request plumbing
//
//   - [RequestID] echoes or mints X-Request-Id.
//   - [RequestLogger] logs one line per request, skipping health checks.
//   - [Recovery] turns a panic into a 500 through the AbortFunc.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the engine).
//   - Decide anything beyond pass/reject from the engine and the CSRF guard.
package middleware
