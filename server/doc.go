// Package server is the gin HTTP surface of procureauth, mounted under /api.
//
// Every response body is the envelope {status, data?, error?{code, message}}.
// Tokens travel only in cookies: token (access), refresh_token (scoped to
// /api/auth) and csrf_token (readable by scripts, echoed in X-CSRF-Token).
//
// Route security is declared in one table in router.go and enforced by
// middleware.Pipeline. Engine errors become client codes through the single
// mapping table in errors.go.
package server
