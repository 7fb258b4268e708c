// Package jwt signs and verifies the three token kinds used by procureauth:
// access, refresh and MFA-verified assertions. Each kind has its own key
// material and a "typ" claim, and expiry is enforced without leeway.
package jwt
