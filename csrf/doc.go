// Package csrf implements a stateless double-submit cookie guard.
//
// The guard keeps no server-side state. A random token is written to a
// cookie the browser script can read, and unsafe requests must echo the
// same value in a header. Successful validation rotates the token.
package csrf
