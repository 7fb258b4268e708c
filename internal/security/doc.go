// Package security derives a read-only posture report from engine settings
// and lints it for weak but valid choices.
//
// # What this package must NOT do
//
//   - Import procureauth or mutate any configuration.
package security
