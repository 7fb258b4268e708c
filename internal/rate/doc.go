// Package rate provides the per-route request budgets evaluated by the HTTP
// pipeline.
//
// # Window semantics
//
// [Redis] uses fixed-window counters: INCR + conditional EXPIRE on the first
// hit. Keys are "rl:" + the caller-supplied key (route + client address).
//
// [Local] uses golang.org/x/time/rate token buckets holding Limit tokens and
// refilling at Limit per Window. Budgets are per process; use it only when a
// deployment runs a single instance.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the procureauth module.
package rate
