// Package prometheus renders procureauth counters in the Prometheus text
// exposition format.
//
// Counter names are prefixed procureauth_ and suffixed _total; the single
// histogram is procureauth_validate_latency_seconds. Nothing is registered
// in a global registry, callers mount Handler or GinHandler.
package prometheus
