// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (zerolog, channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//     It stamps the request id and keeps request-scoped context values for sinks.
//   - [Event]: structured audit record with timestamp, request id, type, user, IP and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine and flow functions decide that.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import procureauth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
