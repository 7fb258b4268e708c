// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunEnableMFA, ...) accepts a
// typed dependency struct of plain functions and returns results without
// side effects beyond those dependencies. The Engine builds the structs once
// at construction and delegates to them, which keeps the Engine thin and lets
// tests drive a flow with hand-written fakes.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import procureauth (to avoid import cycles).
//   - Perform I/O directly; stores, codecs and limiters are reached only
//     through the dependency functions.
package flows
