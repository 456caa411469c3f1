// Package audit delivers pipeline audit events to sinks off the request path.
//
// # Components
//
//   - [Event]: one login or registration outcome with run, user and session
//     correlation fields.
//   - [Sink]: event consumer (slog, channel, JSON lines, no-op).
//   - [Dispatcher]: buffered relay that either drops or blocks when full.
//
// This package does not decide which events are emitted; the flows do.
package audit
