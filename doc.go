// Package flowAuth authenticates users against a credential store and
// records every login and registration as an ordered seven-step trace.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Each call owns its own trace; the
// credential store is the only shared mutable state and is responsible for
// atomic email uniqueness.
//
// # Architecture boundaries
//
// flowAuth is the public surface. It exposes [Engine], [Builder], [Config]
// and the request/result types. Stage ordering lives in internal/flows and
// is driven entirely through closures wired here, so the pipelines can be
// tested without any backend.
//
// # Results
//
// [Engine.Login] and [Engine.Register] always return a non-nil result whose
// Steps hold indices 1..7 without gaps, on success and on every error path.
// Use [StatusCode] and [SafeMessage] to map errors onto a transport.
//
// # What this package must NOT do
//
//   - Log passwords, digests or tokens.
//   - Reveal whether an email exists through login status codes or messages.
//   - Depend on pacing for correctness: a [Pacer] only delays, it never skips work.
package flowAuth
