// Package flows contains pure-function orchestrators for the Engine's login
// and registration pipelines.
//
// RunLogin and RunRegister accept a typed dependency struct and return a
// result carrying the full seven-step trace. Every side effect goes through a
// dependency closure, so each stage ordering rule can be tested with fakes.
//
// # Architecture boundaries
//
// Flows coordinate the credential store, password hasher, token issuer,
// audit dispatcher and metrics. They do NOT own any of these resources.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import flowAuth (to avoid import cycles).
//   - Perform I/O directly.
package flows
