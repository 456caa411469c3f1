// Package middleware provides echo middleware for the flowAuth HTTP server.
//
// # Middleware
//
//   - [Recovery] turns handler panics into a 500 and logs the stack.
//   - [RequestLogger] logs one structured line per request.
//   - [CORS] answers cross-origin requests from an allow-list.
//   - [RequireBearer] verifies a signed bearer token through Engine.ParseToken
//     and stores the claims on the echo context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse
// or mint tokens itself and never talks to a credential store.
package middleware
