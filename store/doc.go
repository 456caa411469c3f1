// Package store defines the credential store contract consumed by the
// authentication pipeline.
//
// # Architecture boundaries
//
// The pipeline only sees [CredentialStore]. Adapters (memory, redisstore,
// sqlstore) own connection management and physical schema.
//
// # What this package must NOT do
//
//   - Import flowAuth or any adapter package.
//   - Interpret password digests or issue tokens.
package store
