// Package password implements password digests and verification.
//
// # Output formats
//
// Argon2id digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy digests are the lowercase hex SHA-256 of the raw password bytes
// (64 characters, unsalted). They are kept for bit compatibility with
// existing records and are a known weakness: [Hasher.NeedsUpgrade] reports
// them so the caller can re-hash after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// confirmation) is enforced by the pipeline.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive digests.
//   - Import any other flowAuth package.
//   - Log plaintext passwords or digests.
package password
