// Package security derives the security posture summary exposed by
// Engine.SecurityReport from a flat configuration snapshot.
package security
