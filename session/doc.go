// Package session persists login sessions in Redis using a compact binary
// encoding.
//
// Each session is stored under "<prefix>:sess:<session id>" with a TTL equal
// to its remaining lifetime. A per-user set under "<prefix>:usess:<user id>"
// indexes session ids and expires with the user's newest session.
//
// This package does not issue tokens or decide whether a login is valid.
package session
