// Package jwt signs and verifies the bearer tokens handed out after a
// successful login when the signed token format is selected.
package jwt
