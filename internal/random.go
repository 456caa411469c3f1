package internal

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	sessionIDPrefix = "session_"
	tokenPrefix     = "jwt_"

	sessionIDRawSize = 16
	tokenRawSize     = 32
)

func randomHex(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// NewSessionID returns "session_" followed by 32 lowercase hex characters.
func NewSessionID() (string, error) {
	h, err := randomHex(sessionIDRawSize)
	if err != nil {
		return "", err
	}
	return sessionIDPrefix + h, nil
}

// NewBearerToken returns an opaque "jwt_" token carrying 256 bits of entropy.
func NewBearerToken() (string, error) {
	h, err := randomHex(tokenRawSize)
	if err != nil {
		return "", err
	}
	return tokenPrefix + h, nil
}

// NewTokenID returns 256 random bits in hex, used as a JWT jti.
func NewTokenID() (string, error) {
	return randomHex(tokenRawSize)
}

// NewRunID identifies one pipeline run in logs and audit events.
func NewRunID() string {
	return uuid.NewString()
}
