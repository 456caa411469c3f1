package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const legacyDigestLen = sha256.Size * 2

// LegacyDigest returns the unsalted lowercase hex SHA-256 of password.
func LegacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyLegacy reports whether LegacyDigest(password) equals digest exactly.
func VerifyLegacy(password, digest string) bool {
	computed := LegacyDigest(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// IsLegacyDigest reports whether digest has the legacy SHA-256 hex shape.
func IsLegacyDigest(digest string) bool {
	if len(digest) != legacyDigestLen {
		return false
	}
	for i := 0; i < len(digest); i++ {
		c := digest[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
