package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const tokenBytes = 32

// GenerateToken returns a high-entropy opaque token (32 random bytes,
// hex-encoded). Used for session identifiers and email verification tokens.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns a SHA-256 hash of the token string, hex-encoded.
// Used for storing verification tokens without storing the raw token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
