package analysis

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	tokenBytes = 32
	saltBytes  = 16
)

// NewCreatorToken generates the one-time ownership token and its salted
// digest. The raw token goes to the caller exactly once; only the digest
// is persisted, in "salt:hash" form.
func NewCreatorToken() (token, digest string, err error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating creator token: %w", err)
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generating token salt: %w", err)
	}
	token = hex.EncodeToString(raw)
	return token, hashToken(hex.EncodeToString(salt), token), nil
}

// VerifyCreatorToken checks a submitted token against a stored salted
// digest in constant time.
func VerifyCreatorToken(token, digest string) bool {
	salt, _, ok := strings.Cut(digest, ":")
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashToken(salt, token)), []byte(digest)) == 1
}

func hashToken(saltHex, token string) string {
	sum := sha256.Sum256([]byte(saltHex + token))
	return saltHex + ":" + hex.EncodeToString(sum[:])
}

// HashSession derives a stable, non-reversible session identifier for
// view tracking from whatever the transport uses as client identity.
func HashSession(identity string) string {
	if identity == "" {
		return ""
	}
	sum := sha256.Sum256([]byte("session:" + identity))
	return hex.EncodeToString(sum[:16])
}
