package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Characters kept by Normalize: word characters, whitespace, and common
// punctuation. Everything else is dropped before hashing so cosmetic
// variations of the same document fingerprint identically.
var (
	strippedChars = regexp.MustCompile(`[^\w\s.,;:!?'"()\-]`)
	spaceRuns     = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases, strips non-whitelisted characters, collapses
// whitespace runs to single spaces, and trims. Idempotent and pure.
func Normalize(text string) string {
	t := strings.ToLower(text)
	t = strippedChars.ReplaceAllString(t, "")
	t = spaceRuns.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Fingerprint returns the hex SHA-256 digest of the normalized text.
// This is the dedup key for both the cache and the durable store.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
