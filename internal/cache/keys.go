package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key derives a stable, collision-resistant cache key from a namespace
// prefix and the semantic inputs of the cached computation. Inputs are
// normalized (trimmed, lowercased) so trivially different spellings of the
// same prompt hit the same entry, then hashed so keys have fixed length and
// never leak raw user input.
func Key(prefix string, parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(part))))
		h.Write([]byte{0}) // separator so ("ab","c") != ("a","bc")
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

// GenerationKey is the key for a form generation result.
func GenerationKey(prompt, lang string) string {
	return Key("form_gen", prompt, lang)
}

// APIResponseKey is the key for a computed API response.
func APIResponseKey(endpoint string, params ...string) string {
	return Key("api:"+endpoint, params...)
}

// UserPrefix is the key prefix under which all of a user's cached state
// lives, making per-user invalidation a single DeletePrefix call.
func UserPrefix(userID string) string {
	return "user:" + userID + ":"
}
