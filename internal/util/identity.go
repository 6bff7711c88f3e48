package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// IdentityHasher derives stable pseudonymous tokens from resident and
// business registration numbers. Raw numbers are never stored; only
// the keyed hash leaves this package.
type IdentityHasher struct {
	key []byte
}

func NewIdentityHasher(key string) *IdentityHasher {
	return &IdentityHasher{key: []byte(key)}
}

// normalizeRRN strips the formatting hyphen so "900101-1234567" and
// "9001011234567" hash identically.
func normalizeRRN(rrn string) string {
	return strings.ReplaceAll(strings.TrimSpace(rrn), "-", "")
}

// HashRRN returns the lowercase hex HMAC-SHA256 of the normalized
// registration number.
func (h *IdentityHasher) HashRRN(rrn string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(normalizeRRN(rrn)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyRRN compares a raw registration number against a stored token
// in constant time.
func (h *IdentityHasher) VerifyRRN(rrn, token string) bool {
	computed := h.HashRRN(rrn)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(token)) == 1
}

// CacheFragment returns the short token prefix used in cache keys.
func CacheFragment(token string) string {
	if len(token) <= 16 {
		return token
	}
	return token[:16]
}
