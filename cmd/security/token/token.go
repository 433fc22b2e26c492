package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// SessionTokenBytes is the entropy of a session token (160 bits).
	SessionTokenBytes = 20

	maxTokenBytes = 64
)

// lowerBase32 is the RFC 4648 alphabet in lower case, without padding.
var lowerBase32 = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Generate returns nBytes of crypto/rand output encoded as lowercase, unpadded base32.
func Generate(nBytes int) (string, error) {
	if nBytes <= 0 || nBytes > maxTokenBytes {
		return "", ErrTokenSize
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomFailed, err)
	}
	return lowerBase32.EncodeToString(b), nil
}

// NewSessionToken returns a fresh 20-byte session token (32 base32 chars).
func NewSessionToken() (string, error) {
	return Generate(SessionTokenBytes)
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SecureEqual compares two non-empty strings in constant time.
func SecureEqual(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
