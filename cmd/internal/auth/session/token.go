package session

import "gatekeep/cmd/security/token"

// GenerateSessionToken returns a fresh 160-bit token in lowercase, unpadded base32.
func GenerateSessionToken() (string, error) {
	return token.NewSessionToken()
}

// HashToken derives the session ID from a raw token: lowercase hex SHA-256.
func HashToken(tok string) string {
	return token.HashSHA256Hex(tok)
}
