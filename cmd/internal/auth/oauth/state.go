package oauth

import (
	"golang.org/x/oauth2"

	"gatekeep/cmd/security/token"
)

const stateBytes = 32

// NewState returns a random OAuth state value.
func NewState() (string, error) {
	return token.Generate(stateBytes)
}

// NewVerifier returns a PKCE code verifier (RFC 7636).
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// CheckState compares the state echoed by the provider with the one stored
// for this browser. Both must be non-empty.
func CheckState(expected, got string) error {
	if expected == "" || got == "" || !token.SecureEqual(expected, got) {
		return ErrStateMismatch
	}
	return nil
}
