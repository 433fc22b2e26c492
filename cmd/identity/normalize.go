package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeProvider canonicalizes an OAuth provider name ("GitHub" -> "github").
func NormalizeProvider(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func trimPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
