// Package token provides session token primitives for gatekeep.
//
// It is the single source of truth for how session tokens are minted and how
// they are turned into storage identifiers.
//
// Design goals:
// - Tokens are random bytes rendered as lowercase, unpadded base32.
// - The stored identifier is SHA-256(token) as 64 lowercase hex chars.
// - The plain token is handed to the client once and never persisted.
package token
