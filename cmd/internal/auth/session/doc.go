// Package session implements gatekeep's opaque-token sessions.
//
// A session token is 20 random bytes in lowercase base32. It goes to the
// client once; the store only ever sees SHA-256(token) as lowercase hex, which
// doubles as the session ID.
//
// Validation is lazy and two-tiered: a session dies ExtendTime after its last
// renewal, and any access in the trailing RefreshPeriod of that lifetime
// pushes the expiry to now+ExtendTime. Expired and orphaned rows are deleted
// when they are next presented; nothing sweeps in the background.
//
// Transport (cookies, HTTP) lives in package api.
package session
