package identity

import (
	"time"

	"gatekeep/cmd/identity/ids"
)

// NewUserID returns a new ULID (26-char string) for a user row.
func NewUserID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
