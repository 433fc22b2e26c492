package session

import "errors"

var (
	// ErrSessionNotFound is returned by stores when no row matches the session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidArgument is returned for empty tokens or user IDs on create.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
