package token

import "errors"

// Public, stable errors for callers.
var (
	ErrTokenSize    = errors.New("token size out of range")
	ErrRandomFailed = errors.New("random source failed")
)
