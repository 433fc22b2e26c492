package oauth

import "errors"

var (
	ErrUnknownProvider = errors.New("oauth: unknown provider")
	ErrStateMismatch   = errors.New("oauth: state mismatch")
	ErrExchange        = errors.New("oauth: code exchange failed")
	ErrProfile         = errors.New("oauth: profile fetch failed")
	ErrConfig          = errors.New("oauth: invalid configuration")
)
