package auth

import "errors"

var (
	// ErrInvalidToken is returned for malformed tokens or bad signatures
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrExpired is returned when the token is past its validity window
	ErrExpired = errors.New("auth: token expired")

	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("auth: signing secret required")
)
