package users

import "errors"

var (
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering an existing email
	ErrEmailTaken = errors.New("user already exists")

	ErrMissingEmail  = errors.New("email is required")
	ErrInvalidEmail  = errors.New("email is invalid")
	ErrInvalidStatus = errors.New("status must be active or blocked")
)
