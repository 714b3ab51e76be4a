package bookings

import "errors"

var (
	ErrBookingNotFound = errors.New("bookings: booking not found")
	ErrAlreadyCanceled = errors.New("bookings: booking already canceled")
	ErrMissingTest     = errors.New("bookings: testId is required")
	ErrNotOwner        = errors.New("bookings: booking belongs to another user")
)
