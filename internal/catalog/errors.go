package catalog

import "errors"

var (
	ErrTestNotFound = errors.New("catalog: test not found")
	// ErrSlotUnavailable is returned when a guarded decrement finds no remaining capacity.
	ErrSlotUnavailable = errors.New("catalog: no slots remaining")
	ErrNegativeSlot    = errors.New("catalog: slot must not be negative")
	ErrMissingName     = errors.New("catalog: name is required")
	ErrInvalidPrice    = errors.New("catalog: price must not be negative")
)
