package payments

import "errors"

var (
	ErrInvalidAmount = errors.New("payments: amount must be positive")
	ErrMissingEmail  = errors.New("payments: email is required")
	ErrMissingTest   = errors.New("payments: testId is required")
	// ErrDuplicatePayment means the transaction id was already committed.
	ErrDuplicatePayment = errors.New("payments: transaction already recorded")
	// ErrPartialCommit means a write failed after an earlier one succeeded; nothing was kept.
	ErrPartialCommit   = errors.New("payments: commit aborted")
	ErrGateway         = errors.New("payments: gateway request failed")
	ErrChargeMismatch  = errors.New("payments: charge does not match payment")
	ErrRequestInFlight = errors.New("payments: request with this idempotency key is in progress")
	ErrTooManyIntents  = errors.New("payments: too many payment attempts")
)
