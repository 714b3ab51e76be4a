package bookings

import (
	"strings"
	"time"
)

// Status of a reservation. Canceled is terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusCanceled Status = "Canceled"
)

// Booking is a patient's reservation against a catalog test.
type Booking struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	TestID    string    `json:"testId"`
	TestName  string    `json:"testName,omitempty"`
	Price     float64   `json:"price"`
	Date      string    `json:"date,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateBookingRequest is the patient payload for POST /bookings.
type CreateBookingRequest struct {
	TestID string `json:"testId"`
	Date   string `json:"date"`
}

func (r *CreateBookingRequest) Validate() error {
	r.TestID = strings.TrimSpace(r.TestID)
	r.Date = strings.TrimSpace(r.Date)
	if r.TestID == "" {
		return ErrMissingTest
	}
	return nil
}
