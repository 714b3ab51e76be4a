package payments

import (
	"math"
	"strings"
	"time"

	"github.com/wolfman30/diagnostic-booking-api/internal/results"
)

// Payment is the immutable record of one successful checkout.
type Payment struct {
	ID            string    `json:"_id"`
	Email         string    `json:"email"`
	TestID        string    `json:"testId"`
	TestName      string    `json:"testName,omitempty"`
	Amount        float64   `json:"amount"`
	AmountCents   int64     `json:"amountCents"`
	Slot          int       `json:"slot"`
	TransactionID string    `json:"transactionId,omitempty"`
	Date          string    `json:"date,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PaymentRequest is the checkout payload posted after the gateway confirms the charge.
// Slot is accepted from older clients but never written; the ledger computes it.
type PaymentRequest struct {
	Email         string  `json:"email"`
	TestID        string  `json:"testId"`
	TestName      string  `json:"testName"`
	Amount        float64 `json:"amount"`
	Slot          *int    `json:"slot"`
	TransactionID string  `json:"transactionId"`
	Date          string  `json:"date"`
}

func (r *PaymentRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.TestID = strings.TrimSpace(r.TestID)
	r.TransactionID = strings.TrimSpace(r.TransactionID)
	if r.Email == "" {
		return ErrMissingEmail
	}
	if r.TestID == "" {
		return ErrMissingTest
	}
	if _, err := ChargeCents(r.Amount); err != nil {
		return err
	}
	return nil
}

// SlotUpdate reports the guarded decrement applied during commit.
type SlotUpdate struct {
	TestID        string `json:"testId"`
	Remaining     int    `json:"remaining"`
	MatchedCount  int    `json:"matchedCount"`
	ModifiedCount int    `json:"modifiedCount"`
}

// CommitResult is everything written by one commit.
type CommitResult struct {
	Payment    *Payment            `json:"paymentResult"`
	SlotUpdate SlotUpdate          `json:"updateSlot"`
	Result     *results.TestResult `json:"resultInsert"`
}

// MaxChargeAmount is the largest single card charge Stripe accepts.
const MaxChargeAmount = 999999.99

// ChargeCents returns amount in minor units, or ErrInvalidAmount when it is not
// a chargeable amount of at least one cent.
func ChargeCents(amount float64) (int64, error) {
	if math.IsNaN(amount) || amount <= 0 || amount > MaxChargeAmount {
		return 0, ErrInvalidAmount
	}
	cents := ToMinorUnits(amount)
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ToMinorUnits converts a decimal amount to cents, truncating sub-cent remainders.
// The epsilon keeps values like 19.99 from landing on 1998 after float rounding.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Floor(amount*100 + 1e-6))
}
