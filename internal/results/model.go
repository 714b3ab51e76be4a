package results

import (
	"strings"
	"time"
)

// Status tracks a result through lab processing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusCanceled Status = "Canceled"
)

// TestResult is created alongside a payment and later completed by staff.
type TestResult struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	TestID    string    `json:"testId"`
	TestName  string    `json:"testName,omitempty"`
	PaymentID string    `json:"paymentId"`
	Date      string    `json:"date,omitempty"`
	Status    Status    `json:"status"`
	Report    string    `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttachReportRequest is the staff payload for PATCH /testResult/{id}.
type AttachReportRequest struct {
	Report string `json:"report"`
}

func (r *AttachReportRequest) Validate() error {
	r.Report = strings.TrimSpace(r.Report)
	if r.Report == "" {
		return ErrMissingReport
	}
	return nil
}
