package events

import "time"

const (
	// TypePaymentCommitted is written in the same transaction as the payment it describes.
	TypePaymentCommitted = "payment.committed.v1"
	TypeReportReady      = "result.report_ready.v1"
)

type PaymentCommittedV1 struct {
	EventID       string    `json:"event_id"`
	PaymentID     string    `json:"payment_id"`
	ResultID      string    `json:"result_id"`
	Email         string    `json:"email"`
	TestID        string    `json:"test_id"`
	TestName      string    `json:"test_name,omitempty"`
	AmountCents   int64     `json:"amount_cents"`
	TransactionID string    `json:"transaction_id,omitempty"`
	SlotRemaining int       `json:"slot_remaining"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type ReportReadyV1 struct {
	EventID    string    `json:"event_id"`
	ResultID   string    `json:"result_id"`
	Email      string    `json:"email"`
	TestID     string    `json:"test_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
