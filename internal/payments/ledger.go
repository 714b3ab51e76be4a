package payments

import (
	"context"
	"fmt"

	"github.com/wolfman30/diagnostic-booking-api/internal/results"
)

// Ledger commits a payment, its slot decrement and its pending result as one unit.
// Either all three are stored or none are.
type Ledger interface {
	Commit(ctx context.Context, payment *Payment, result *results.TestResult) (SlotUpdate, error)
	ListByEmail(ctx context.Context, email string) ([]*Payment, error)
}

func partial(step string, err error) error {
	return fmt.Errorf("payments: %s: %w: %w", step, ErrPartialCommit, err)
}
