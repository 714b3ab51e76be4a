package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	"github.com/wolfman30/diagnostic-booking-api/internal/results"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// MemoryLedger commits against in-memory stores. Commits are serialised and a
// failed step undoes the earlier ones.
type MemoryLedger struct {
	mu       sync.Mutex
	payments map[string]*Payment
	byTxn    map[string]string
	slots    catalog.SlotCounter
	results  results.Repository
	logger   *logging.Logger
}

func NewMemoryLedger(slots catalog.SlotCounter, resultsRepo results.Repository, logger *logging.Logger) *MemoryLedger {
	if slots == nil || resultsRepo == nil {
		panic("payments: slot counter and results repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MemoryLedger{
		payments: make(map[string]*Payment),
		byTxn:    make(map[string]string),
		slots:    slots,
		results:  resultsRepo,
		logger:   logger,
	}
}

func (l *MemoryLedger) Commit(ctx context.Context, payment *Payment, result *results.TestResult) (SlotUpdate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if payment.TransactionID != "" {
		if _, dup := l.byTxn[payment.TransactionID]; dup {
			return SlotUpdate{}, ErrDuplicatePayment
		}
	}

	remaining, err := l.slots.DecrementSlot(ctx, payment.TestID)
	if err != nil {
		if errors.Is(err, catalog.ErrTestNotFound) || errors.Is(err, catalog.ErrSlotUnavailable) {
			return SlotUpdate{TestID: payment.TestID, Remaining: remaining}, err
		}
		return SlotUpdate{}, fmt.Errorf("payments: decrement slot: %w", err)
	}
	payment.Slot = remaining
	stored := *payment
	l.payments[payment.ID] = &stored
	if payment.TransactionID != "" {
		l.byTxn[payment.TransactionID] = payment.ID
	}

	if err := l.results.Create(ctx, result); err != nil {
		l.dropPayment(payment)
		if _, undoErr := l.slots.IncrementSlot(ctx, payment.TestID); undoErr != nil {
			l.logger.Error("payments: slot compensation failed", "error", undoErr, "test_id", payment.TestID)
		}
		return SlotUpdate{}, partial("insert result", err)
	}
	return SlotUpdate{TestID: payment.TestID, Remaining: remaining, MatchedCount: 1, ModifiedCount: 1}, nil
}

func (l *MemoryLedger) dropPayment(payment *Payment) {
	delete(l.payments, payment.ID)
	if payment.TransactionID != "" {
		delete(l.byTxn, payment.TransactionID)
	}
}

func (l *MemoryLedger) ListByEmail(ctx context.Context, email string) ([]*Payment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Payment
	for _, p := range l.payments {
		if p.Email == email {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
