package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	"github.com/wolfman30/diagnostic-booking-api/internal/events"
	"github.com/wolfman30/diagnostic-booking-api/internal/results"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

type ledgerDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresLedger runs the commit inside a single pgx transaction.
type PostgresLedger struct {
	db     ledgerDB
	logger *logging.Logger
}

func NewPostgresLedger(pool *pgxpool.Pool, logger *logging.Logger) *PostgresLedger {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return newPostgresLedgerWithDB(pool, logger)
}

func newPostgresLedgerWithDB(db ledgerDB, logger *logging.Logger) *PostgresLedger {
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresLedger{db: db, logger: logger}
}

// Commit takes one slot with a guarded UPDATE, inserts the payment and its
// pending result, and queues payment.committed.v1 in one transaction.
func (l *PostgresLedger) Commit(ctx context.Context, payment *Payment, result *results.TestResult) (SlotUpdate, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return SlotUpdate{}, fmt.Errorf("payments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	remaining, err := catalog.DecrementSlotTx(ctx, tx, payment.TestID)
	if err != nil {
		if errors.Is(err, catalog.ErrTestNotFound) || errors.Is(err, catalog.ErrSlotUnavailable) {
			return SlotUpdate{TestID: payment.TestID, Remaining: remaining}, err
		}
		return SlotUpdate{}, fmt.Errorf("payments: decrement slot: %w", err)
	}
	payment.Slot = remaining

	if err := insertPayment(ctx, tx, payment); err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			return SlotUpdate{}, err
		}
		return SlotUpdate{}, partial("insert payment", err)
	}

	if err := results.InsertTx(ctx, tx, result); err != nil {
		return SlotUpdate{}, partial("insert result", err)
	}

	evt := events.PaymentCommittedV1{
		EventID:       uuid.New().String(),
		PaymentID:     payment.ID,
		ResultID:      result.ID,
		Email:         payment.Email,
		TestID:        payment.TestID,
		TestName:      payment.TestName,
		AmountCents:   payment.AmountCents,
		TransactionID: payment.TransactionID,
		SlotRemaining: remaining,
		OccurredAt:    time.Now().UTC(),
	}
	if _, err := events.InsertTx(ctx, tx, payment.ID, events.TypePaymentCommitted, evt); err != nil {
		return SlotUpdate{}, partial("queue event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return SlotUpdate{}, partial("commit", err)
	}
	l.logger.Debug("payment committed", "payment_id", payment.ID, "test_id", payment.TestID, "slot_remaining", remaining)
	return SlotUpdate{TestID: payment.TestID, Remaining: remaining, MatchedCount: 1, ModifiedCount: 1}, nil
}

func insertPayment(ctx context.Context, tx pgx.Tx, p *Payment) error {
	query := `
		INSERT INTO payments (id, email, test_id, test_name, amount, amount_cents, slot, transaction_id, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`
	_, err := tx.Exec(ctx, query,
		p.ID, p.Email, p.TestID, p.TestName, p.Amount, p.AmountCents, p.Slot, p.TransactionID, p.Date, p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("payments: insert payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, email, test_id, test_name, amount, amount_cents, slot, COALESCE(transaction_id, ''), date, created_at`

func (l *PostgresLedger) ListByEmail(ctx context.Context, email string) ([]*Payment, error) {
	rows, err := l.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE email = $1 ORDER BY created_at DESC`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return nil, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Email, &p.TestID, &p.TestName, &p.Amount, &p.AmountCents, &p.Slot, &p.TransactionID, &p.Date, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("payments: scan: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
