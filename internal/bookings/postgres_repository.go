package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists bookings in Postgres.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository creates a repository backed by pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db querier) *PostgresRepository {
	if db == nil {
		panic("bookings: querier required")
	}
	return &PostgresRepository{db: db}
}

const bookingColumns = `id, email, test_id, test_name, price, date, status, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, b *Booking) error {
	prepare(b, time.Now().UTC())
	query := `
		INSERT INTO bookings (id, email, test_id, test_name, price, date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.Exec(ctx, query,
		b.ID, b.Email, b.TestID, b.TestName, b.Price, b.Date, string(b.Status), b.CreatedAt, b.UpdatedAt,
	); err != nil {
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: load: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) ListByEmail(ctx context.Context, email string) ([]*Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE email = $1 ORDER BY created_at DESC`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Cancel uses a status guard so two concurrent cancels cannot both succeed.
func (r *PostgresRepository) Cancel(ctx context.Context, id string) (*Booking, error) {
	query := `
		UPDATE bookings SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + bookingColumns
	b, err := scanBooking(r.db.QueryRow(ctx, query, id, string(StatusCanceled), string(StatusPending)))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bookings: cancel: %w", err)
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAlreadyCanceled
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b      Booking
		status string
	)
	if err := row.Scan(&b.ID, &b.Email, &b.TestID, &b.TestName, &b.Price, &b.Date, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = Status(status)
	return &b, nil
}
