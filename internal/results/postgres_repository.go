package results

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

// PostgresRepository stores test results in Postgres.
type PostgresRepository struct {
	db querier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("results: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db querier) *PostgresRepository {
	if db == nil {
		panic("results: querier required")
	}
	return &PostgresRepository{db: db}
}

const resultColumns = `id, email, test_id, test_name, payment_id, date, status, report, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, result *TestResult) error {
	return insert(ctx, r.db, result)
}

// InsertTx writes the result inside the caller's transaction.
func InsertTx(ctx context.Context, tx pgx.Tx, result *TestResult) error {
	return insert(ctx, tx, result)
}

func insert(ctx context.Context, db querier, result *TestResult) error {
	prepare(result, time.Now().UTC())
	query := `
		INSERT INTO test_results (id, email, test_id, test_name, payment_id, date, status, report, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := db.Exec(ctx, query,
		result.ID,
		result.Email,
		result.TestID,
		result.TestName,
		result.PaymentID,
		result.Date,
		string(result.Status),
		result.Report,
		result.CreatedAt,
		result.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("results: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*TestResult, error) {
	result, err := scanResult(r.db.QueryRow(ctx, `SELECT `+resultColumns+` FROM test_results WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("results: select: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListByEmail(ctx context.Context, email string) ([]*TestResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+resultColumns+` FROM test_results WHERE email = $1 ORDER BY created_at DESC`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return nil, fmt.Errorf("results: list: %w", err)
	}
	defer rows.Close()

	var out []*TestResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("results: scan: %w", err)
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

// AttachReport completes a result. Canceled results are left untouched.
func (r *PostgresRepository) AttachReport(ctx context.Context, id, report string) (*TestResult, error) {
	query := `
		UPDATE test_results
		SET report = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status <> $4
		RETURNING ` + resultColumns
	result, err := scanResult(r.db.QueryRow(ctx, query, id, report, string(StatusComplete), string(StatusCanceled)))
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("results: attach report: %w", err)
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrResultCanceled
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM test_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("results: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrResultNotFound
	}
	return nil
}

func scanResult(row pgx.Row) (*TestResult, error) {
	var (
		result TestResult
		status string
	)
	if err := row.Scan(
		&result.ID, &result.Email, &result.TestID, &result.TestName, &result.PaymentID,
		&result.Date, &status, &result.Report, &result.CreatedAt, &result.UpdatedAt,
	); err != nil {
		return nil, err
	}
	result.Status = Status(status)
	return &result, nil
}
