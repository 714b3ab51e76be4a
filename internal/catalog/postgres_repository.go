package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores the test catalog in Postgres.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db querier) *PostgresRepository {
	if db == nil {
		panic("catalog: querier required")
	}
	return &PostgresRepository{db: db}
}

const testColumns = `id, name, description, image_url, price, slot, date, status, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, req *CreateTestRequest) (*Test, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	query := `
		INSERT INTO tests (id, name, description, image_url, price, slot, date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + testColumns
	test, err := scanTest(r.db.QueryRow(ctx, query,
		uuid.New().String(),
		req.Name,
		req.Description,
		req.ImageURL,
		req.Price,
		req.Slot,
		req.Date,
		req.Status,
	))
	if err != nil {
		return nil, fmt.Errorf("catalog: insert failed: %w", err)
	}
	return test, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Test, error) {
	test, err := scanTest(r.db.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("catalog: select: %w", err)
	}
	return test, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Test, error) {
	rows, err := r.db.Query(ctx, `SELECT `+testColumns+` FROM tests ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []*Test
	for rows.Next() {
		test, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		out = append(out, test)
	}
	return out, rows.Err()
}

// Update applies a partial update. The slot column also carries a CHECK (slot >= 0) constraint.
func (r *PostgresRepository) Update(ctx context.Context, id string, req *UpdateTestRequest) (*Test, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	query := `
		UPDATE tests SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			image_url = COALESCE($4, image_url),
			price = COALESCE($5, price),
			slot = COALESCE($6, slot),
			date = COALESCE($7, date),
			status = COALESCE($8, status),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + testColumns
	test, err := scanTest(r.db.QueryRow(ctx, query,
		id, req.Name, req.Description, req.ImageURL, req.Price, req.Slot, req.Date, req.Status,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("catalog: update: %w", err)
	}
	return test, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (r *PostgresRepository) DecrementSlot(ctx context.Context, id string) (int, error) {
	return decrementSlot(ctx, r.db, id)
}

func (r *PostgresRepository) IncrementSlot(ctx context.Context, id string) (int, error) {
	var slot int
	err := r.db.QueryRow(ctx, `UPDATE tests SET slot = slot + 1, updated_at = now() WHERE id = $1 RETURNING slot`, id).Scan(&slot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrTestNotFound
		}
		return 0, fmt.Errorf("catalog: increment slot: %w", err)
	}
	return slot, nil
}

// DecrementSlotTx runs the guarded decrement inside the caller's transaction.
func DecrementSlotTx(ctx context.Context, tx pgx.Tx, id string) (int, error) {
	return decrementSlot(ctx, tx, id)
}

func decrementSlot(ctx context.Context, db querier, id string) (int, error) {
	var slot int
	err := db.QueryRow(ctx, `
		UPDATE tests SET slot = slot - 1, updated_at = now()
		WHERE id = $1 AND slot > 0
		RETURNING slot
	`, id).Scan(&slot)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("catalog: decrement slot: %w", err)
	}

	// The guard matched nothing: either the test is gone or it is full.
	if err := db.QueryRow(ctx, `SELECT slot FROM tests WHERE id = $1`, id).Scan(&slot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrTestNotFound
		}
		return 0, fmt.Errorf("catalog: load slot: %w", err)
	}
	return slot, ErrSlotUnavailable
}

func scanTest(row pgx.Row) (*Test, error) {
	var t Test
	if err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.ImageURL, &t.Price, &t.Slot,
		&t.Date, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
