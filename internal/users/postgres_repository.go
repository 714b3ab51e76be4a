package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores users in the relational database.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("users: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db querier) *PostgresRepository {
	if db == nil {
		panic("users: querier required")
	}
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, avatar, role, status, created_at`

// Create inserts a new row; a unique violation on email maps to ErrEmailTaken.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	query := `
		INSERT INTO users (id, name, email, avatar, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query,
		uuid.New().String(),
		req.Name,
		req.Email,
		req.Avatar,
		string(auth.RoleUser),
		string(StatusActive),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("users: insert failed: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: select by email: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetRole(ctx context.Context, id string, role auth.Role) (*User, error) {
	query := `UPDATE users SET role = $2 WHERE id = $1 RETURNING ` + userColumns
	return r.updateOne(ctx, query, id, string(role))
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) (*User, error) {
	query := `UPDATE users SET status = $2 WHERE id = $1 RETURNING ` + userColumns
	return r.updateOne(ctx, query, id, string(status))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) updateOne(ctx context.Context, query, id, value string) (*User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, id, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: update: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user   User
		role   string
		status string
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Avatar, &role, &status, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Role = auth.Role(role)
	user.Status = Status(status)
	return &user, nil
}
