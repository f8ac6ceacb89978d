package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, phone, is_staff, date_joined, last_login`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const op = "repository.user.Create"
	const query = `
        INSERT INTO users (username, email, password_hash, phone, is_staff, last_login)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, date_joined`

	err := querier(ctx, r.pool).QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Phone,
		user.IsStaff,
		user.LastLogin,
	).Scan(&user.ID, &user.DateJoined)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const op = "repository.user.Update"
	const query = `
        UPDATE users SET username=$1, email=$2, password_hash=$3, phone=$4, is_staff=$5
        WHERE id=$6`

	cmd, err := querier(ctx, r.pool).Exec(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Phone,
		user.IsStaff,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, pgx.ErrNoRows)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.fetchSingle(ctx, "repository.user.GetByID", `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.fetchSingle(ctx, "repository.user.GetByUsername", `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, "repository.user.GetByEmail", `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	const op = "repository.user.TouchLastLogin"
	if _, err := querier(ctx, r.pool).Exec(ctx, `UPDATE users SET last_login=$1 WHERE id=$2`, at, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *userRepository) fetchSingle(ctx context.Context, op, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := querier(ctx, r.pool).QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.IsStaff,
		&user.DateJoined,
		&user.LastLogin,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}
