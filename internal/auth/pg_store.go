package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgUserStore struct {
	pool *pgxpool.Pool
}

func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var phone *string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&phone,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	u.Phone = phone
	return &u, nil
}

func (s *PgUserStore) CreateUser(ctx context.Context, email, fullName string, phone *string, passwordHash string) (*User, error) {
	id := uuid.New()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO users (id, email, full_name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, email, full_name, phone, created_at, updated_at
	`, id, email, fullName, phone)

	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_auth (user_id, password_hash, created_at)
		VALUES ($1, $2, now())
	`, u.ID, passwordHash)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *PgUserStore) GetUserByEmail(ctx context.Context, email string) (*User, string, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.full_name, u.phone, u.created_at, u.updated_at, a.password_hash
		FROM users u
		JOIN user_auth a ON a.user_id = u.id
		WHERE u.email = $1
	`, email)

	var u User
	var phone *string
	var hash string

	err := row.Scan(&u.ID, &u.Email, &u.FullName, &phone, &u.CreatedAt, &u.UpdatedAt, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	u.Phone = phone
	return &u, hash, nil
}

func (s *PgUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, full_name, phone, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}
