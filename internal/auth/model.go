package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore persists accounts and their password hashes. The hash lives
// in a separate row so user listings never carry credential material.
type UserStore interface {
	CreateUser(ctx context.Context, email, fullName string, phone *string, passwordHash string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, string, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
}
