package repository

import (
	"context"
	"errors"

	"litvi-store/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when an email address is already taken.
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository defines persistence operations for User records. The OTP
// column is last-write-wins on purpose: two concurrent issuances for one
// address simply leave the newest code valid.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	SetOTP(ctx context.Context, id int64, otp string) error
	// MarkVerified flips the verification flag and clears the OTP in one
	// statement.
	MarkVerified(ctx context.Context, id int64) error
	// UpdatePassword stores a new hash, clears the OTP and resets the
	// verification flag, forcing re-verification after a password reset.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
