package domain

import "time"

// User represents a registered account of the storefront.
//
// OTP is non-nil only between issuance and consumption; verifying a code or
// resetting the password always clears it back to nil.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	OTP          *string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
