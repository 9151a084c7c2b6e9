// Package token mints and verifies the signed credentials used by the auth
// flows: the session token handed out at login and the short-lived reset
// token that correlates a password-reset OTP with a user across requests.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidOrExpired is returned for any token that fails verification.
// Expired and tampered tokens are distinguished in the wrapped cause for
// logging, but callers surface them as one kind.
var ErrInvalidOrExpired = errors.New("invalid or expired token")

// SessionClaims is carried by tokens minted at login.
type SessionClaims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// ResetClaims binds a password-reset OTP to a user identity. The token is
// never persisted; correctness relies on the signature and expiry alone.
type ResetClaims struct {
	UserID int64  `json:"userId"`
	OTP    string `json:"otp"`
	jwt.RegisteredClaims
}

// Minter signs and verifies tokens with a single HMAC secret.
type Minter struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
}

// NewMinter returns a minter or an error when the secret is missing. A
// missing secret is a deployment mistake and should abort startup.
func NewMinter(secret string, sessionTTL, resetTTL time.Duration) (*Minter, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	if sessionTTL <= 0 || resetTTL <= 0 {
		return nil, errors.New("token: ttls must be positive")
	}
	return &Minter{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
	}, nil
}

// MintSession issues a login token for the given user.
func (m *Minter) MintSession(userID int64, email string) (string, error) {
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return m.sign(claims)
}

// MintReset issues a password-reset token embedding the OTP just sent.
func (m *Minter) MintReset(userID int64, otp string) (string, error) {
	claims := ResetClaims{
		UserID: userID,
		OTP:    otp,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.resetTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return m.sign(claims)
}

// VerifySession parses and validates a session token.
func (m *Minter) VerifySession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.verify(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyReset parses and validates a reset token.
func (m *Minter) VerifyReset(tokenString string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := m.verify(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Minter) sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *Minter) verify(tokenString string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		// Keep the cause (expired vs malformed vs bad signature) for logs.
		return fmt.Errorf("%w: %w", ErrInvalidOrExpired, err)
	}
	if !tok.Valid {
		return ErrInvalidOrExpired
	}
	return nil
}
