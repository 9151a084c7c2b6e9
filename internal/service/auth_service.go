package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"litvi-store/internal/domain"
	"litvi-store/internal/mail"
	"litvi-store/internal/otp"
	"litvi-store/internal/ratelimit"
	"litvi-store/internal/repository"
	"litvi-store/internal/token"
)

// Work factor fixed so hashing stays CPU-bounded per request.
const bcryptCost = 10

const (
	cooldownRegister = "register"
	cooldownReset    = "reset"
)

var (
	// ErrMissingFields indicates a required request field was empty.
	ErrMissingFields = errors.New("missing required fields")
	// ErrEmailExists is returned when registering an email that already has a
	// verified account.
	ErrEmailExists = errors.New("email already exists")
	// ErrUserNotFound indicates no account matches the given identity.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidOTP indicates the supplied code does not match the stored one.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrInvalidCredentials covers both unknown email and wrong password, so
	// login failures never reveal which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountUnverified is returned by login only when verification is
	// enforced via configuration.
	ErrAccountUnverified = errors.New("account not verified")
	// ErrPasswordMismatch indicates newPassword and confirmPassword differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrMailDelivery indicates the OTP email could not be dispatched. For
	// registration the account row already exists in pending state.
	ErrMailDelivery = errors.New("failed to send otp email")
)

// CooldownError is returned when an OTP was issued for the address within
// the minimum resend interval.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp recently sent, retry in %s", e.RetryAfter.Round(time.Second))
}

// AuthService drives the account lifecycle: register, verify, login, and the
// password-reset handshake.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) error
	VerifyRegistration(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	VerifyResetOTP(ctx context.Context, email, code, resetToken string) error
	ResetPassword(ctx context.Context, resetToken, newPassword, confirmPassword string) error
}

// Config carries the policy knobs of the auth flows.
type Config struct {
	// RequireVerified gates login on a confirmed email address. Off by
	// default: unverified accounts may log in.
	RequireVerified bool
}

type authService struct {
	users           repository.UserRepository
	registrationOTP *otp.Generator
	resetOTP        *otp.Generator
	minter          *token.Minter
	dispatcher      mail.Dispatcher
	cooldown        *ratelimit.Cooldown
	logger          *logrus.Logger
	requireVerified bool
}

func NewAuthService(
	users repository.UserRepository,
	registrationOTP, resetOTP *otp.Generator,
	minter *token.Minter,
	dispatcher mail.Dispatcher,
	cooldown *ratelimit.Cooldown,
	logger *logrus.Logger,
	cfg Config,
) AuthService {
	return &authService{
		users:           users,
		registrationOTP: registrationOTP,
		resetOTP:        resetOTP,
		minter:          minter,
		dispatcher:      dispatcher,
		cooldown:        cooldown,
		logger:          logger,
		requireVerified: cfg.RequireVerified,
	}
}

// Register creates a pending account and emails its verification code. When
// the email already belongs to an unverified account, a fresh code is issued
// on the existing record instead of failing on the duplicate, so retrying a
// registration whose email never arrived just works.
func (s *authService) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" || email == "" || password == "" {
		return ErrMissingFields
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.IsVerified:
		return ErrEmailExists
	case err == nil:
		// Pending account: reissue the code on the same record.
		return s.reissueRegistrationOTP(ctx, existing)
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("lookup email: %w", err)
	}

	if err := s.checkCooldown(ctx, cooldownRegister, email); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	code := s.registrationOTP.Generate()
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		OTP:          &code,
		IsVerified:   false,
	}

	// Persist before dispatch: a mail failure leaves the account pending and
	// a later register call for the same email resends the code.
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	return s.sendVerification(ctx, email, code)
}

func (s *authService) reissueRegistrationOTP(ctx context.Context, user *domain.User) error {
	if err := s.checkCooldown(ctx, cooldownRegister, user.Email); err != nil {
		return err
	}

	code := s.registrationOTP.Generate()
	if err := s.users.SetOTP(ctx, user.ID, code); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return s.sendVerification(ctx, user.Email, code)
}

func (s *authService) sendVerification(ctx context.Context, email, code string) error {
	msg, err := mail.VerificationMessage(email, code)
	if err != nil {
		return err
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		s.logger.WithField("email", email).Warnf("verification mail dispatch failed: %v", err)
		return fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}
	return nil
}

// VerifyRegistration confirms the emailed code. The comparison is an exact
// string match with no normalization.
func (s *authService) VerifyRegistration(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	if user.OTP == nil || *user.OTP != code {
		return ErrInvalidOTP
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// Login checks credentials and mints a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if s.requireVerified && !user.IsVerified {
		return "", nil, ErrAccountUnverified
	}

	session, err := s.minter.MintSession(user.ID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("mint session token: %w", err)
	}

	return session, sanitizeUser(user), nil
}

// RequestPasswordReset issues a reset code, emails it, and returns the signed
// token binding the code to the account. The email carries the code, the
// response carries the correlation token, and both are needed to proceed.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("lookup email: %w", err)
	}

	if err := s.checkCooldown(ctx, cooldownReset, email); err != nil {
		return "", err
	}

	code := s.resetOTP.Generate()
	resetToken, err := s.minter.MintReset(user.ID, code)
	if err != nil {
		return "", fmt.Errorf("mint reset token: %w", err)
	}

	// Overwrites any previous code; a superseded reset simply stops working.
	if err := s.users.SetOTP(ctx, user.ID, code); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	msg, err := mail.ResetMessage(email, code)
	if err != nil {
		return "", err
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		s.logger.WithField("email", email).Warnf("reset mail dispatch failed: %v", err)
		return "", fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}

	return resetToken, nil
}

// VerifyResetOTP checks the token first, then the code against the record it
// points at. A missing user folds into ErrInvalidOTP so the response gives
// nothing away beyond "this code is wrong".
func (s *authService) VerifyResetOTP(ctx context.Context, email, code, resetToken string) error {
	claims, err := s.minter.VerifyReset(resetToken)
	if err != nil {
		s.logger.WithField("email", email).Infof("reset token rejected: %v", err)
		return token.ErrInvalidOrExpired
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if user.OTP == nil || *user.OTP != code {
		return ErrInvalidOTP
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// ResetPassword replaces the password for the account named by the token and
// drops the verification flag, forcing the next reset to re-verify.
func (s *authService) ResetPassword(ctx context.Context, resetToken, newPassword, confirmPassword string) error {
	claims, err := s.minter.VerifyReset(resetToken)
	if err != nil {
		s.logger.Infof("reset token rejected: %v", err)
		return token.ErrInvalidOrExpired
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if newPassword == "" {
		return ErrMissingFields
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// checkCooldown enforces the minimum resend interval. Redis being down fails
// open with a logged warning.
func (s *authService) checkCooldown(ctx context.Context, purpose, email string) error {
	if s.cooldown == nil {
		return nil
	}
	wait, err := s.cooldown.Allow(ctx, purpose, email)
	if err != nil {
		s.logger.Warnf("otp cooldown unavailable: %v", err)
		return nil
	}
	if wait > 0 {
		return &CooldownError{RetryAfter: wait}
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}
