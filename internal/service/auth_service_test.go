package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litvi-store/internal/mail"
	"litvi-store/internal/otp"
	"litvi-store/internal/ratelimit"
	"litvi-store/internal/repository"
	"litvi-store/internal/repository/sqlite"
	"litvi-store/internal/token"
)

type capturingDispatcher struct {
	mu   sync.Mutex
	sent []mail.Message
	fail error
}

func (d *capturingDispatcher) Send(_ context.Context, msg mail.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.sent = append(d.sent, msg)
	return nil
}

func (d *capturingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type authHarness struct {
	svc        AuthService
	users      repository.UserRepository
	dispatcher *capturingDispatcher
	minter     *token.Minter
	cooldown   *ratelimit.Cooldown
	redis      *miniredis.Miniredis
}

func newAuthHarness(t *testing.T, cfg Config) *authHarness {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(context.Background()))

	regGen, err := otp.NewGenerator(otp.RegistrationPolicy())
	require.NoError(t, err)
	resetGen, err := otp.NewGenerator(otp.ResetPolicy())
	require.NoError(t, err)

	minter, err := token.NewMinter("test-secret", time.Hour, 10*time.Minute)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cooldown := ratelimit.NewCooldown(rdb, 30*time.Second)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	dispatcher := &capturingDispatcher{}
	svc := NewAuthService(users, regGen, resetGen, minter, dispatcher, cooldown, logger, cfg)

	return &authHarness{
		svc:        svc,
		users:      users,
		dispatcher: dispatcher,
		minter:     minter,
		cooldown:   cooldown,
		redis:      mr,
	}
}

func (h *authHarness) register(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, h.svc.Register(context.Background(), "alice", email, "Passw0rd!"))
}

func (h *authHarness) storedOTP(t *testing.T, email string) string {
	t.Helper()
	user, err := h.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, user.OTP)
	return *user.OTP
}

func TestRegister_CreatesPendingAccount(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	h.register(t, "a@x.com")

	user, err := h.users.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, user.IsVerified)
	require.NotNil(t, user.OTP)
	assert.Len(t, *user.OTP, 6)
	assert.NotEqual(t, "Passw0rd!", user.PasswordHash)

	require.Equal(t, 1, h.dispatcher.count())
	assert.Equal(t, "a@x.com", h.dispatcher.sent[0].To)
	assert.Contains(t, h.dispatcher.sent[0].Text, *user.OTP)
}

func TestRegister_MissingFields(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()

	require.ErrorIs(t, h.svc.Register(ctx, "", "a@x.com", "pw"), ErrMissingFields)
	require.ErrorIs(t, h.svc.Register(ctx, "alice", "", "pw"), ErrMissingFields)
	require.ErrorIs(t, h.svc.Register(ctx, "alice", "a@x.com", ""), ErrMissingFields)
}

func TestRegister_DuplicateVerifiedEmail(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()

	h.register(t, "a@x.com")
	code := h.storedOTP(t, "a@x.com")
	require.NoError(t, h.svc.VerifyRegistration(ctx, "a@x.com", code))

	err := h.svc.Register(ctx, "bob", "a@x.com", "Other1!")
	require.ErrorIs(t, err, ErrEmailExists)

	// Original record untouched.
	user, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.IsVerified)
}

func TestRegister_PendingEmailReissuesOTP(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()

	h.register(t, "a@x.com")
	first := h.storedOTP(t, "a@x.com")

	// Client-side countdown elapsed; retry must resend, not conflict.
	h.redis.FastForward(31 * time.Second)

	require.NoError(t, h.svc.Register(ctx, "alice", "a@x.com", "Passw0rd!"))
	second := h.storedOTP(t, "a@x.com")

	assert.Equal(t, 2, h.dispatcher.count())
	assert.NotEqual(t, first, second, "resend should supersede the old code")
}

func TestRegister_ResendCooldown(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()

	h.register(t, "a@x.com")

	err := h.svc.Register(ctx, "alice", "a@x.com", "Passw0rd!")
	var cdErr *CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.Greater(t, cdErr.RetryAfter, time.Duration(0))
	assert.Equal(t, 1, h.dispatcher.count())
}

func TestRegister_MailFailureKeepsPendingAccount(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	h.dispatcher.fail = errors.New("smtp down")

	err := h.svc.Register(context.Background(), "alice", "a@x.com", "Passw0rd!")
	require.ErrorIs(t, err, ErrMailDelivery)

	// The row exists and stays pending; a later register call resends.
	user, lookupErr := h.users.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, lookupErr)
	assert.False(t, user.IsVerified)
	require.NotNil(t, user.OTP)
}

func TestVerifyRegistration(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()

	h.register(t, "a@x.com")
	code := h.storedOTP(t, "a@x.com")

	// Wrong code leaves state unchanged.
	require.ErrorIs(t, h.svc.VerifyRegistration(ctx, "a@x.com", "nope"), ErrInvalidOTP)
	user, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, user.IsVerified)
	assert.NotNil(t, user.OTP)

	// Correct code flips the flag and consumes the OTP.
	require.NoError(t, h.svc.VerifyRegistration(ctx, "a@x.com", code))
	user, err = h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.OTP)

	// Replay fails: the code is gone.
	require.ErrorIs(t, h.svc.VerifyRegistration(ctx, "a@x.com", code), ErrInvalidOTP)
}

func TestVerifyRegistration_UnknownEmail(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	require.ErrorIs(t, h.svc.VerifyRegistration(context.Background(), "no@x.com", "123456"), ErrUserNotFound)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()
	h.register(t, "a@x.com")

	// Wrong password and unknown email yield the same error.
	_, _, err := h.svc.Login(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = h.svc.Login(ctx, "nobody@x.com", "Passw0rd!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Verification is not a login precondition by default.
	session, user, err := h.svc.Login(ctx, "a@x.com", "Passw0rd!")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash)

	claims, err := h.minter.VerifySession(session)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestLogin_RequireVerified(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{RequireVerified: true})
	ctx := context.Background()
	h.register(t, "a@x.com")

	_, _, err := h.svc.Login(ctx, "a@x.com", "Passw0rd!")
	require.ErrorIs(t, err, ErrAccountUnverified)

	code := h.storedOTP(t, "a@x.com")
	require.NoError(t, h.svc.VerifyRegistration(ctx, "a@x.com", code))

	_, _, err = h.svc.Login(ctx, "a@x.com", "Passw0rd!")
	require.NoError(t, err)
}

func TestRequestPasswordReset(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()
	h.register(t, "a@x.com")
	h.redis.FastForward(31 * time.Second)

	resetToken, err := h.svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)

	claims, err := h.minter.VerifyReset(resetToken)
	require.NoError(t, err)

	user, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	require.NotNil(t, user.OTP)
	assert.Equal(t, *user.OTP, claims.OTP)
	assert.Len(t, claims.OTP, 6)

	require.Equal(t, 2, h.dispatcher.count())
	assert.Contains(t, h.dispatcher.sent[1].Text, claims.OTP)
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	_, err := h.svc.RequestPasswordReset(context.Background(), "no@x.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRequestPasswordReset_Cooldown(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()
	h.register(t, "a@x.com")
	h.redis.FastForward(31 * time.Second)

	_, err := h.svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = h.svc.RequestPasswordReset(ctx, "a@x.com")
	var cdErr *CooldownError
	require.ErrorAs(t, err, &cdErr)

	h.redis.FastForward(31 * time.Second)
	_, err = h.svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
}

func TestVerifyResetOTP(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()
	h.register(t, "a@x.com")
	h.redis.FastForward(31 * time.Second)

	resetToken, err := h.svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	code := h.storedOTP(t, "a@x.com")

	require.ErrorIs(t, h.svc.VerifyResetOTP(ctx, "a@x.com", code, "garbage"), token.ErrInvalidOrExpired)
	require.ErrorIs(t, h.svc.VerifyResetOTP(ctx, "a@x.com", "000000", resetToken), ErrInvalidOTP)

	require.NoError(t, h.svc.VerifyResetOTP(ctx, "a@x.com", code, resetToken))
	user, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.OTP)
}

func TestResetPassword(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()
	h.register(t, "a@x.com")
	h.redis.FastForward(31 * time.Second)

	resetToken, err := h.svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)

	before, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	// Mismatched confirmation leaves the hash untouched.
	err = h.svc.ResetPassword(ctx, resetToken, "NewPass1", "Different")
	require.ErrorIs(t, err, ErrPasswordMismatch)
	after, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	require.NoError(t, h.svc.ResetPassword(ctx, resetToken, "NewPass1", "NewPass1"))

	// Old password no longer authenticates, the new one does, and the
	// account must re-verify.
	_, _, err = h.svc.Login(ctx, "a@x.com", "Passw0rd!")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, user, err := h.svc.Login(ctx, "a@x.com", "NewPass1")
	require.NoError(t, err)
	assert.False(t, user.IsVerified)
}

func TestResetPassword_BadToken(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	err := h.svc.ResetPassword(context.Background(), "garbage", "NewPass1", "NewPass1")
	require.ErrorIs(t, err, token.ErrInvalidOrExpired)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()
	h.register(t, "a@x.com")

	// Mint a token with the same secret that expires immediately.
	expiredMinter, err := token.NewMinter("test-secret", time.Hour, time.Nanosecond)
	require.NoError(t, err)
	user, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	expired, err := expiredMinter.MintReset(user.ID, "123456")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	err = h.svc.ResetPassword(ctx, expired, "NewPass1", "NewPass1")
	require.ErrorIs(t, err, token.ErrInvalidOrExpired)
}

func TestEndToEnd_RegisterVerifyLogin(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.svc.Register(ctx, "alice", "a@x.com", "Passw0rd!"))
	code := h.storedOTP(t, "a@x.com")

	require.NoError(t, h.svc.VerifyRegistration(ctx, "a@x.com", code))
	user, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.True(t, user.IsVerified)

	session, logged, err := h.svc.Login(ctx, "a@x.com", "Passw0rd!")
	require.NoError(t, err)
	assert.NotEmpty(t, session)
	assert.Equal(t, "a@x.com", logged.Email)
}

func TestEndToEnd_ForgotVerifyReset(t *testing.T) {
	t.Parallel()

	h := newAuthHarness(t, Config{})
	ctx := context.Background()
	h.register(t, "a@x.com")
	h.redis.FastForward(31 * time.Second)

	resetToken, err := h.svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	code := h.storedOTP(t, "a@x.com")

	require.NoError(t, h.svc.VerifyResetOTP(ctx, "a@x.com", code, resetToken))
	require.NoError(t, h.svc.ResetPassword(ctx, resetToken, "NewPass1", "NewPass1"))

	_, _, err = h.svc.Login(ctx, "a@x.com", "Passw0rd!")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = h.svc.Login(ctx, "a@x.com", "NewPass1")
	require.NoError(t, err)
}
