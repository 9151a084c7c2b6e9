package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCooldown(t *testing.T, window time.Duration) (*Cooldown, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCooldown(rdb, window), mr
}

func TestAllow_FirstIssuance(t *testing.T) {
	t.Parallel()

	cd, _ := newTestCooldown(t, 30*time.Second)

	wait, err := cd.Allow(context.Background(), "reset", "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestAllow_WithinWindow(t *testing.T) {
	t.Parallel()

	cd, _ := newTestCooldown(t, 30*time.Second)
	ctx := context.Background()

	_, err := cd.Allow(ctx, "reset", "a@x.com")
	require.NoError(t, err)

	wait, err := cd.Allow(ctx, "reset", "a@x.com")
	require.NoError(t, err)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 30*time.Second)
}

func TestAllow_AfterWindowElapsed(t *testing.T) {
	t.Parallel()

	cd, mr := newTestCooldown(t, 30*time.Second)
	ctx := context.Background()

	_, err := cd.Allow(ctx, "reset", "a@x.com")
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	wait, err := cd.Allow(ctx, "reset", "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestAllow_KeysAreScoped(t *testing.T) {
	t.Parallel()

	cd, _ := newTestCooldown(t, 30*time.Second)
	ctx := context.Background()

	_, err := cd.Allow(ctx, "reset", "a@x.com")
	require.NoError(t, err)

	// Different purpose and different address are independent windows.
	wait, err := cd.Allow(ctx, "register", "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, wait)

	wait, err = cd.Allow(ctx, "reset", "b@x.com")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestAllow_NormalizesEmail(t *testing.T) {
	t.Parallel()

	cd, _ := newTestCooldown(t, 30*time.Second)
	ctx := context.Background()

	_, err := cd.Allow(ctx, "reset", "A@X.com ")
	require.NoError(t, err)

	wait, err := cd.Allow(ctx, "reset", "a@x.com")
	require.NoError(t, err)
	assert.Greater(t, wait, time.Duration(0))
}

func TestClear(t *testing.T) {
	t.Parallel()

	cd, _ := newTestCooldown(t, 30*time.Second)
	ctx := context.Background()

	_, err := cd.Allow(ctx, "reset", "a@x.com")
	require.NoError(t, err)
	require.NoError(t, cd.Clear(ctx, "reset", "a@x.com"))

	wait, err := cd.Allow(ctx, "reset", "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestAllow_RedisDown(t *testing.T) {
	t.Parallel()

	cd, mr := newTestCooldown(t, 30*time.Second)
	mr.Close()

	_, err := cd.Allow(context.Background(), "reset", "a@x.com")
	require.Error(t, err)
}
