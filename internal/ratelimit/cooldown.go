// Package ratelimit enforces the minimum interval between OTP issuances for
// the same address. Clients run their own countdown, but the server-side
// guard is authoritative.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:"

// Cooldown tracks recent OTP issuances in Redis, one fixed window per
// (purpose, email) pair.
type Cooldown struct {
	rdb    *redis.Client
	window time.Duration
}

// NewCooldown returns a guard with the given minimum interval.
func NewCooldown(rdb *redis.Client, window time.Duration) *Cooldown {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &Cooldown{rdb: rdb, window: window}
}

// Allow records an issuance attempt. It returns zero when the caller may
// send a code now, or the remaining wait when one was issued within the
// window. A Redis failure is returned as an error; callers decide whether
// to fail open.
func (c *Cooldown) Allow(ctx context.Context, purpose, email string) (time.Duration, error) {
	key := keyPrefix + purpose + ":" + strings.ToLower(strings.TrimSpace(email))

	ok, err := c.rdb.SetNX(ctx, key, "1", c.window).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown check: %w", err)
	}
	if ok {
		return 0, nil
	}

	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown ttl: %w", err)
	}
	if ttl < 0 {
		// Key vanished between SETNX and TTL; treat as allowed next call.
		ttl = 0
	}
	if ttl == 0 {
		ttl = time.Second
	}
	return ttl, nil
}

// Clear removes the window for a pair, freeing the next issuance. Used by
// tests and by successful verifications where an immediate resend is fine.
func (c *Cooldown) Clear(ctx context.Context, purpose, email string) error {
	key := keyPrefix + purpose + ":" + strings.ToLower(strings.TrimSpace(email))
	return c.rdb.Del(ctx, key).Err()
}
