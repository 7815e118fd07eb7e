package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAlreadyExpired reports a revocation attempt for a token whose natural
// expiry has already passed; there is nothing left to deny.
var ErrAlreadyExpired = errors.New("blacklist: token already expired")

// Blacklist records revoked tokens until their natural expiry. Verification
// treats presence as revoked; the TTL only bounds storage growth, it is not
// part of the trust decision.
type Blacklist struct {
	redis  redis.UniversalClient
	prefix string
}

// NewBlacklist creates a [Blacklist] namespaced under prefix.
func NewBlacklist(redisClient redis.UniversalClient, prefix string) *Blacklist {
	return &Blacklist{redis: redisClient, prefix: prefix}
}

func (b *Blacklist) key(token string) string {
	return b.prefix + ":" + token
}

// Revoke records token as revoked until expiresAt. Revocation is
// idempotent: revoking an already-revoked token succeeds.
func (b *Blacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return ErrAlreadyExpired
	}
	if err := b.redis.Set(ctx, b.key(token), expiresAt.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAll revokes every token in a single pipeline. If any revocation
// fails the whole operation reports failure, but tokens revoked before the
// failure stay revoked (fail-open-to-revoked, never fail-open-to-valid).
func (b *Blacklist) RevokeAll(ctx context.Context, entries map[string]time.Time) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	pipe := b.redis.TxPipeline()
	for token, expiresAt := range entries {
		ttl := expiresAt.Sub(now)
		if ttl <= 0 {
			// Naturally expired tokens cannot validate anyway.
			continue
		}
		pipe.Set(ctx, b.key(token), expiresAt.Unix(), ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether token has a blacklist entry. Exact existence
// check; the entry value is never consulted.
func (b *Blacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := b.redis.Exists(ctx, b.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
