package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited reports that the window budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures so callers never mistake
	// a store outage for an open window.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const keyPrefix = "rl"

// Limiter enforces fixed-window request budgets keyed by
// (subject, normalized path) using Redis counters.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Allow atomically increments the window counter for (subject, path) and
// reports whether the post-increment count exceeds limit. The first hit in
// a window attaches the period TTL. Two concurrent callers never observe
// the same pre-increment count: the increment is a single Redis INCR.
func (l *Limiter) Allow(ctx context.Context, subject, path string, limit int, period time.Duration) (bool, error) {
	if limit <= 0 || period <= 0 {
		return false, fmt.Errorf("rate: invalid window limit=%d period=%s", limit, period)
	}

	count, err := l.incrementWithTTL(ctx, counterKey(subject, path), period)
	if err != nil {
		return false, err
	}

	return count <= int64(limit), nil
}

// Remaining returns the current count for (subject, path). Missing counters
// return zero.
func (l *Limiter) Remaining(ctx context.Context, subject, path string) (int64, error) {
	count, err := l.redis.Get(ctx, counterKey(subject, path)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// Reset deletes the window counter for (subject, path).
func (l *Limiter) Reset(ctx context.Context, subject, path string) error {
	if err := l.redis.Del(ctx, counterKey(subject, path)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func counterKey(subject, path string) string {
	return keyPrefix + ":" + subject + ":" + NormalizePath(path)
}

// NormalizePath collapses path parameters so /user/42 and /user/99 share
// one counter. Numeric and UUID segments become "{id}"; trailing slashes
// are dropped; empty input normalizes to "/".
func NormalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if isNumeric(seg) || isUUID(seg) {
			segments[i] = "{id}"
		}
	}

	normalized := strings.Join(segments, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return normalized
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
