package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound reports a missing or expired key.
	ErrNotFound = errors.New("ephemeral record not found")
	// ErrRedisUnavailable wraps transport failures. A store outage must
	// never read as "key absent" to flows that depend on side effects.
	ErrRedisUnavailable = errors.New("ephemeral redis unavailable")
)

// Ephemeral is a key-value store with per-key expiry. One-time codes are
// read with Consume; snapshot records (job status) are read with Get.
type Ephemeral struct {
	redis  redis.UniversalClient
	prefix string
}

// NewEphemeral creates an [Ephemeral] store. All keys are namespaced under
// prefix to keep code, counter, and queue keyspaces disjoint.
func NewEphemeral(redisClient redis.UniversalClient, prefix string) *Ephemeral {
	return &Ephemeral{redis: redisClient, prefix: prefix}
}

func (s *Ephemeral) key(k string) string {
	return s.prefix + ":" + k
}

// Put stores value under key for ttl. A zero ttl is rejected: every record
// in this store must expire.
func (s *Ephemeral) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ephemeral records require a positive ttl")
	}
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the value for key without consuming it, or ErrNotFound once
// the ttl has elapsed, regardless of whether an expiry sweep has run.
func (s *Ephemeral) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return value, nil
}

// Consume atomically reads and deletes key. Exactly one of N concurrent
// consumers receives the value; the rest get ErrNotFound.
func (s *Ephemeral) Consume(ctx context.Context, key string) ([]byte, error) {
	value, err := s.redis.GetDel(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return value, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Ephemeral) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Exists reports whether key is present and unexpired.
func (s *Ephemeral) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
