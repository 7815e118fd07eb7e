package notify

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tidegate/authcore/internal/stores"
)

var (
	// ErrJobNotFound reports an unknown or expired job ID.
	ErrJobNotFound = errors.New("notify: job not found")
	// ErrQueueUnavailable wraps Redis transport failures.
	ErrQueueUnavailable = errors.New("notify: queue unavailable")
)

// Job is one unit of queued work.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// QueueConfig tunes queue key layout and status retention.
type QueueConfig struct {
	// Prefix namespaces the queue list and status records. Default "jobs".
	Prefix string
	// StatusTTL bounds how long a job's status snapshot stays pollable
	// after its last transition. Default 24h.
	StatusTTL time.Duration
}

// Queue is a Redis-backed job queue with per-job status snapshots. It is
// an explicitly constructed handle, not process-global state: callers own
// its lifecycle and inject it into the engine.
type Queue struct {
	redis   redis.UniversalClient
	status  *stores.Ephemeral
	config  QueueConfig
	entropy *ulidEntropy
}

type ulidEntropy struct {
	mu     sync.Mutex
	reader *ulid.MonotonicEntropy
}

func (e *ulidEntropy) newID(t time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), e.reader).String()
}

// NewQueue creates a [Queue] backed by the given Redis client.
func NewQueue(redisClient redis.UniversalClient, cfg QueueConfig) *Queue {
	if cfg.Prefix == "" {
		cfg.Prefix = "jobs"
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 24 * time.Hour
	}
	return &Queue{
		redis:   redisClient,
		status:  stores.NewEphemeral(redisClient, cfg.Prefix+":status"),
		config:  cfg,
		entropy: &ulidEntropy{reader: ulid.Monotonic(rand.Reader, 0)},
	}
}

func (q *Queue) listKey() string {
	return q.config.Prefix + ":queue"
}

// Enqueue pushes a job of jobType with payload and returns its ID. The job
// starts in the pending state. Enqueue never waits for execution.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload []byte) (string, error) {
	if jobType == "" {
		return "", errors.New("notify: empty job type")
	}

	now := time.Now().UTC()
	job := Job{
		ID:         q.entropy.newID(now),
		Type:       jobType,
		Payload:    append(json.RawMessage(nil), payload...),
		EnqueuedAt: now,
	}

	encoded, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	if err := q.setStatus(ctx, job.ID, JobStatus{State: StatePending, UpdatedAt: now}); err != nil {
		return "", err
	}
	if err := q.redis.LPush(ctx, q.listKey(), encoded).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	return job.ID, nil
}

// Status returns the latest snapshot for jobID. Status reads do not
// consume the record; polling is repeatable until the retention TTL lapses.
func (q *Queue) Status(ctx context.Context, jobID string) (JobStatus, error) {
	data, err := q.status.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return JobStatus{}, ErrJobNotFound
		}
		return JobStatus{}, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return decodeStatus(data)
}

func (q *Queue) setStatus(ctx context.Context, jobID string, st JobStatus) error {
	encoded, err := encodeStatus(st)
	if err != nil {
		return err
	}
	if err := q.status.Put(ctx, jobID, encoded, q.config.StatusTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// pop blocks up to timeout for the next job. A nil job with nil error
// means the wait timed out.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.redis.BRPop(ctx, timeout, q.listKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected BRPOP reply", ErrQueueUnavailable)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("notify: malformed job: %w", err)
	}
	return &job, nil
}
