package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, cfg QueueConfig) (*miniredis.Miniredis, *Queue) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis.Run")
	t.Cleanup(mr.Close)

	return mr, NewQueue(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg)
}

func TestEnqueueSetsPendingStatus(t *testing.T) {
	_, q := newTestQueue(t, QueueConfig{})
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, "send_verification_email", []byte(`{"email":"a@b.c"}`))
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	status, err := q.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, status.State)
	assert.False(t, status.UpdatedAt.IsZero())
}

func TestEnqueueRejectsEmptyType(t *testing.T) {
	_, q := newTestQueue(t, QueueConfig{})

	_, err := q.Enqueue(context.Background(), "", nil)
	require.Error(t, err)
}

func TestEnqueueOrderIsFIFO(t *testing.T) {
	_, q := newTestQueue(t, QueueConfig{})
	ctx := context.Background()

	first, err := q.Enqueue(ctx, "job", []byte(`1`))
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, "job", []byte(`2`))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	job, err := q.pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, first, job.ID)

	job, err = q.pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, second, job.ID)
}

func TestStatusUnknownJob(t *testing.T) {
	_, q := newTestQueue(t, QueueConfig{})

	_, err := q.Status(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStatusExpiresAfterRetention(t *testing.T) {
	mr, q := newTestQueue(t, QueueConfig{StatusTTL: time.Minute})
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, "job", nil)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = q.Status(ctx, jobID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStatusIsRepeatable(t *testing.T) {
	_, q := newTestQueue(t, QueueConfig{})
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, "job", nil)
	require.NoError(t, err)

	// Polling does not consume the record.
	for i := 0; i < 3; i++ {
		status, err := q.Status(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, StatePending, status.State)
	}
}

func TestStatusRejectsForeignRecord(t *testing.T) {
	mr, q := newTestQueue(t, QueueConfig{})
	ctx := context.Background()

	// A record that is not a versioned status blob must be rejected, not
	// interpreted.
	require.NoError(t, mr.Set("jobs:status:bad-job", "completed"))
	mr.SetTTL("jobs:status:bad-job", time.Hour)

	_, err := q.Status(ctx, "bad-job")
	assert.ErrorIs(t, err, errStatusRecordMalformed)
}

func TestEnqueueQueueOutage(t *testing.T) {
	mr, q := newTestQueue(t, QueueConfig{})
	mr.Close()

	_, err := q.Enqueue(context.Background(), "job", nil)
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}
