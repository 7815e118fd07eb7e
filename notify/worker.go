package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Handler processes one job and returns a result string for the status
// record. Returned errors mark the job failed; they are recorded, not
// retried.
type Handler func(ctx context.Context, job Job) (string, error)

// WorkerConfig tunes worker polling and outbound throttling.
type WorkerConfig struct {
	// PollTimeout bounds each blocking wait for work. Default 5s.
	PollTimeout time.Duration
	// SendsPerSecond throttles handler invocations, protecting the
	// downstream mail relay. Zero disables throttling.
	SendsPerSecond float64
	// SendBurst is the throttle burst size. Default 1 when throttled.
	SendBurst int
}

// Worker drains a [Queue], dispatching jobs to registered handlers and
// recording status transitions pending -> running -> completed/failed.
type Worker struct {
	queue    *Queue
	handlers map[string]Handler
	limiter  *rate.Limiter
	logger   *slog.Logger
	config   WorkerConfig
}

// NewWorker creates a [Worker] for queue. Handlers are registered before
// Run; registration is not concurrency-safe.
func NewWorker(queue *Queue, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.SendsPerSecond > 0 {
		burst := cfg.SendBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), burst)
	}

	return &Worker{
		queue:    queue,
		handlers: map[string]Handler{},
		limiter:  limiter,
		logger:   logger,
		config:   cfg,
	}
}

// Register binds handler to jobType, replacing any previous binding.
func (w *Worker) Register(jobType string, handler Handler) {
	w.handlers[jobType] = handler
}

// Run processes jobs until ctx is cancelled. It returns ctx.Err() on
// cancellation and a queue error if the backing store becomes unusable.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.queue.pop(ctx, w.config.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if job == nil {
			continue
		}

		w.process(ctx, *job)
	}
}

// RunOne pops and processes at most one job; used by tests and by callers
// embedding the worker in their own loop. Returns false when no job was
// available within the poll timeout.
func (w *Worker) RunOne(ctx context.Context) (bool, error) {
	job, err := w.queue.pop(ctx, w.config.PollTimeout)
	if err != nil || job == nil {
		return false, err
	}
	w.process(ctx, *job)
	return true, nil
}

func (w *Worker) process(ctx context.Context, job Job) {
	now := time.Now().UTC()
	if err := w.queue.setStatus(ctx, job.ID, JobStatus{State: StateRunning, UpdatedAt: now}); err != nil {
		w.logger.Warn("job status update failed", "job_id", job.ID, "error", err)
	}

	handler, ok := w.handlers[job.Type]
	if !ok {
		w.finish(ctx, job, "", fmt.Errorf("no handler registered for job type %q", job.Type))
		return
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			w.finish(ctx, job, "", err)
			return
		}
	}

	result, err := handler(ctx, job)
	w.finish(ctx, job, result, err)
}

func (w *Worker) finish(ctx context.Context, job Job, result string, err error) {
	// Status writes race ctx cancellation; use a short detached context so
	// a mid-job disconnect still records the terminal state.
	if ctx.Err() != nil && !errors.Is(err, context.Canceled) {
		detached, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ctx = detached
	}

	st := JobStatus{State: StateCompleted, Result: result, UpdatedAt: time.Now().UTC()}
	if err != nil {
		st = JobStatus{State: StateFailed, Error: err.Error(), UpdatedAt: time.Now().UTC()}
		w.logger.Warn("job failed", "job_id", job.ID, "job_type", job.Type, "error", err)
	}

	if serr := w.queue.setStatus(ctx, job.ID, st); serr != nil {
		w.logger.Warn("job status update failed", "job_id", job.ID, "error", serr)
	}
}
