package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDuplicateJob is returned when a job with the same key is already waiting for a worker.
var ErrDuplicateJob = errors.New("job already queued")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is an in-memory job dispatcher backed by goroutines. Jobs carrying a Key are
// deduplicated while they wait: a second job with the same key is rejected until a worker
// picks the first one up. A job enqueued while its twin is running is accepted.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	keys    map[string]struct{}
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
		keys:       make(map[string]struct{}),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue pushes a job onto the queue.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Key != "" {
		if _, exists := q.keys[job.Key]; exists {
			q.mu.Unlock()
			return ErrDuplicateJob
		}
		q.keys[job.Key] = struct{}{}
	}
	ctx := q.ctx
	q.mu.Unlock()

	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		q.release(job)
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

// Pending reports how many keyed jobs are waiting for a worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.keys)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.release(job)
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *Queue) release(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	delete(q.keys, job.Key)
	q.mu.Unlock()
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Error("job exceeded retries", zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
		return
	}
	q.logger.Warn("job failed, retrying", zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err))

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			err := q.Enqueue(j)
			switch {
			case errors.Is(err, ErrDuplicateJob):
				q.logger.Debug("retry superseded by waiting job", zap.String("queue", q.name), zap.String("job_id", j.ID), zap.String("key", j.Key))
			case err != nil:
				q.logger.Error("failed to requeue job", zap.String("queue", q.name), zap.String("job_id", j.ID), zap.Error(err))
			}
		}
	}(job)
}
