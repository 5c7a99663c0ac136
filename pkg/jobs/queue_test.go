package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	var wg sync.WaitGroup
	wg.Add(3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		wg.Done()
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "noop"}))
	}
	wg.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueRejectsDuplicateKey(t *testing.T) {
	started := make(chan string, 4)
	release := make(chan struct{})
	var runs int32
	q := NewQueue("dedupe", func(ctx context.Context, job Job) error {
		started <- job.ID
		<-release
		atomic.AddInt32(&runs, 1)
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Key: "student-1"}))
	assert.Equal(t, "1", <-started)
	assert.Zero(t, q.Pending())

	require.NoError(t, q.Enqueue(Job{ID: "2", Key: "student-1"}))
	err := q.Enqueue(Job{ID: "3", Key: "student-1"})
	assert.ErrorIs(t, err, ErrDuplicateJob)
	assert.Equal(t, 1, q.Pending())

	close(release)
	assert.Equal(t, "2", <-started)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 2 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, q.Pending())
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("boom")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "r", Key: "k"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
}
