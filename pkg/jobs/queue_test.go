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

func TestEnqueueFailsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, Config{})

	err := q.Enqueue(Job{ID: "job-1", Kind: "noop"})
	require.Error(t, err)
}

func TestStopDrainsBufferedJobs(t *testing.T) {
	var handled int64
	q := NewQueue("test", func(_ context.Context, job Job) error {
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&handled, 1)
		return nil
	}, Config{Workers: 1, Buffer: 16})

	q.Start(context.Background())
	for i := 0; i < 8; i++ {
		require.NoError(t, q.Enqueue(Job{Kind: "noop"}))
	}
	q.Stop()

	assert.Equal(t, int64(8), atomic.LoadInt64(&handled))
}

func TestFailedJobIsRetried(t *testing.T) {
	var mu sync.Mutex
	attempts := []int{}
	done := make(chan struct{})

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempt)
		mu.Unlock()
		if job.Attempt == 0 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, Config{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{ID: "job-1", Kind: "flaky"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1}, attempts)
}

func TestStopRefusesNewJobs(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, Config{})
	q.Start(context.Background())
	q.Stop()

	err := q.Enqueue(Job{Kind: "noop"})
	require.Error(t, err)
}
