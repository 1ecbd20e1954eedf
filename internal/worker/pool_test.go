package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
)

type mockHandler struct {
	delay   time.Duration
	failOn  map[string]error
	handled *atomic.Int32
	closed  *atomic.Int32
	// retireOn retires the handler after it handles that target.
	retireOn string
	retired  bool
}

func (m *mockHandler) Handle(ctx context.Context, job Job) error {
	m.handled.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if job.Target.ID == m.retireOn {
		m.retired = true
	}
	return m.failOn[job.Target.ID]
}

func (m *mockHandler) Retired() bool { return m.retired }

func (m *mockHandler) Close() error {
	m.closed.Add(1)
	return nil
}

type harness struct {
	handled  atomic.Int32
	closed   atomic.Int32
	created  atomic.Int32
	attempts atomic.Int32
	delay    time.Duration
	failOn   map[string]error
	startErr error
	// failStarts fails that many factory calls before succeeding.
	failStarts int32
	retireOn   string
}

func (h *harness) factory(ctx context.Context, id int) (Handler, error) {
	if h.startErr != nil {
		return nil, h.startErr
	}
	if h.attempts.Add(1) <= h.failStarts {
		return nil, errs.New(errs.KindTransientNetwork, "proxy refused connection")
	}
	h.created.Add(1)
	return &mockHandler{delay: h.delay, failOn: h.failOn, handled: &h.handled, closed: &h.closed, retireOn: h.retireOn}, nil
}

func job(i int) Job {
	return Job{Seq: i, Target: models.Target{ID: fmt.Sprintf("t%d", i), Mode: models.ModeURL}}
}

// run submits n jobs and collects every result.
func run(t *testing.T, pool *Pool, n int) []Result {
	t.Helper()
	var results []Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range pool.Results() {
			results = append(results, r)
		}
	}()

	pool.Start()
	for i := 0; i < n; i++ {
		if err := pool.Submit(job(i)); err != nil {
			break
		}
	}
	pool.Stop()
	wg.Wait()
	return results
}

func TestPoolProcessesAllJobs(t *testing.T) {
	h := &harness{delay: 5 * time.Millisecond}
	pool := NewPool(context.Background(), 3, h.factory, logger.NewNopLogger())

	results := run(t, pool, 10)

	assert.Len(t, results, 10)
	assert.Equal(t, int32(10), h.handled.Load())
	assert.LessOrEqual(t, h.created.Load(), int32(3), "one handler per worker")
	assert.Equal(t, h.created.Load(), h.closed.Load(), "every handler is closed")
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestPoolReportsTargetErrors(t *testing.T) {
	blocked := errs.New(errs.KindTerminalBlock, "blocked")
	h := &harness{failOn: map[string]error{"t1": blocked}}
	pool := NewPool(context.Background(), 1, h.factory, logger.NewNopLogger())

	results := run(t, pool, 3)

	require.Len(t, results, 3)
	assert.ErrorIs(t, results[1].Err, blocked)
	assert.NoError(t, results[2].Err, "target-level errors do not stop the worker")
}

func TestPoolStopsWorkerOnSessionLoss(t *testing.T) {
	expired := errs.New(errs.KindSessionExpired, "login wall")
	h := &harness{failOn: map[string]error{"t1": expired}}
	pool := NewPool(context.Background(), 1, h.factory, logger.NewNopLogger())

	results := run(t, pool, 6)

	require.Len(t, results, 2)
	assert.True(t, errs.IsSessionLevel(results[1].Err))
	assert.Equal(t, 0, pool.Live())
	assert.Equal(t, int32(1), h.closed.Load())
}

func TestPoolFactoryFailure(t *testing.T) {
	h := &harness{startErr: errs.New(errs.KindAuthFailure, "bad credentials")}
	pool := NewPool(context.Background(), 2, h.factory, logger.NewNopLogger())

	results := run(t, pool, 5)

	assert.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2, "each worker reports one failure then exits")
	for _, r := range results {
		assert.Equal(t, errs.KindAuthFailure, errs.KindOf(r.Err))
	}
	assert.Equal(t, int32(0), h.handled.Load())
}

func TestPoolRequeuesJobWhenSessionStartFails(t *testing.T) {
	h := &harness{failStarts: 1, delay: 5 * time.Millisecond}
	pool := NewPool(context.Background(), 2, h.factory, logger.NewNopLogger())

	results := run(t, pool, 3)

	require.Len(t, results, 4, "three jobs plus the handed-back start failure")
	handled := map[string]bool{}
	requeued := 0
	for _, r := range results {
		if r.Requeued {
			requeued++
			assert.Equal(t, errs.KindTransientNetwork, errs.KindOf(r.Err))
			continue
		}
		assert.NoError(t, r.Err)
		handled[r.Job.Target.ID] = true
	}
	assert.Equal(t, 1, requeued)
	assert.Equal(t, map[string]bool{"t0": true, "t1": true, "t2": true}, handled)
	assert.Equal(t, int32(3), h.handled.Load())
}

func TestPoolLastWorkerDoesNotRequeue(t *testing.T) {
	h := &harness{failStarts: 1}
	pool := NewPool(context.Background(), 1, h.factory, logger.NewNopLogger())

	results := run(t, pool, 3)

	require.NotEmpty(t, results)
	assert.False(t, results[0].Requeued)
	assert.Error(t, results[0].Err)
	assert.Equal(t, int32(0), h.handled.Load())
}

func TestPoolReplacesRetiredHandler(t *testing.T) {
	h := &harness{retireOn: "t0"}
	pool := NewPool(context.Background(), 1, h.factory, logger.NewNopLogger())

	results := run(t, pool, 3)

	require.Len(t, results, 3)
	assert.Equal(t, int32(2), h.created.Load(), "a fresh handler after the first retires")
	assert.Equal(t, int32(2), h.closed.Load())
}

func TestPoolAbort(t *testing.T) {
	h := &harness{delay: 20 * time.Millisecond}
	pool := NewPool(context.Background(), 1, h.factory, logger.NewNopLogger())

	var results []Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results = append(results, r)
			pool.Abort()
		}
	}()

	pool.Start()
	for i := 0; i < 5; i++ {
		if err := pool.Submit(job(i)); err != nil {
			assert.True(t, errors.Is(err, ErrPoolClosed))
			break
		}
	}
	pool.Stop()
	<-done

	assert.Less(t, len(results), 5)
	assert.Less(t, h.handled.Load(), int32(5))
}

func TestPoolCancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &harness{}
	pool := NewPool(ctx, 2, h.factory, logger.NewNopLogger())

	assert.ErrorIs(t, pool.Submit(job(0)), ErrPoolClosed)
	pool.Start()
	pool.Stop()
	for range pool.Results() {
		t.Error("no results expected")
	}
}
