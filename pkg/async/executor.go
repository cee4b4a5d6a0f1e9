package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/dbflux/pkg/logging"
)

// ErrExecutorClosed is returned by Submit after Shutdown has begun
var ErrExecutorClosed = errors.New("executor is closed")

// ExecutorInfo is a point-in-time snapshot of executor state
type ExecutorInfo struct {
	Active         bool  // Executor accepts submissions
	ActiveTasks    int64 // Tasks currently running
	SubmittedTasks int64 // Total tasks accepted since start
}

// Executor runs each submitted unit of work on its own goroutine.
// There is no fixed worker cap: goroutines are cheap enough that one per
// task is acceptable, and true concurrency against the database is bounded
// by the connection pool and the command queue, not by this substrate
type Executor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logging.Logger

	mu     sync.RWMutex
	closed bool

	activeTasks    int64
	submittedTasks int64
}

// NewExecutor creates a new Executor.
// logger may be nil
func NewExecutor(logger logging.Logger) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		ctx:    ctx,
		cancel: cancel,
		logger: logging.OrNop(logger),
	}
}

// Submit schedules fn on its own goroutine and returns a future for its
// result. The function receives the executor's context, which is cancelled
// when the grace period elapses during Shutdown.
// After Shutdown has begun the returned future is already failed with
// ErrExecutorClosed
func Submit[T any](e *Executor, name string, fn func(ctx context.Context) (T, error)) *Future[T] {
	e.mu.RLock()
	closed := e.closed
	if !closed {
		// Reserve the slot under the read lock so Shutdown's Wait cannot
		// start between the closed check and wg.Add
		e.wg.Add(1)
	}
	e.mu.RUnlock()

	if closed {
		return Failed[T](ErrExecutorClosed)
	}

	atomic.AddInt64(&e.submittedTasks, 1)
	atomic.AddInt64(&e.activeTasks, 1)

	promise := NewPromise[T]()
	go func() {
		defer e.wg.Done()
		defer atomic.AddInt64(&e.activeTasks, -1)

		result, err := fn(e.ctx)
		if err != nil {
			e.logger.Debugf("task %s failed: %v", name, err)
			promise.Fail(err)
			return
		}
		promise.Complete(result)
	}()

	return &promise.Future
}

// Shutdown stops accepting new submissions, waits for in-flight tasks until
// ctx expires, then cancels the executor context to interrupt the remainder.
// Returns an error if the grace period elapsed before all tasks finished
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		// Grace period elapsed: force-cancel remaining tasks
		e.cancel()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
		return fmt.Errorf("executor shutdown: %w", ctx.Err())
	}
}

// Active reports whether the executor accepts submissions
func (e *Executor) Active() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Info returns a snapshot of executor state
func (e *Executor) Info() ExecutorInfo {
	return ExecutorInfo{
		Active:         e.Active(),
		ActiveTasks:    atomic.LoadInt64(&e.activeTasks),
		SubmittedTasks: atomic.LoadInt64(&e.submittedTasks),
	}
}
