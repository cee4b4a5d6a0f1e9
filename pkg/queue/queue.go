// Package queue implements the ordered, bounded command queue. Admission is
// FIFO with backpressure; a periodic drain dispatches buffered commands onto
// the task executor, one fresh connection per command
package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/dbflux/pkg/async"
	"github.com/fluxorio/dbflux/pkg/command"
	"github.com/fluxorio/dbflux/pkg/db"
	"github.com/fluxorio/dbflux/pkg/logging"
	obs "github.com/fluxorio/dbflux/pkg/observability/prometheus"
)

// RejectReason classifies an admission-time failure
type RejectReason string

const (
	ReasonFull   RejectReason = "full"
	ReasonClosed RejectReason = "closed"
)

// RejectedError is returned (through the future) when a command cannot be
// admitted to the queue
type RejectedError struct {
	Reason RejectReason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("queue rejected command: %s", e.Reason)
}

// Config configures a command queue
type Config struct {
	// Capacity is the maximum number of buffered commands
	Capacity int

	// DrainInterval is the period between drain passes
	DrainInterval time.Duration

	// EnqueueTimeout bounds how long Enqueue blocks waiting for buffer space
	EnqueueTimeout time.Duration

	// ShutdownGrace bounds how long Close waits for in-flight commands
	ShutdownGrace time.Duration
}

// DefaultConfig returns queue defaults
func DefaultConfig() Config {
	return Config{
		Capacity:       1000,
		DrainInterval:  100 * time.Millisecond,
		EnqueueTimeout: 5 * time.Second,
		ShutdownGrace:  30 * time.Second,
	}
}

// Validate fails fast on out-of-range queue configuration
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("queue: Capacity must be positive, got %d", c.Capacity)
	}
	if c.DrainInterval <= 0 {
		return fmt.Errorf("queue: DrainInterval must be positive, got %v", c.DrainInterval)
	}
	if c.EnqueueTimeout < 0 || c.ShutdownGrace < 0 {
		return fmt.Errorf("queue: timeouts cannot be negative")
	}
	return nil
}

// queued pairs a command with its pending result. Every queued command that
// is admitted is eventually completed, failed, or rejected at admission,
// never silently dropped
type queued struct {
	id      uuid.UUID
	cmd     *command.Command
	promise *async.Promise[interface{}]
}

// QueueInfo is a point-in-time view of queue state
type QueueInfo struct {
	Size      int   // Commands currently buffered
	Remaining int   // Free buffer slots
	Processed int64 // Commands dispatched and completed successfully
	Failed    int64 // Commands dispatched and failed
	Running   bool  // Drain loop active
}

// SuccessRate returns processed / (processed + failed), or 1.0 when no
// command has completed yet
func (i QueueInfo) SuccessRate() float64 {
	total := i.Processed + i.Failed
	if total == 0 {
		return 1.0
	}
	return float64(i.Processed) / float64(total)
}

// NearCapacity reports whether the buffer is more than 80% full
func (i QueueInfo) NearCapacity() bool {
	total := i.Size + i.Remaining
	return total > 0 && float64(i.Size)/float64(total) > 0.8
}

// Queue is the ordered command buffer plus its drain loop and executor
type Queue struct {
	config   Config
	buf      chan *queued
	provider db.Provider
	exec     *async.Executor
	logger   logging.Logger
	metrics  *obs.Metrics

	running  atomic.Bool
	closed   atomic.Bool
	stopCh   chan struct{}
	loopDone chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a stopped queue; call Start to begin draining.
// logger and metrics may be nil
func New(config Config, provider db.Provider, logger logging.Logger, metrics *obs.Metrics) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Queue{
		config:   config,
		buf:      make(chan *queued, config.Capacity),
		provider: provider,
		exec:     async.NewExecutor(logger),
		logger:   logging.OrNop(logger),
		metrics:  metrics,
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}, nil
}

// Start launches the periodic drain loop. Subsequent calls are no-ops
func (q *Queue) Start() {
	if q.closed.Load() || !q.running.CompareAndSwap(false, true) {
		return
	}
	go q.loop()
	q.logger.Infof("command queue started (capacity=%d interval=%v)",
		q.config.Capacity, q.config.DrainInterval)
}

func (q *Queue) loop() {
	defer close(q.loopDone)
	ticker := time.NewTicker(q.config.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			q.drain()
		case <-q.stopCh:
			return
		}
	}
}

// Enqueue admits cmd with the configured default timeout
func (q *Queue) Enqueue(cmd *command.Command) *async.Future[interface{}] {
	return q.EnqueueTimeout(cmd, q.config.EnqueueTimeout)
}

// EnqueueTimeout admits cmd, blocking up to timeout for buffer space.
// The returned future fails with *RejectedError when the queue is closed or
// no space frees in time; an admitted command is never discarded
func (q *Queue) EnqueueTimeout(cmd *command.Command, timeout time.Duration) *async.Future[interface{}] {
	if q.closed.Load() {
		q.observeRejected()
		return async.Failed[interface{}](&RejectedError{Reason: ReasonClosed})
	}

	item := &queued{
		id:      uuid.New(),
		cmd:     cmd,
		promise: async.NewPromise[interface{}](),
	}

	select {
	case q.buf <- item:
		q.observeDepth()
		return &item.promise.Future
	default:
	}

	if timeout <= 0 {
		q.observeRejected()
		return async.Failed[interface{}](&RejectedError{Reason: ReasonFull})
	}

	// Buffer full: block the caller up to timeout. This is deliberate
	// backpressure
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.buf <- item:
		q.observeDepth()
		return &item.promise.Future
	case <-timer.C:
		q.observeRejected()
		return async.Failed[interface{}](&RejectedError{Reason: ReasonFull})
	}
}

// drain pulls every currently buffered command and dispatches each onto the
// executor without waiting for the previous dispatch to finish. Admission
// order is preserved for dispatch; completion order is not guaranteed
func (q *Queue) drain() {
	for {
		select {
		case item := <-q.buf:
			q.dispatch(item)
		default:
			q.observeDepth()
			return
		}
	}
}

func (q *Queue) dispatch(item *queued) {
	id, cmd, promise := item.id, item.cmd, item.promise

	future := async.Submit(q.exec, cmd.Describe(), func(ctx context.Context) (interface{}, error) {
		if cmd.Noop() {
			return []int64{}, nil
		}
		conn, err := q.provider.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer q.provider.Release(conn)
		return command.Run(ctx, conn, cmd, q.logger)
	})

	future.OnSuccess(func(result interface{}) {
		q.processed.Add(1)
		if q.metrics != nil {
			q.metrics.QueueProcessed.Inc()
		}
		promise.Complete(result)
	})
	future.OnFailure(func(err error) {
		q.failed.Add(1)
		if q.metrics != nil {
			q.metrics.QueueFailed.Inc()
		}
		q.logger.Errorf("queued command %s failed: %s: %v", id, cmd.Describe(), err)
		promise.Fail(err)
	})
}

// Close stops the drain loop, flushes remaining buffered commands with one
// final drain pass, then shuts down the executor with the configured grace
// period. Idempotent
func (q *Queue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	q.logger.Infof("closing command queue")

	if q.running.Load() {
		close(q.stopCh)
		<-q.loopDone
		q.running.Store(false)
	}

	// Flush what is still buffered so no admitted command is dropped
	q.drain()

	ctx, cancel := context.WithTimeout(context.Background(), q.config.ShutdownGrace)
	defer cancel()
	err := q.exec.Shutdown(ctx)

	q.logger.Infof("command queue closed (processed=%d failed=%d)",
		q.processed.Load(), q.failed.Load())
	return err
}

// Info returns a snapshot of queue state
func (q *Queue) Info() QueueInfo {
	size := len(q.buf)
	return QueueInfo{
		Size:      size,
		Remaining: q.config.Capacity - size,
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Running:   q.running.Load() && !q.closed.Load(),
	}
}

func (q *Queue) observeDepth() {
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.buf)))
	}
}

func (q *Queue) observeRejected() {
	if q.metrics != nil {
		q.metrics.QueueRejected.Inc()
	}
}
