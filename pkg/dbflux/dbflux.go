// Package dbflux is the execution facade: it composes the connection pool,
// the retry policy, the concurrent task executor and the command queue into
// the asynchronous database API callers use
package dbflux

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/fluxorio/dbflux/pkg/async"
	"github.com/fluxorio/dbflux/pkg/command"
	"github.com/fluxorio/dbflux/pkg/config"
	"github.com/fluxorio/dbflux/pkg/db"
	"github.com/fluxorio/dbflux/pkg/events"
	"github.com/fluxorio/dbflux/pkg/logging"
	obs "github.com/fluxorio/dbflux/pkg/observability/prometheus"
	"github.com/fluxorio/dbflux/pkg/observability/tracing"
	"github.com/fluxorio/dbflux/pkg/queue"
	"github.com/fluxorio/dbflux/pkg/retry"
)

// ErrClosed is returned by every operation invoked after Shutdown has begun
var ErrClosed = errors.New("dbflux: database is closed")

// DB is the execution facade. It exclusively owns the provider, the
// executor and the queue, and closes them in that documented order on
// Shutdown
type DB struct {
	cfg      *config.Config
	provider db.Provider
	exec     *async.Executor
	queue    *queue.Queue
	policy   retry.Policy
	logger   logging.Logger
	metrics  *obs.Metrics
	notifier *events.Notifier
	closed   atomic.Bool
}

// Option customizes facade construction
type Option func(*DB)

// WithLogger sets the logger shared by all components
func WithLogger(l logging.Logger) Option {
	return func(d *DB) { d.logger = l }
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *obs.Metrics) Option {
	return func(d *DB) { d.metrics = m }
}

// WithNotifier enables lifecycle event publication
func WithNotifier(n *events.Notifier) Option {
	return func(d *DB) { d.notifier = n }
}

// WithProvider substitutes the connection provider. Intended for embedding
// dbflux over an already-configured pool
func WithProvider(p db.Provider) Option {
	return func(d *DB) { d.provider = p }
}

// New builds and starts the facade: the configuration is validated, the
// pool is opened and verified, and the command queue begins draining
func New(cfg *config.Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &DB{
		cfg:    cfg,
		policy: cfg.RetryPolicy(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.OrNop(d.logger)

	if d.provider == nil {
		pool, err := db.NewPool(cfg.PoolConfig(), d.logger)
		if err != nil {
			return nil, err
		}
		d.provider = pool
	}

	d.exec = async.NewExecutor(d.logger)

	q, err := queue.New(cfg.QueueConfig(), d.provider, d.logger, d.metrics)
	if err != nil {
		d.provider.Close()
		return nil, err
	}
	d.queue = q
	d.queue.Start()

	d.logger.Infof("dbflux initialized (driver=%s)", cfg.Database.Driver)
	d.notifier.Publish(events.SubjectReady, map[string]interface{}{
		"driver":         cfg.Database.Driver,
		"max_open_conns": cfg.Database.MaxOpenConns,
		"queue_capacity": cfg.Queue.Capacity,
	})
	return d, nil
}

// ExecuteUpdate runs an INSERT/UPDATE/DELETE asynchronously and resolves
// with the affected-row count
func (d *DB) ExecuteUpdate(sqlText string, args ...interface{}) *async.Future[int64] {
	if d.closed.Load() {
		return async.Failed[int64](ErrClosed)
	}
	return typed[int64](d.executeCommand(command.Update(sqlText, args...)))
}

// ExecuteQuery runs a SELECT asynchronously, streaming the result set
// through mapper exactly once, and resolves with the mapped value
func (d *DB) ExecuteQuery(sqlText string, mapper command.RowMapper, args ...interface{}) *async.Future[interface{}] {
	if d.closed.Load() {
		return async.Failed[interface{}](ErrClosed)
	}
	return d.executeCommand(command.Query(sqlText, mapper, args...))
}

// ExecuteBatch runs one statement per parameter set asynchronously and
// resolves with the per-set affected-row counts. An empty parameter-set
// list resolves immediately without acquiring a connection
func (d *DB) ExecuteBatch(sqlText string, paramSets [][]interface{}) *async.Future[[]int64] {
	if d.closed.Load() {
		return async.Failed[[]int64](ErrClosed)
	}
	cmd := command.Batch(sqlText, paramSets)
	if cmd.Noop() {
		return async.Completed([]int64{})
	}
	return typed[[]int64](d.executeCommand(cmd))
}

// ExecuteTransaction runs the commands as one atomic unit of work and
// resolves with the transaction outcome. All member effects are committed
// or none are; the failure identifies the failed member's position
func (d *DB) ExecuteTransaction(commands ...*command.Command) *async.Future[command.TxOutcome] {
	if d.closed.Load() {
		return async.Failed[command.TxOutcome](ErrClosed)
	}
	return typed[command.TxOutcome](d.executeCommand(command.Transaction(commands...)))
}

// Enqueue defers cmd to the command queue for ordered admission and
// periodic dispatch
func (d *DB) Enqueue(cmd *command.Command) *async.Future[interface{}] {
	if d.closed.Load() {
		return async.Failed[interface{}](ErrClosed)
	}
	return d.queue.Enqueue(cmd)
}

// executeCommand submits the unit of work acquire -> run -> release to the
// executor, wrapped in the configured retry policy
func (d *DB) executeCommand(cmd *command.Command) *async.Future[interface{}] {
	kind := cmd.Kind().String()
	started := time.Now()

	future := async.Submit(d.exec, cmd.Describe(), func(ctx context.Context) (interface{}, error) {
		ctx, span := tracing.StartCommandSpan(ctx, kind, cmd.Describe())
		result, err := retry.Do(ctx, d.policy, func(ctx context.Context) (interface{}, error) {
			conn, err := d.provider.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			defer d.provider.Release(conn)
			return command.Run(ctx, conn, cmd, d.logger)
		})
		tracing.EndCommandSpan(span, err)
		return result, err
	})

	future.OnSuccess(func(interface{}) {
		d.observeCommand(kind, "ok", started)
	})
	future.OnFailure(func(err error) {
		d.observeCommand(kind, "error", started)
		d.logger.Errorf("command failed: %s: %v", cmd.Describe(), err)
		d.notifier.Publish(events.SubjectCommandFailed, map[string]interface{}{
			"command": cmd.Describe(),
			"error":   err.Error(),
		})
	})
	return future
}

func (d *DB) observeCommand(kind, status string, started time.Time) {
	if d.metrics == nil {
		return
	}
	d.metrics.CommandsTotal.WithLabelValues(kind, status).Inc()
	d.metrics.CommandDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	snap := d.provider.Snapshot()
	d.metrics.ObservePool(snap.Total, snap.Idle, snap.Active)
}

// Healthy reports whether the facade can still serve work: not shut down,
// provider healthy and executor active
func (d *DB) Healthy() bool {
	return !d.closed.Load() && d.provider.Healthy() && d.exec.Active()
}

// Shutdown closes the queue, then the executor, then the provider. Each
// step is best-effort: a failure is logged and the remaining steps still
// run. Idempotent; every operation invoked afterwards fails with ErrClosed
func (d *DB) Shutdown(ctx context.Context) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.logger.Infof("shutting down dbflux")

	var firstErr error
	if err := d.queue.Close(); err != nil {
		d.logger.Errorf("queue close: %v", err)
		firstErr = err
	}

	grace := d.cfg.Executor.ShutdownGrace.Std()
	execCtx := ctx
	if grace > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, grace)
		defer cancel()
	}
	if err := d.exec.Shutdown(execCtx); err != nil {
		d.logger.Errorf("executor shutdown: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := d.provider.Close(); err != nil {
		d.logger.Errorf("provider close: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	d.notifier.Publish(events.SubjectClosed, nil)
	d.logger.Infof("dbflux shut down")
	return firstErr
}

// typed bridges an untyped command result future to a typed one
func typed[T any](f *async.Future[interface{}]) *async.Future[T] {
	return async.Then(f, func(value interface{}) (T, error) {
		result, ok := value.(T)
		if !ok {
			var zero T
			return zero, errors.New("dbflux: unexpected command result type")
		}
		return result, nil
	})
}
