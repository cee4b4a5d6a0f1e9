package dbflux

import (
	"fmt"

	"github.com/fluxorio/dbflux/pkg/async"
	"github.com/fluxorio/dbflux/pkg/db"
	"github.com/fluxorio/dbflux/pkg/queue"
)

// DatabaseInfo is a read-only composite snapshot of facade state,
// recomputed fresh on every Info call
type DatabaseInfo struct {
	Active   bool
	Pool     db.PoolInfo
	Executor async.ExecutorInfo
	Queue    queue.QueueInfo
}

// SuccessRate returns the fraction of dispatched queue commands that
// completed successfully, 1.0 when none have completed yet
func (i DatabaseInfo) SuccessRate() float64 {
	return i.Queue.SuccessRate()
}

// Status returns a short human-readable state summary
func (i DatabaseInfo) Status() string {
	if !i.Active {
		return "database closed"
	}
	return fmt.Sprintf("active - pool: %d/%d, queue: %d, processed: %d",
		i.Pool.Active, i.Pool.Max, i.Queue.Size, i.Queue.Processed)
}

// Info returns the current composite snapshot. After shutdown only the
// Active flag is meaningful
func (d *DB) Info() DatabaseInfo {
	if d.closed.Load() {
		return DatabaseInfo{Active: false}
	}
	return DatabaseInfo{
		Active:   true,
		Pool:     d.provider.Snapshot(),
		Executor: d.exec.Info(),
		Queue:    d.queue.Info(),
	}
}
