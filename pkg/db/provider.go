package db

import (
	"context"
	"database/sql"
	"errors"
)

// ErrUnavailable indicates the provider is closed or exhausted and cannot
// hand out a connection
var ErrUnavailable = errors.New("db: connection unavailable")

// Provider hands out and reclaims pooled database connections.
// A connection returned by Acquire is owned exclusively by the caller until
// it is passed back to Release; Release must be called exactly once per
// successful Acquire, on every exit path
type Provider interface {
	// Acquire returns a live connection, blocking until one is available,
	// the configured acquire timeout elapses, or ctx is cancelled
	Acquire(ctx context.Context) (*sql.Conn, error)

	// Release returns a connection to the pool
	Release(conn *sql.Conn)

	// Healthy reports whether the provider can still serve connections
	Healthy() bool

	// Snapshot returns point-in-time pool occupancy statistics
	Snapshot() PoolInfo

	// Close tears down the pool and all idle connections
	Close() error
}

// PoolInfo is a point-in-time view of pool occupancy. It is recomputed
// fresh on every Snapshot call, never cached
type PoolInfo struct {
	Total   int   // Open connections, in use plus idle
	Active  int   // Connections currently in use
	Idle    int   // Idle connections
	Waiters int64 // Total acquisitions that had to wait
	Max     int   // Maximum pool size
}

// UtilizationRate returns the fraction of the pool in use (0.0 to 1.0)
func (i PoolInfo) UtilizationRate() float64 {
	if i.Max <= 0 {
		return 0.0
	}
	return float64(i.Active) / float64(i.Max)
}

// NearCapacity reports whether utilization exceeds 80%
func (i PoolInfo) NearCapacity() bool {
	return i.UtilizationRate() > 0.8
}
