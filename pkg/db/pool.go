package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fluxorio/dbflux/pkg/logging"
)

// PoolConfig configures the connection pool (HikariCP-style knobs)
type PoolConfig struct {
	// DSN is the database connection string
	DSN string

	// DriverName is the registered database/sql driver (e.g. "postgres",
	// "pgx", "sqlite3")
	DriverName string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections kept around
	MaxIdleConns int

	// ConnMaxLifetime is the maximum amount of time a connection may be reused
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime is the maximum amount of time a connection may sit idle
	ConnMaxIdleTime time.Duration

	// AcquireTimeout bounds how long Acquire waits for a free connection
	AcquireTimeout time.Duration
}

// DefaultPoolConfig returns pool defaults for the given DSN and driver
func DefaultPoolConfig(dsn string, driverName string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		DriverName:      driverName,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		AcquireTimeout:  10 * time.Second,
	}
}

// Validate fails fast on inconsistent pool configuration
func (c PoolConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("db: DSN cannot be empty")
	}
	if c.DriverName == "" {
		return fmt.Errorf("db: DriverName cannot be empty")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("db: MaxOpenConns must be positive, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("db: MaxIdleConns cannot be negative, got %d", c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("db: MaxIdleConns (%d) cannot exceed MaxOpenConns (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 || c.AcquireTimeout < 0 {
		return fmt.Errorf("db: pool timeouts cannot be negative")
	}
	return nil
}

// Pool is a Provider backed by database/sql's built-in connection pool.
// Acquire hands out a *sql.Conn bound to a single physical connection, so
// each command owns its connection exclusively until Release
type Pool struct {
	db     *sql.DB
	config PoolConfig
	logger logging.Logger
	closed atomic.Bool
}

// NewPool opens and verifies a connection pool.
// Fail-fast: the configuration is validated and an initial ping is issued
// before the pool is returned
func NewPool(config PoolConfig, logger logging.Logger) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(config.DriverName, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open pool: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: initial connection test: %w", err)
	}

	log := logging.OrNop(logger)
	log.Infof("connection pool ready (driver=%s max_open=%d max_idle=%d)",
		config.DriverName, config.MaxOpenConns, config.MaxIdleConns)

	return &Pool{
		db:     sqlDB,
		config: config,
		logger: log,
	}, nil
}

// Acquire implements Provider. It blocks until a connection is free, the
// configured AcquireTimeout elapses, or ctx is cancelled
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	if p.closed.Load() {
		return nil, ErrUnavailable
	}

	if p.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.AcquireTimeout)
		defer cancel()
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return conn, nil
}

// Release implements Provider. Safe to call once per successful Acquire
func (p *Pool) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		p.logger.Warnf("release connection: %v", err)
	}
}

// Healthy implements Provider
func (p *Pool) Healthy() bool {
	if p.closed.Load() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.db.PingContext(ctx) == nil
}

// Snapshot implements Provider. The view is derived fresh from the driver's
// pool statistics on every call
func (p *Pool) Snapshot() PoolInfo {
	if p.closed.Load() {
		return PoolInfo{Max: p.config.MaxOpenConns}
	}
	stats := p.db.Stats()
	return PoolInfo{
		Total:   stats.OpenConnections,
		Active:  stats.InUse,
		Idle:    stats.Idle,
		Waiters: stats.WaitCount,
		Max:     stats.MaxOpenConnections,
	}
}

// Close implements Provider. Idempotent
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.logger.Infof("closing connection pool")
	return p.db.Close()
}

// Config returns the pool configuration
func (p *Pool) Config() PoolConfig {
	return p.config
}
