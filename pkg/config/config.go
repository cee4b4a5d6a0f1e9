// Package config defines the dbflux configuration consumed once at facade
// construction, with YAML/JSON file loading and environment overrides
package config

import (
	"fmt"
	"time"

	"github.com/fluxorio/dbflux/pkg/db"
	"github.com/fluxorio/dbflux/pkg/queue"
	"github.com/fluxorio/dbflux/pkg/retry"
)

// Config is the full dbflux configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`
	Queue    QueueConfig    `yaml:"queue" json:"queue"`
	Executor ExecutorConfig `yaml:"executor" json:"executor"`
	Retry    RetryConfig    `yaml:"retry" json:"retry"`
}

// DatabaseConfig configures the connection pool
type DatabaseConfig struct {
	DSN             string   `yaml:"dsn" json:"dsn"`
	Driver          string   `yaml:"driver" json:"driver"`
	MaxOpenConns    int      `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	AcquireTimeout  Duration `yaml:"acquire_timeout" json:"acquire_timeout"`
}

// QueueConfig configures the command queue
type QueueConfig struct {
	Capacity       int      `yaml:"capacity" json:"capacity"`
	DrainInterval  Duration `yaml:"drain_interval" json:"drain_interval"`
	EnqueueTimeout Duration `yaml:"enqueue_timeout" json:"enqueue_timeout"`
	ShutdownGrace  Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
}

// ExecutorConfig configures the task executor
type ExecutorConfig struct {
	ShutdownGrace Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
}

// RetryConfig configures the retry policy applied to direct executions
type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay" json:"initial_delay"`
	Multiplier   float64  `yaml:"multiplier" json:"multiplier"`
}

// Default returns a configuration with production defaults. DSN and Driver
// must still be supplied by the caller
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(5 * time.Minute),
			ConnMaxIdleTime: Duration(10 * time.Minute),
			AcquireTimeout:  Duration(10 * time.Second),
		},
		Queue: QueueConfig{
			Capacity:       1000,
			DrainInterval:  Duration(100 * time.Millisecond),
			EnqueueTimeout: Duration(5 * time.Second),
			ShutdownGrace:  Duration(30 * time.Second),
		},
		Executor: ExecutorConfig{
			ShutdownGrace: Duration(30 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts:  1,
			InitialDelay: Duration(200 * time.Millisecond),
			Multiplier:   2.0,
		},
	}
}

// Validate fails fast on an inconsistent configuration
func (c *Config) Validate() error {
	if err := c.PoolConfig().Validate(); err != nil {
		return err
	}
	if err := c.QueueConfig().Validate(); err != nil {
		return err
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return err
	}
	if c.Executor.ShutdownGrace < 0 {
		return fmt.Errorf("config: executor shutdown_grace cannot be negative")
	}
	return nil
}

// PoolConfig maps the database section onto the pool's configuration
func (c *Config) PoolConfig() db.PoolConfig {
	return db.PoolConfig{
		DSN:             c.Database.DSN,
		DriverName:      c.Database.Driver,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime.Std(),
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime.Std(),
		AcquireTimeout:  c.Database.AcquireTimeout.Std(),
	}
}

// QueueConfig maps the queue section onto the queue's configuration
func (c *Config) QueueConfig() queue.Config {
	return queue.Config{
		Capacity:       c.Queue.Capacity,
		DrainInterval:  c.Queue.DrainInterval.Std(),
		EnqueueTimeout: c.Queue.EnqueueTimeout.Std(),
		ShutdownGrace:  c.Queue.ShutdownGrace.Std(),
	}
}

// RetryPolicy maps the retry section onto a retry policy
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay.Std(),
		Multiplier:   c.Retry.Multiplier,
	}
}
