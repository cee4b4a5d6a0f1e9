package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, want 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Queue.Capacity != 1000 {
		t.Errorf("Capacity = %d, want 1000", cfg.Queue.Capacity)
	}
	if cfg.Queue.DrainInterval.Std() != 100*time.Millisecond {
		t.Errorf("DrainInterval = %v, want 100ms", cfg.Queue.DrainInterval)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", cfg.Retry.MaxAttempts)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = "file:test?mode=memory"
	cfg.Database.Driver = "sqlite3"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	// DSN is mandatory
	if err := Default().Validate(); err == nil {
		t.Error("Validate() should fail without a DSN")
	}

	cfg = Default()
	cfg.Database.DSN = "dsn"
	cfg.Database.Driver = "sqlite3"
	cfg.Queue.Capacity = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail with zero queue capacity")
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbflux.yaml")
	content := `
database:
  dsn: "postgres://localhost/app"
  driver: "pgx"
  max_open_conns: 50
queue:
  capacity: 200
  drain_interval: "50ms"
retry:
  max_attempts: 3
  initial_delay: "20ms"
  multiplier: 2.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/app" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Database.MaxOpenConns != 50 {
		t.Errorf("MaxOpenConns = %d, want 50", cfg.Database.MaxOpenConns)
	}
	if cfg.Queue.DrainInterval.Std() != 50*time.Millisecond {
		t.Errorf("DrainInterval = %v, want 50ms", cfg.Queue.DrainInterval)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	// Untouched sections keep defaults
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, want default 5", cfg.Database.MaxIdleConns)
	}
	if cfg.Queue.EnqueueTimeout.Std() != 5*time.Second {
		t.Errorf("EnqueueTimeout = %v, want default 5s", cfg.Queue.EnqueueTimeout)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbflux.json")
	content := `{
  "database": {"dsn": "file:x?mode=memory", "driver": "sqlite3"},
  "queue": {"capacity": 42, "drain_interval": "25ms"}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Queue.Capacity != 42 {
		t.Errorf("Capacity = %d, want 42", cfg.Queue.Capacity)
	}
	if cfg.Queue.DrainInterval.Std() != 25*time.Millisecond {
		t.Errorf("DrainInterval = %v, want 25ms", cfg.Queue.DrainInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DBFLUX_DATABASE_DSN", "file:env?mode=memory")
	t.Setenv("DBFLUX_DATABASE_DRIVER", "sqlite3")
	t.Setenv("DBFLUX_QUEUE_CAPACITY", "77")
	t.Setenv("DBFLUX_QUEUE_DRAIN_INTERVAL", "30ms")
	t.Setenv("DBFLUX_RETRY_MAX_ATTEMPTS", "4")

	cfg := Default()
	if err := ApplyEnvOverrides("DBFLUX", cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides() error = %v", err)
	}
	if cfg.Database.DSN != "file:env?mode=memory" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Queue.Capacity != 77 {
		t.Errorf("Capacity = %d, want 77", cfg.Queue.Capacity)
	}
	if cfg.Queue.DrainInterval.Std() != 30*time.Millisecond {
		t.Errorf("DrainInterval = %v, want 30ms", cfg.Queue.DrainInterval)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
}

func TestApplyEnvOverrides_InvalidValue(t *testing.T) {
	t.Setenv("DBFLUX_QUEUE_CAPACITY", "not-a-number")

	if err := ApplyEnvOverrides("DBFLUX", Default()); err == nil {
		t.Error("ApplyEnvOverrides() should reject a non-integer capacity")
	}
}

func TestDuration_Forms(t *testing.T) {
	var d Duration
	if err := d.set("150ms"); err != nil {
		t.Fatalf("set(string) error = %v", err)
	}
	if d.Std() != 150*time.Millisecond {
		t.Errorf("Std() = %v, want 150ms", d.Std())
	}

	if err := d.set(int(time.Second)); err != nil {
		t.Fatalf("set(int) error = %v", err)
	}
	if d.Std() != time.Second {
		t.Errorf("Std() = %v, want 1s", d.Std())
	}

	if err := d.set("bogus"); err == nil {
		t.Error("set() should reject an unparseable string")
	}
	if err := d.set(true); err == nil {
		t.Error("set() should reject unsupported types")
	}
}

func TestConfig_Mappings(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = "dsn"
	cfg.Database.Driver = "sqlite3"

	pool := cfg.PoolConfig()
	if pool.DSN != "dsn" || pool.DriverName != "sqlite3" {
		t.Errorf("PoolConfig() = %+v", pool)
	}
	if pool.AcquireTimeout != 10*time.Second {
		t.Errorf("AcquireTimeout = %v, want 10s", pool.AcquireTimeout)
	}

	q := cfg.QueueConfig()
	if q.Capacity != 1000 || q.ShutdownGrace != 30*time.Second {
		t.Errorf("QueueConfig() = %+v", q)
	}

	p := cfg.RetryPolicy()
	if p.MaxAttempts != 1 || p.Multiplier != 2.0 {
		t.Errorf("RetryPolicy() = %+v", p)
	}
}
