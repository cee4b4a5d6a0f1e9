package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML or JSON file, detected by extension,
// on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment
// variable overrides. Variables use the prefix convention
// PREFIX_SECTION_FIELD (e.g. DBFLUX_DATABASE_DSN)
func LoadWithEnv(path string, prefix string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnvOverrides(prefix, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("config: unmarshal YAML: %w", err)
	}
	return nil
}

func loadJSON(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("config: unmarshal JSON: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to cfg.
// Recognized variables, for prefix "DBFLUX":
//
//	DBFLUX_DATABASE_DSN, DBFLUX_DATABASE_DRIVER,
//	DBFLUX_DATABASE_MAX_OPEN_CONNS, DBFLUX_DATABASE_MAX_IDLE_CONNS,
//	DBFLUX_QUEUE_CAPACITY, DBFLUX_QUEUE_DRAIN_INTERVAL,
//	DBFLUX_RETRY_MAX_ATTEMPTS, DBFLUX_RETRY_INITIAL_DELAY
func ApplyEnvOverrides(prefix string, cfg *Config) error {
	if prefix == "" {
		prefix = "DBFLUX"
	}

	overrides := []struct {
		key   string
		apply func(value string) error
	}{
		{"DATABASE_DSN", func(v string) error { cfg.Database.DSN = v; return nil }},
		{"DATABASE_DRIVER", func(v string) error { cfg.Database.Driver = v; return nil }},
		{"DATABASE_MAX_OPEN_CONNS", intOverride(&cfg.Database.MaxOpenConns)},
		{"DATABASE_MAX_IDLE_CONNS", intOverride(&cfg.Database.MaxIdleConns)},
		{"QUEUE_CAPACITY", intOverride(&cfg.Queue.Capacity)},
		{"QUEUE_DRAIN_INTERVAL", durationOverride(&cfg.Queue.DrainInterval)},
		{"QUEUE_ENQUEUE_TIMEOUT", durationOverride(&cfg.Queue.EnqueueTimeout)},
		{"RETRY_MAX_ATTEMPTS", intOverride(&cfg.Retry.MaxAttempts)},
		{"RETRY_INITIAL_DELAY", durationOverride(&cfg.Retry.InitialDelay)},
	}

	for _, o := range overrides {
		envKey := prefix + "_" + o.key
		value := os.Getenv(envKey)
		if value == "" {
			continue
		}
		if err := o.apply(value); err != nil {
			return fmt.Errorf("config: env override %s: %w", envKey, err)
		}
	}
	return nil
}

func intOverride(target *int) func(string) error {
	return func(value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
		*target = parsed
		return nil
	}
}

func durationOverride(target *Duration) func(string) error {
	return func(value string) error {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		*target = Duration(parsed)
		return nil
	}
}
