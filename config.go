package appcore

import (
	"errors"
	"fmt"

	"github.com/reglet-dev/reglet-appcore/diagnostics"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "APPCORE_"

// Config holds the run-time tunables of the bound variants. Variants ignore
// the fields that do not apply to them.
type Config struct {
	Service  string `env:"SERVICE"`
	LogLevel string `env:"LOG_LEVEL"`
	// LogDir is where the rotating file sink writes. Empty means "logs"
	// under Root.
	LogDir       string  `env:"LOG_DIR"`
	MaxFileBytes int64   `env:"MAX_FILE_BYTES"`
	ConsoleRate  float64 `env:"CONSOLE_RATE"`
	Console      bool    `env:"CONSOLE"`
	File         bool    `env:"FILE"`
	Tracing      bool    `env:"TRACING"`
	Metrics      bool    `env:"METRICS"`

	// Root confines the filesystem facet of the full OS system API.
	Root string `env:"ROOT"`
	// HeapBytes sizes the static heap of the bare system API.
	HeapBytes int `env:"HEAP_BYTES"`

	Workers       int `env:"WORKERS"`
	QueueCapacity int `env:"QUEUE_CAPACITY"`

	ArenaBytes  int64 `env:"ARENA_BYTES"`
	PoolBytes   int64 `env:"POOL_BYTES"`
	MemoryLimit int64 `env:"MEMORY_LIMIT"`

	RingSize int `env:"RING_SIZE"`
}

// DefaultConfig returns the compiled defaults of the active profile.
func DefaultConfig() Config {
	return Config{
		Service:       "appcore",
		LogLevel:      "info",
		MaxFileBytes:  16 << 20,
		Console:       true,
		File:          true,
		Tracing:       true,
		Metrics:       true,
		Root:          ".",
		HeapBytes:     int(compiledPoolBudget),
		QueueCapacity: 1024,
		ArenaBytes:    compiledArenaBytes,
		PoolBytes:     compiledPoolBudget,
		RingSize:      256,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if _, err := diagnostics.ParseSeverity(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	nonNegative := []struct {
		name  string
		value int64
	}{
		{"max_file_bytes", c.MaxFileBytes},
		{"heap_bytes", int64(c.HeapBytes)},
		{"workers", int64(c.Workers)},
		{"queue_capacity", int64(c.QueueCapacity)},
		{"arena_bytes", c.ArenaBytes},
		{"pool_bytes", c.PoolBytes},
		{"memory_limit", c.MemoryLimit},
		{"ring_size", int64(c.RingSize)},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", f.name, f.value))
		}
	}
	if c.ConsoleRate < 0 {
		errs = append(errs, fmt.Errorf("console_rate must not be negative, got %g", c.ConsoleRate))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig returns the defaults overridden by APPCORE_* environment
// variables. Embedded builds have no environment and return the defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := loadEnv(&cfg, nil); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}
