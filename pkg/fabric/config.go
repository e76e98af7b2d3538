package fabric

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/relaydata/bufferfabric/pkg/logging"
)

// Config is the on-disk/environment representation of a ManagerConfig.
// Precedence, highest first: environment variables, JSON file, defaults.
type Config struct {
	GlobalLimitMB        int    `json:"global_limit_mb"`
	BlockKB              int    `json:"block_kb"`
	MaxQueueMB           int    `json:"max_queue_mb"`
	MaxConcurrentStreams int    `json:"max_concurrent_streams"`
	InitialQueueKB       int    `json:"initial_queue_kb"`
	EstimatorAlpha       float64 `json:"estimator_alpha"`
	TelemetryIntervalSec int    `json:"telemetry_interval_sec"`

	// MonitorAddr is the bind address for the telemetry HTTP/WS server
	// (see pkg/telemetryserver). Empty disables it; a host process is free
	// to ignore this field and run its own telemetry server instead.
	MonitorAddr string `json:"monitor_addr"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns conservative defaults suitable for a single-process
// development deployment.
func DefaultConfig() *Config {
	return &Config{
		GlobalLimitMB:        256,
		BlockKB:              10 * 1024,
		MaxQueueMB:           16,
		MaxConcurrentStreams: 10,
		InitialQueueKB:       10 * 1024,
		EstimatorAlpha:       0.2,
		TelemetryIntervalSec: 10,
		LogLevel:             "info",
	}
}

// LoadConfig reads configPath (if non-empty and present), applies
// environment overrides, and validates the result. A missing file is not
// an error; it simply leaves the defaults in place for anything the file
// would have set.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("fabric: failed to load config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fabric: invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies BUFFERFABRIC_* environment variables.
// Invalid integer/float values are silently ignored so a malformed
// environment never prevents startup; Validate catches anything that
// matters.
func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv("BUFFERFABRIC_GLOBAL_LIMIT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GlobalLimitMB = n
		}
	}
	if v := os.Getenv("BUFFERFABRIC_BLOCK_KB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BlockKB = n
		}
	}
	if v := os.Getenv("BUFFERFABRIC_MAX_QUEUE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxQueueMB = n
		}
	}
	if v := os.Getenv("BUFFERFABRIC_MAX_CONCURRENT_STREAMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrentStreams = n
		}
	}
	if v := os.Getenv("BUFFERFABRIC_INITIAL_QUEUE_KB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.InitialQueueKB = n
		}
	}
	if v := os.Getenv("BUFFERFABRIC_ESTIMATOR_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.EstimatorAlpha = f
		}
	}
	if v := os.Getenv("BUFFERFABRIC_TELEMETRY_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TelemetryIntervalSec = n
		}
	}
	if v := os.Getenv("BUFFERFABRIC_MONITOR_ADDR"); v != "" {
		c.MonitorAddr = v
	}
	if v := os.Getenv("BUFFERFABRIC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for internal consistency, most
// importantly that MAX_QUEUE_BYTES * MAX_CONCURRENT_STREAMS does not
// exceed GLOBAL_LIMIT_BYTES.
func (c *Config) Validate() error {
	if c.GlobalLimitMB <= 0 {
		return fmt.Errorf("global_limit_mb must be positive")
	}
	if c.BlockKB <= 0 {
		return fmt.Errorf("block_kb must be positive")
	}
	if c.MaxQueueMB <= 0 {
		return fmt.Errorf("max_queue_mb must be positive")
	}
	if c.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("max_concurrent_streams must be positive")
	}
	if c.InitialQueueKB < 0 {
		return fmt.Errorf("initial_queue_kb must not be negative")
	}
	if c.EstimatorAlpha <= 0 || c.EstimatorAlpha > 1 {
		return fmt.Errorf("estimator_alpha must be in (0, 1]")
	}
	if _, err := logging.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	globalBytes := int64(c.GlobalLimitMB) * 1024 * 1024
	maxQueueBytes := int64(c.MaxQueueMB) * 1024 * 1024
	if maxQueueBytes*int64(c.MaxConcurrentStreams) > globalBytes {
		return fmt.Errorf("max_queue_mb (%d) * max_concurrent_streams (%d) exceeds global_limit_mb (%d)", c.MaxQueueMB, c.MaxConcurrentStreams, c.GlobalLimitMB)
	}
	if int64(c.InitialQueueKB)*1024 > maxQueueBytes {
		return fmt.Errorf("initial_queue_kb exceeds max_queue_mb")
	}

	return nil
}

// ToManagerConfig converts the on-disk units (MB/KB/seconds) into the
// byte/duration fields NewBufferManager expects.
func (c *Config) ToManagerConfig() ManagerConfig {
	return ManagerConfig{
		GlobalLimitBytes:     int64(c.GlobalLimitMB) * 1024 * 1024,
		BlockBytes:           int64(c.BlockKB) * 1024,
		MaxQueueBytes:        int64(c.MaxQueueMB) * 1024 * 1024,
		MaxConcurrentStreams: c.MaxConcurrentStreams,
		InitialQueueBytes:    int64(c.InitialQueueKB) * 1024,
		EstimatorAlpha:       c.EstimatorAlpha,
		TelemetryInterval:    time.Duration(c.TelemetryIntervalSec) * time.Second,
	}
}

// InitLogging replaces the logging package's global logger with one at the
// level this config carries. Component loggers already derived from the
// global logger keep the level and output it had when they were derived;
// that includes this package's own logger and pkg/telemetryserver's, which
// are both derived at package initialisation.
func (c *Config) InitLogging(output io.Writer) {
	level, _ := logging.ParseLogLevel(c.LogLevel)
	logging.InitGlobalLogger(&logging.Config{
		Level:  level,
		Format: logging.TextFormat,
		Output: output,
	})
}
