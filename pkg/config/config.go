package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/snaplock/pkg/audit"
	"github.com/platinummonkey/snaplock/pkg/engine"
	"github.com/platinummonkey/snaplock/pkg/observability"
)

// Config holds all agent configuration
type Config struct {
	// Engine configuration (lock leases, decision cache, sweeper)
	Engine *engine.Config

	// Bundle configuration (policy bundle file and hot reload)
	Bundle BundleConfig

	// Audit configuration
	Audit AuditConfig

	// Ops configuration (health and metrics listener)
	Ops OpsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// BundleConfig holds policy bundle configuration
type BundleConfig struct {
	// Path points at the policy bundle file. Empty starts the agent
	// with no rules or permissions loaded.
	Path string

	// Watch enables hot reload when the bundle file changes.
	Watch bool

	// Debounce coalesces bursts of filesystem events into one reload.
	Debounce time.Duration
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// Enabled turns the audit trail on or off.
	Enabled bool

	// Backend selects where audit events are written: file, sqlite, or both.
	Backend string

	// File holds the file backend settings.
	File audit.FileLoggerConfig

	// DBPath points at the SQLite audit database file.
	DBPath string

	// RetentionDays bounds how long entries are kept during cleanup.
	RetentionDays int
}

// OpsConfig holds the operational HTTP listener configuration
type OpsConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Engine:        loadEngineConfig(),
		Bundle:        loadBundleConfig(),
		Audit:         loadAuditConfig(),
		Ops:           loadOpsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadEngineConfig loads engine configuration from environment
func loadEngineConfig() *engine.Config {
	cfg := engine.DefaultConfig()

	// Lock lease settings
	if ttl := getEnvDuration("SNAPLOCK_DEFAULT_TTL", 0); ttl > 0 {
		cfg.Lock.DefaultTTL = ttl
	}
	if ttl := getEnvDuration("SNAPLOCK_MAX_TTL", 0); ttl > 0 {
		cfg.Lock.MaxTTL = ttl
	}
	if retention := getEnvDuration("SNAPLOCK_RETENTION", 0); retention > 0 {
		cfg.Lock.Retention = retention
	}

	// Decision cache settings
	if entries := getEnvInt("SNAPLOCK_CACHE_ENTRIES", 0); entries > 0 {
		cfg.Cache.MaxEntries = entries
	}
	if ttl := getEnvDuration("SNAPLOCK_CACHE_TTL", 0); ttl > 0 {
		cfg.Cache.TTL = ttl
	}

	// Sweeper schedule; "off" disables background maintenance
	if schedule := getEnv("SNAPLOCK_SWEEP_SCHEDULE", ""); schedule != "" {
		if strings.EqualFold(schedule, "off") {
			cfg.SweepSchedule = ""
		} else {
			cfg.SweepSchedule = schedule
		}
	}

	return cfg
}

// loadBundleConfig loads policy bundle configuration from environment
func loadBundleConfig() BundleConfig {
	return BundleConfig{
		Path:     getEnv("SNAPLOCK_BUNDLE_PATH", ""),
		Watch:    getEnvBool("SNAPLOCK_BUNDLE_WATCH", false),
		Debounce: getEnvDuration("SNAPLOCK_BUNDLE_DEBOUNCE", 500*time.Millisecond),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	file := audit.DefaultFileLoggerConfig()
	if path := getEnv("SNAPLOCK_AUDIT_FILE_PATH", ""); path != "" {
		file.BasePath = path
	}
	file.Rotate = getEnvBool("SNAPLOCK_AUDIT_FILE_ROTATE", file.Rotate)
	if maxSize := getEnvInt64("SNAPLOCK_AUDIT_FILE_MAX_SIZE", 0); maxSize > 0 {
		file.MaxSize = maxSize
	}
	if maxFiles := getEnvInt("SNAPLOCK_AUDIT_FILE_MAX_FILES", 0); maxFiles > 0 {
		file.MaxFiles = maxFiles
	}

	return AuditConfig{
		Enabled:       getEnvBool("SNAPLOCK_AUDIT_ENABLED", true),
		Backend:       getEnv("SNAPLOCK_AUDIT_BACKEND", "file"),
		File:          file,
		DBPath:        getEnv("SNAPLOCK_AUDIT_DB_PATH", ""),
		RetentionDays: getEnvInt("SNAPLOCK_AUDIT_RETENTION_DAYS", audit.DefaultRetentionPolicy().RetentionDays),
	}
}

// loadOpsConfig loads ops listener configuration from environment
func loadOpsConfig() OpsConfig {
	return OpsConfig{
		Host:            getEnv("SNAPLOCK_OPS_HOST", "0.0.0.0"),
		Port:            getEnv("SNAPLOCK_OPS_PORT", "9090"),
		ReadTimeout:     getEnvDuration("SNAPLOCK_OPS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SNAPLOCK_OPS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SNAPLOCK_OPS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SNAPLOCK_OPS_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("SNAPLOCK_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("SNAPLOCK_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("SNAPLOCK_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("SNAPLOCK_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("SNAPLOCK_OTEL_SERVICE_NAME", "snaplock-agent"),
		OTelServiceVersion: getEnv("SNAPLOCK_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("SNAPLOCK_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate engine config
	if c.Engine != nil {
		if c.Engine.Lock != nil && c.Engine.Lock.MaxTTL > 0 && c.Engine.Lock.DefaultTTL > c.Engine.Lock.MaxTTL {
			return fmt.Errorf("default TTL must not exceed max TTL")
		}
		if c.Engine.SweepSchedule != "" {
			if _, err := cron.ParseStandard(c.Engine.SweepSchedule); err != nil {
				return fmt.Errorf("invalid sweep schedule %q: %w", c.Engine.SweepSchedule, err)
			}
		}
	}

	// Validate bundle config
	if c.Bundle.Watch && c.Bundle.Path == "" {
		return fmt.Errorf("bundle path is required when bundle watching is enabled")
	}

	// Validate audit config based on backend
	if c.Audit.Enabled {
		switch c.Audit.Backend {
		case "file":
			if c.Audit.File.BasePath == "" {
				return fmt.Errorf("audit file path is required for file backend")
			}
		case "sqlite":
			if c.Audit.DBPath == "" {
				return fmt.Errorf("audit database path is required for sqlite backend")
			}
		case "both":
			if c.Audit.File.BasePath == "" {
				return fmt.Errorf("audit file path is required for file backend")
			}
			if c.Audit.DBPath == "" {
				return fmt.Errorf("audit database path is required for sqlite backend")
			}
		default:
			return fmt.Errorf("invalid audit backend: %s (must be file, sqlite, or both)", c.Audit.Backend)
		}
		if c.Audit.RetentionDays < 0 {
			return fmt.Errorf("audit retention days must not be negative")
		}
	}

	// Validate ops config
	if c.Ops.Port == "" {
		return fmt.Errorf("ops port is required")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
