package config

import (
	"os"
	"testing"
	"time"

	"github.com/platinummonkey/snaplock/pkg/audit"
	"github.com/platinummonkey/snaplock/pkg/engine"
	"github.com/platinummonkey/snaplock/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
		{
			name:         "returns true for 'TRUE' (case insensitive)",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "TRUE",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns parsed int",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "returns default for invalid int",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "invalid",
			want:         10,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOT_SET",
			defaultValue: 10,
			envValue:     "",
			want:         10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt64 tests the getEnvInt64 helper function
func TestGetEnvInt64(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int64
		envValue     string
		want         int64
	}{
		{
			name:         "returns parsed int64",
			key:          "TEST_INT64",
			defaultValue: 10,
			envValue:     "9223372036854775807",
			want:         9223372036854775807,
		},
		{
			name:         "returns default for invalid int64",
			key:          "TEST_INT64",
			defaultValue: 10,
			envValue:     "invalid",
			want:         10,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT64_NOT_SET",
			defaultValue: 10,
			envValue:     "",
			want:         10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvInt64(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt64() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns parsed duration",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default for invalid duration",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOT_SET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestParseLogLevel tests the parseLogLevel function
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  observability.LogLevel
	}{
		{
			name:  "debug",
			level: "debug",
			want:  observability.DebugLevel,
		},
		{
			name:  "DEBUG uppercase",
			level: "DEBUG",
			want:  observability.DebugLevel,
		},
		{
			name:  "info",
			level: "info",
			want:  observability.InfoLevel,
		},
		{
			name:  "warn",
			level: "warn",
			want:  observability.WarnLevel,
		},
		{
			name:  "warning",
			level: "warning",
			want:  observability.WarnLevel,
		},
		{
			name:  "error",
			level: "error",
			want:  observability.ErrorLevel,
		},
		{
			name:  "invalid defaults to info",
			level: "invalid",
			want:  observability.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLogLevel(tt.level)
			if got != tt.want {
				t.Errorf("parseLogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestLoadEngineConfig tests the loadEngineConfig function
func TestLoadEngineConfig(t *testing.T) {
	// Save current env and restore after test
	envVars := []string{
		"SNAPLOCK_DEFAULT_TTL",
		"SNAPLOCK_MAX_TTL",
		"SNAPLOCK_RETENTION",
		"SNAPLOCK_CACHE_ENTRIES",
		"SNAPLOCK_CACHE_TTL",
		"SNAPLOCK_SWEEP_SCHEDULE",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads default config", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		cfg := loadEngineConfig()
		if cfg.Lock.DefaultTTL != 0 {
			t.Errorf("Lock.DefaultTTL = %v, want 0", cfg.Lock.DefaultTTL)
		}
		if cfg.Lock.MaxTTL != 0 {
			t.Errorf("Lock.MaxTTL = %v, want 0", cfg.Lock.MaxTTL)
		}
		if cfg.Lock.Retention != time.Hour {
			t.Errorf("Lock.Retention = %v, want 1h", cfg.Lock.Retention)
		}
		if cfg.Cache.MaxEntries != 4096 {
			t.Errorf("Cache.MaxEntries = %v, want 4096", cfg.Cache.MaxEntries)
		}
		if cfg.Cache.TTL != 0 {
			t.Errorf("Cache.TTL = %v, want 0", cfg.Cache.TTL)
		}
		if cfg.SweepSchedule != "@every 1m" {
			t.Errorf("SweepSchedule = %v, want @every 1m", cfg.SweepSchedule)
		}
	})

	t.Run("loads lease settings from env", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		os.Setenv("SNAPLOCK_DEFAULT_TTL", "30m")
		os.Setenv("SNAPLOCK_MAX_TTL", "2h")
		os.Setenv("SNAPLOCK_RETENTION", "15m")

		cfg := loadEngineConfig()
		if cfg.Lock.DefaultTTL != 30*time.Minute {
			t.Errorf("Lock.DefaultTTL = %v, want 30m", cfg.Lock.DefaultTTL)
		}
		if cfg.Lock.MaxTTL != 2*time.Hour {
			t.Errorf("Lock.MaxTTL = %v, want 2h", cfg.Lock.MaxTTL)
		}
		if cfg.Lock.Retention != 15*time.Minute {
			t.Errorf("Lock.Retention = %v, want 15m", cfg.Lock.Retention)
		}
	})

	t.Run("loads cache settings from env", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		os.Setenv("SNAPLOCK_CACHE_ENTRIES", "128")
		os.Setenv("SNAPLOCK_CACHE_TTL", "10s")

		cfg := loadEngineConfig()
		if cfg.Cache.MaxEntries != 128 {
			t.Errorf("Cache.MaxEntries = %v, want 128", cfg.Cache.MaxEntries)
		}
		if cfg.Cache.TTL != 10*time.Second {
			t.Errorf("Cache.TTL = %v, want 10s", cfg.Cache.TTL)
		}
	})

	t.Run("loads sweep schedule from env", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		os.Setenv("SNAPLOCK_SWEEP_SCHEDULE", "@every 30s")

		cfg := loadEngineConfig()
		if cfg.SweepSchedule != "@every 30s" {
			t.Errorf("SweepSchedule = %v, want @every 30s", cfg.SweepSchedule)
		}
	})

	t.Run("sweep schedule off disables the sweeper", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		os.Setenv("SNAPLOCK_SWEEP_SCHEDULE", "OFF")

		cfg := loadEngineConfig()
		if cfg.SweepSchedule != "" {
			t.Errorf("SweepSchedule = %v, want empty", cfg.SweepSchedule)
		}
	})

	t.Run("ignores invalid durations", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		os.Setenv("SNAPLOCK_DEFAULT_TTL", "invalid")
		os.Setenv("SNAPLOCK_CACHE_ENTRIES", "-5")

		cfg := loadEngineConfig()
		if cfg.Lock.DefaultTTL != 0 {
			t.Errorf("Lock.DefaultTTL = %v, want 0 (default)", cfg.Lock.DefaultTTL)
		}
		if cfg.Cache.MaxEntries != 4096 {
			t.Errorf("Cache.MaxEntries = %v, want 4096 (default)", cfg.Cache.MaxEntries)
		}
	})
}

// TestLoadBundleConfig tests the loadBundleConfig function
func TestLoadBundleConfig(t *testing.T) {
	// Save current env and restore after test
	envVars := []string{
		"SNAPLOCK_BUNDLE_PATH",
		"SNAPLOCK_BUNDLE_WATCH",
		"SNAPLOCK_BUNDLE_DEBOUNCE",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("defaults", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		cfg := loadBundleConfig()
		if cfg.Path != "" {
			t.Errorf("Path = %v, want empty", cfg.Path)
		}
		if cfg.Watch {
			t.Errorf("Watch = %v, want false", cfg.Watch)
		}
		if cfg.Debounce != 500*time.Millisecond {
			t.Errorf("Debounce = %v, want 500ms", cfg.Debounce)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		os.Setenv("SNAPLOCK_BUNDLE_PATH", "/etc/snaplock/bundle.yaml")
		os.Setenv("SNAPLOCK_BUNDLE_WATCH", "true")
		os.Setenv("SNAPLOCK_BUNDLE_DEBOUNCE", "2s")

		cfg := loadBundleConfig()
		if cfg.Path != "/etc/snaplock/bundle.yaml" {
			t.Errorf("Path = %v, want /etc/snaplock/bundle.yaml", cfg.Path)
		}
		if !cfg.Watch {
			t.Errorf("Watch = %v, want true", cfg.Watch)
		}
		if cfg.Debounce != 2*time.Second {
			t.Errorf("Debounce = %v, want 2s", cfg.Debounce)
		}
	})
}

// TestLoadAuditConfig tests the loadAuditConfig function
func TestLoadAuditConfig(t *testing.T) {
	// Save current env and restore after test
	envVars := []string{
		"SNAPLOCK_AUDIT_ENABLED",
		"SNAPLOCK_AUDIT_BACKEND",
		"SNAPLOCK_AUDIT_FILE_PATH",
		"SNAPLOCK_AUDIT_FILE_ROTATE",
		"SNAPLOCK_AUDIT_FILE_MAX_SIZE",
		"SNAPLOCK_AUDIT_FILE_MAX_FILES",
		"SNAPLOCK_AUDIT_DB_PATH",
		"SNAPLOCK_AUDIT_RETENTION_DAYS",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("defaults", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		cfg := loadAuditConfig()
		if !cfg.Enabled {
			t.Errorf("Enabled = %v, want true", cfg.Enabled)
		}
		if cfg.Backend != "file" {
			t.Errorf("Backend = %v, want file", cfg.Backend)
		}
		if cfg.File != audit.DefaultFileLoggerConfig() {
			t.Errorf("File = %+v, want defaults", cfg.File)
		}
		if cfg.DBPath != "" {
			t.Errorf("DBPath = %v, want empty", cfg.DBPath)
		}
		if cfg.RetentionDays != 90 {
			t.Errorf("RetentionDays = %v, want 90", cfg.RetentionDays)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		os.Setenv("SNAPLOCK_AUDIT_ENABLED", "false")
		os.Setenv("SNAPLOCK_AUDIT_BACKEND", "both")
		os.Setenv("SNAPLOCK_AUDIT_FILE_PATH", "/data/audit")
		os.Setenv("SNAPLOCK_AUDIT_FILE_ROTATE", "false")
		os.Setenv("SNAPLOCK_AUDIT_FILE_MAX_SIZE", "1048576")
		os.Setenv("SNAPLOCK_AUDIT_FILE_MAX_FILES", "3")
		os.Setenv("SNAPLOCK_AUDIT_DB_PATH", "/data/audit.db")
		os.Setenv("SNAPLOCK_AUDIT_RETENTION_DAYS", "30")

		cfg := loadAuditConfig()
		if cfg.Enabled {
			t.Errorf("Enabled = %v, want false", cfg.Enabled)
		}
		if cfg.Backend != "both" {
			t.Errorf("Backend = %v, want both", cfg.Backend)
		}
		if cfg.File.BasePath != "/data/audit" {
			t.Errorf("File.BasePath = %v, want /data/audit", cfg.File.BasePath)
		}
		if cfg.File.Rotate {
			t.Errorf("File.Rotate = %v, want false", cfg.File.Rotate)
		}
		if cfg.File.MaxSize != 1048576 {
			t.Errorf("File.MaxSize = %v, want 1048576", cfg.File.MaxSize)
		}
		if cfg.File.MaxFiles != 3 {
			t.Errorf("File.MaxFiles = %v, want 3", cfg.File.MaxFiles)
		}
		if cfg.DBPath != "/data/audit.db" {
			t.Errorf("DBPath = %v, want /data/audit.db", cfg.DBPath)
		}
		if cfg.RetentionDays != 30 {
			t.Errorf("RetentionDays = %v, want 30", cfg.RetentionDays)
		}
	})
}

// TestLoadOpsConfig tests the loadOpsConfig function
func TestLoadOpsConfig(t *testing.T) {
	// Save current env and restore after test
	envVars := []string{
		"SNAPLOCK_OPS_HOST",
		"SNAPLOCK_OPS_PORT",
		"SNAPLOCK_OPS_READ_TIMEOUT",
		"SNAPLOCK_OPS_WRITE_TIMEOUT",
		"SNAPLOCK_OPS_IDLE_TIMEOUT",
		"SNAPLOCK_OPS_SHUTDOWN_TIMEOUT",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	tests := []struct {
		name string
		env  map[string]string
		want OpsConfig
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: OpsConfig{
				Host:            "0.0.0.0",
				Port:            "9090",
				ReadTimeout:     15 * time.Second,
				WriteTimeout:    15 * time.Second,
				IdleTimeout:     60 * time.Second,
				ShutdownTimeout: 30 * time.Second,
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"SNAPLOCK_OPS_HOST":             "localhost",
				"SNAPLOCK_OPS_PORT":             "3000",
				"SNAPLOCK_OPS_READ_TIMEOUT":     "30s",
				"SNAPLOCK_OPS_WRITE_TIMEOUT":    "30s",
				"SNAPLOCK_OPS_IDLE_TIMEOUT":     "120s",
				"SNAPLOCK_OPS_SHUTDOWN_TIMEOUT": "60s",
			},
			want: OpsConfig{
				Host:            "localhost",
				Port:            "3000",
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 60 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all env vars
			for _, k := range envVars {
				os.Unsetenv(k)
			}

			// Set test env vars
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			got := loadOpsConfig()
			if got != tt.want {
				t.Errorf("loadOpsConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestLoadObservabilityConfig tests the loadObservabilityConfig function
func TestLoadObservabilityConfig(t *testing.T) {
	// Save current env and restore after test
	envVars := []string{
		"SNAPLOCK_LOG_LEVEL",
		"SNAPLOCK_METRICS_ENABLED",
		"SNAPLOCK_OTEL_ENABLED",
		"SNAPLOCK_OTEL_ENDPOINT",
		"SNAPLOCK_OTEL_SERVICE_NAME",
		"SNAPLOCK_OTEL_SERVICE_VERSION",
		"SNAPLOCK_OTEL_INSECURE",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	tests := []struct {
		name string
		env  map[string]string
		want ObservabilityConfig
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: ObservabilityConfig{
				LogLevel:           observability.InfoLevel,
				MetricsEnabled:     true,
				OTelEnabled:        false,
				OTelEndpoint:       "localhost:4317",
				OTelServiceName:    "snaplock-agent",
				OTelServiceVersion: "1.0.0",
				OTelInsecure:       true,
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"SNAPLOCK_LOG_LEVEL":            "debug",
				"SNAPLOCK_METRICS_ENABLED":      "false",
				"SNAPLOCK_OTEL_ENABLED":         "true",
				"SNAPLOCK_OTEL_ENDPOINT":        "otel-collector:4317",
				"SNAPLOCK_OTEL_SERVICE_NAME":    "my-service",
				"SNAPLOCK_OTEL_SERVICE_VERSION": "2.0.0",
				"SNAPLOCK_OTEL_INSECURE":        "false",
			},
			want: ObservabilityConfig{
				LogLevel:           observability.DebugLevel,
				MetricsEnabled:     false,
				OTelEnabled:        true,
				OTelEndpoint:       "otel-collector:4317",
				OTelServiceName:    "my-service",
				OTelServiceVersion: "2.0.0",
				OTelInsecure:       false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all env vars
			for _, k := range envVars {
				os.Unsetenv(k)
			}

			// Set test env vars
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			got := loadObservabilityConfig()
			if got != tt.want {
				t.Errorf("loadObservabilityConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// validConfig returns a configuration that passes Validate.
func validConfig() Config {
	return Config{
		Engine: engine.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:       true,
			Backend:       "file",
			File:          audit.DefaultFileLoggerConfig(),
			RetentionDays: 90,
		},
		Ops: OpsConfig{
			Port: "9090",
		},
	}
}

// TestConfigValidate tests the Config.Validate method
func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("default TTL exceeds max TTL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.Lock.DefaultTTL = 2 * time.Hour
		cfg.Engine.Lock.MaxTTL = time.Hour

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		if err != nil && err.Error() != "default TTL must not exceed max TTL" {
			t.Errorf("Validate() error = %v, want 'default TTL must not exceed max TTL'", err.Error())
		}
	})

	t.Run("unbounded max TTL accepts any default", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.Lock.DefaultTTL = 24 * time.Hour
		cfg.Engine.Lock.MaxTTL = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("invalid sweep schedule", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.SweepSchedule = "not-a-schedule"

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("empty sweep schedule is valid", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.SweepSchedule = ""

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("bundle watch without path", func(t *testing.T) {
		cfg := validConfig()
		cfg.Bundle.Watch = true
		cfg.Bundle.Path = ""

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		if err != nil && err.Error() != "bundle path is required when bundle watching is enabled" {
			t.Errorf("Validate() error = %v, want 'bundle path is required when bundle watching is enabled'", err.Error())
		}
	})

	t.Run("file backend without path", func(t *testing.T) {
		cfg := validConfig()
		cfg.Audit.File.BasePath = ""

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		if err != nil && err.Error() != "audit file path is required for file backend" {
			t.Errorf("Validate() error = %v, want 'audit file path is required for file backend'", err.Error())
		}
	})

	t.Run("sqlite backend without db path", func(t *testing.T) {
		cfg := validConfig()
		cfg.Audit.Backend = "sqlite"
		cfg.Audit.DBPath = ""

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		if err != nil && err.Error() != "audit database path is required for sqlite backend" {
			t.Errorf("Validate() error = %v, want 'audit database path is required for sqlite backend'", err.Error())
		}
	})

	t.Run("both backend requires both paths", func(t *testing.T) {
		cfg := validConfig()
		cfg.Audit.Backend = "both"
		cfg.Audit.DBPath = ""

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("invalid audit backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Audit.Backend = "kafka"

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		expectedErr := "invalid audit backend: kafka (must be file, sqlite, or both)"
		if err != nil && err.Error() != expectedErr {
			t.Errorf("Validate() error = %v, want %v", err.Error(), expectedErr)
		}
	})

	t.Run("disabled audit skips backend checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Audit.Enabled = false
		cfg.Audit.Backend = "kafka"
		cfg.Audit.File.BasePath = ""

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("negative audit retention", func(t *testing.T) {
		cfg := validConfig()
		cfg.Audit.RetentionDays = -1

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("missing ops port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Ops.Port = ""

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		if err != nil && err.Error() != "ops port is required" {
			t.Errorf("Validate() error = %v, want 'ops port is required'", err.Error())
		}
	})

	t.Run("otel enabled without endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTelEnabled = true
		cfg.Observability.OTelEndpoint = ""
		cfg.Observability.OTelServiceName = "test"

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		if err != nil && err.Error() != "OpenTelemetry endpoint is required when OTel is enabled" {
			t.Errorf("Validate() error = %v, want 'OpenTelemetry endpoint is required when OTel is enabled'", err.Error())
		}
	})

	t.Run("otel enabled without service name", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTelEnabled = true
		cfg.Observability.OTelEndpoint = "localhost:4317"
		cfg.Observability.OTelServiceName = ""

		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		if err != nil && err.Error() != "OpenTelemetry service name is required when OTel is enabled" {
			t.Errorf("Validate() error = %v, want 'OpenTelemetry service name is required when OTel is enabled'", err.Error())
		}
	})

	t.Run("valid otel config", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTelEnabled = true
		cfg.Observability.OTelEndpoint = "localhost:4317"
		cfg.Observability.OTelServiceName = "test-service"

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("nil engine section is valid", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine = nil

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})
}

// TestLoadConfig tests the LoadConfig function
func TestLoadConfig(t *testing.T) {
	// Save current env and restore after test
	envVars := []string{
		"SNAPLOCK_SWEEP_SCHEDULE",
		"SNAPLOCK_BUNDLE_PATH",
		"SNAPLOCK_BUNDLE_WATCH",
		"SNAPLOCK_OPS_PORT",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			env:     map[string]string{},
			wantErr: false,
		},
		{
			name: "invalid config - bad sweep schedule",
			env: map[string]string{
				"SNAPLOCK_SWEEP_SCHEDULE": "whenever",
			},
			wantErr: true,
		},
		{
			name: "invalid config - watch without bundle path",
			env: map[string]string{
				"SNAPLOCK_BUNDLE_WATCH": "true",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all env vars
			for _, k := range envVars {
				os.Unsetenv(k)
			}

			// Set test env vars
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && cfg == nil {
				t.Error("LoadConfig() returned nil config without error")
			}
		})
	}
}
