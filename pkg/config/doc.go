// Package config provides agent configuration from environment
// variables and the declarative policy bundle.
//
// # Overview
//
// Two inputs shape a running agent. Environment variables carry the
// operational settings (lease limits, cache sizing, listeners,
// logging), loaded by LoadConfig with sensible defaults. The policy
// itself, rules, permissions, and plugin selection, lives in a YAML
// bundle file loaded by LoadBundle and applied wholesale; BundleWatcher
// reloads it while the agent runs.
//
// # Configuration Structure
//
// Engine settings:
//
//	SNAPLOCK_DEFAULT_TTL="30m"      # lease applied when a request has no TTL
//	SNAPLOCK_MAX_TTL="2h"           # requested TTLs are clamped to this
//	SNAPLOCK_RETENTION="1h"         # how long released/expired records stay queryable
//	SNAPLOCK_CACHE_ENTRIES="4096"
//	SNAPLOCK_CACHE_TTL="10s"
//	SNAPLOCK_SWEEP_SCHEDULE="@every 1m"  # cron expression, "off" disables
//
// Bundle settings:
//
//	SNAPLOCK_BUNDLE_PATH="/etc/snaplock/bundle.yaml"
//	SNAPLOCK_BUNDLE_WATCH="true"
//	SNAPLOCK_BUNDLE_DEBOUNCE="500ms"
//
// Audit settings:
//
//	SNAPLOCK_AUDIT_ENABLED="true"
//	SNAPLOCK_AUDIT_BACKEND="file"   # file, sqlite, both
//	SNAPLOCK_AUDIT_FILE_PATH="/var/log/snaplock/audit"
//	SNAPLOCK_AUDIT_DB_PATH="/var/lib/snaplock/audit.db"
//	SNAPLOCK_AUDIT_RETENTION_DAYS="90"
//
// Ops listener settings:
//
//	SNAPLOCK_OPS_HOST="0.0.0.0"
//	SNAPLOCK_OPS_PORT="9090"
//	SNAPLOCK_OPS_SHUTDOWN_TIMEOUT="30s"
//
// Observability settings:
//
//	SNAPLOCK_LOG_LEVEL="info"  # debug, info, warn, error
//	SNAPLOCK_METRICS_ENABLED="true"
//	SNAPLOCK_OTEL_ENABLED="true"
//	SNAPLOCK_OTEL_ENDPOINT="otel-collector:4317"
//
// # Bundle Format
//
// A bundle is the complete policy, not a delta:
//
//	version: 1
//	rules:
//	  - id: protect-secrets
//	    priority: 10
//	    condition:
//	      path_prefix: /etc/secrets/
//	    action: deny
//	    enabled: true
//	permissions:
//	  alice:
//	    - locks:release-any
//	plugins:
//	  dirs:
//	    - /etc/snaplock/plugins
//	  disabled:
//	    - legacy-pack
//
// # Usage Example
//
// Load configuration and the bundle:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	bundle, err := config.LoadBundle(cfg.Bundle.Path)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := bundle.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/engine: Consumes the engine configuration and applies bundles
//   - pkg/observability: Uses observability configuration
//   - pkg/audit: Uses audit configuration
package config
