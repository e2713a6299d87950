// The snaplock agent hosts the lock engine in a long-running process:
// it loads the policy bundle and keeps it hot-reloaded, bridges lock
// traffic into the audit trail, runs scheduled lock sweeps, and serves
// health and metrics on the ops listener.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/snaplock/pkg/audit"
	"github.com/platinummonkey/snaplock/pkg/config"
	"github.com/platinummonkey/snaplock/pkg/engine"
	"github.com/platinummonkey/snaplock/pkg/events"
	"github.com/platinummonkey/snaplock/pkg/observability"
	"github.com/platinummonkey/snaplock/pkg/rules"
)

const version = "1.0.0"

// Journal cleanup runs nightly, off-peak.
const auditRetentionSchedule = "30 3 * * *"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"version": version,
		"bundle":  cfg.Bundle.Path,
	}).Info("Starting Snaplock agent")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Agent failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OpenTelemetry bootstrap. InitOTel returns nil providers when
	// the exporter is disabled.
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	pluginLog := logrus.New()
	pluginLog.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	opts := []engine.Option{
		engine.WithLogger(logger.Component("engine")),
		engine.WithPluginLogger(pluginLog),
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
		opts = append(opts, engine.WithMetrics(metrics))
	}

	var otelMetrics *observability.OTelMetrics
	if providers != nil {
		otelMetrics, err = observability.NewOTelMetrics()
		if err != nil {
			return fmt.Errorf("failed to build OpenTelemetry instruments: %w", err)
		}
		opts = append(opts, engine.WithOTelMetrics(otelMetrics))
	}

	eng, err := engine.New(cfg.Engine, opts...)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	// Audit trail. The recorder subscribes before the first policy
	// load so admin events land in the journal too.
	var dest *auditDest
	if cfg.Audit.Enabled {
		dest, err = openAuditDest(cfg.Audit)
		if err != nil {
			return err
		}
	}

	var (
		rec    *audit.Recorder
		recSub string
	)
	if dest != nil {
		recOpts := []audit.RecorderOption{audit.WithRecorderLogger(logger.Component("audit"))}
		if metrics != nil {
			recOpts = append(recOpts, audit.WithRecorderMetrics(metrics))
		}
		if otelMetrics != nil {
			recOpts = append(recOpts, audit.WithRecorderOTel(otelMetrics))
		}
		rec = audit.NewRecorder(dest.logger, dest.backend, recOpts...)
		recSub, err = eng.Subscribe(events.TypeWildcard, rec.Handler())
		if err != nil {
			return fmt.Errorf("failed to subscribe audit recorder: %w", err)
		}
	}

	loader := &policyLoader{
		engine:     eng,
		bundlePath: cfg.Bundle.Path,
		logger:     logger.Component("policy"),
		pluginLog:  pluginLog,
	}
	if cfg.Bundle.Path != "" {
		if err := loader.Reload(ctx); err != nil {
			return fmt.Errorf("failed to load policy bundle: %w", err)
		}
	} else {
		logger.Warn("No bundle path configured; starting with an empty policy, every request will be denied")
	}

	if err := eng.StartSweeper(ctx); err != nil {
		return fmt.Errorf("failed to start lock sweeper: %w", err)
	}

	// Ops listener: health probes plus the Prometheus endpoint.
	mux := http.NewServeMux()
	var journal *sql.DB
	if dest != nil {
		journal = dest.db
	}
	checker := observability.NewHealthChecker(journal, version)
	checker.RegisterProbe("engine", func(pctx context.Context) error {
		_, _, err := eng.Explain(pctx, rules.Request{Path: "/", User: "ops-probe", Action: "read"})
		return err
	})
	observability.RegisterHealthRoutes(mux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	var handler http.Handler = mux
	if metrics != nil {
		handler = observability.HTTPMetricsMiddleware(metrics)(mux)
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Ops.Host, cfg.Ops.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Ops.ReadTimeout,
		WriteTimeout: cfg.Ops.WriteTimeout,
		IdleTimeout:  cfg.Ops.IdleTimeout,
	}

	sm := observability.NewShutdownManager(logger, server, cfg.Ops.ShutdownTimeout)

	if cfg.Bundle.Watch && cfg.Bundle.Path != "" {
		watchCtx, watchCancel := context.WithCancel(ctx)
		watcher := config.NewBundleWatcher(cfg.Bundle.Path, cfg.Bundle.Debounce, logger.Component("watcher"))
		go func() {
			err := watcher.Watch(watchCtx, func() {
				if err := loader.Reload(context.Background()); err != nil {
					logger.WithError(err).Error("Bundle reload failed, keeping previous policy")
				}
			})
			if err != nil && watchCtx.Err() == nil {
				logger.WithError(err).Error("Bundle watcher stopped")
			}
		}()
		sm.RegisterShutdownFunc("bundle watcher", func(context.Context) error {
			watchCancel()
			return nil
		})
	}

	if dest != nil && dest.store != nil && cfg.Audit.RetentionDays > 0 {
		sched := cron.New()
		_, err := sched.AddFunc(auditRetentionSchedule, func() {
			removed, err := dest.store.Cleanup(context.Background(), audit.RetentionPolicy{RetentionDays: cfg.Audit.RetentionDays})
			if err != nil {
				logger.WithError(err).Error("Audit retention cleanup failed")
				return
			}
			logger.WithField("removed", removed).Info("Audit retention cleanup complete")
		})
		if err != nil {
			return fmt.Errorf("failed to schedule audit retention cleanup: %w", err)
		}
		sched.Start()
		sm.RegisterShutdownFunc("retention scheduler", func(context.Context) error {
			<-sched.Stop().Done()
			return nil
		})
	}

	// Shutdown order: stop the producer, drain the recorder, then
	// close the stores it writes to.
	sm.RegisterShutdownFunc("engine", func(context.Context) error {
		return eng.Close()
	})
	if rec != nil {
		sm.RegisterShutdownFunc("audit recorder", func(context.Context) error {
			eng.Unsubscribe(recSub)
			return rec.Close()
		})
	}
	if dest != nil {
		sm.RegisterShutdownFunc("audit backend", func(context.Context) error {
			return dest.Close()
		})
	}
	if providers != nil {
		sm.RegisterShutdownFunc("telemetry", func(sctx context.Context) error {
			return observability.ShutdownOTel(sctx, providers, logger)
		})
	}

	go func() {
		logger.Infof("Ops server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Ops server failed")
			os.Exit(1)
		}
	}()

	stats := eng.Stats()
	logger.WithFields(map[string]interface{}{
		"rules":      stats.Rules,
		"plugins":    stats.Plugins,
		"generation": stats.Generation,
	}).Info("Snaplock agent ready")

	return sm.WaitForShutdown()
}

// auditDest bundles an audit backend with the handles the agent owns
// and closes on shutdown.
type auditDest struct {
	logger  audit.Logger
	backend string

	// store and db are set when a SQLite journal is part of the
	// backend: store serves retention cleanup, db is the shared
	// connection.
	store *audit.DBLogger
	db    *sql.DB
}

func (d *auditDest) Close() error {
	err := d.logger.Close()
	if d.db != nil {
		if cerr := d.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// openAuditDest builds the audit backend selected by config: a JSON
// lines file, an embedded SQLite journal, or both behind a
// MultiLogger.
func openAuditDest(cfg config.AuditConfig) (*auditDest, error) {
	switch cfg.Backend {
	case "file":
		fl, err := audit.NewFileLogger(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		return &auditDest{logger: fl, backend: "file"}, nil

	case "sqlite":
		db, dl, err := openJournal(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return &auditDest{logger: dl, backend: "db", store: dl, db: db}, nil

	case "both":
		fl, err := audit.NewFileLogger(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		db, dl, err := openJournal(cfg.DBPath)
		if err != nil {
			fl.Close()
			return nil, err
		}
		return &auditDest{logger: audit.NewMultiLogger(fl, dl), backend: "multi", store: dl, db: db}, nil

	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}

func openJournal(path string) (*sql.DB, *audit.DBLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create audit journal directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit journal %s: %w", path, err)
	}
	dl, err := audit.NewDBLogger(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize audit journal: %w", err)
	}
	return db, dl, nil
}
