// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging, metrics
// collection, health checks, graceful shutdown, and distributed tracing integration.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Infof("Agent started on %s", addr)
//
// Context-aware logging:
//
//	logger.WithField("request_id", reqID).WithError(err).Error("Lock request failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.LockRequestsTotal.WithLabelValues("granted").Inc()
//	metrics.EvaluationDuration.Observe(0.00012)
//
// Gauges track live state:
//
//	metrics.LocksHeld.Set(float64(held))
//	metrics.PolicyGeneration.Set(float64(gen))
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(journalDB, version)
//	checker.RegisterProbe("engine", engineProbe)
//	status := checker.Check(ctx)
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:        true,
//		Endpoint:       "otel-collector:4317",
//		ServiceName:    "snaplock-agent",
//		ServiceVersion: "v1.0.0",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/engine: Emits lock and policy metrics through this package
package observability
