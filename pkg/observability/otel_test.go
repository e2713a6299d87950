package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)
	if err != nil {
		t.Fatalf("InitOTel with disabled config failed: %v", err)
	}
	if providers != nil {
		t.Error("Expected nil providers when telemetry is disabled")
	}
	if !strings.Contains(buf.String(), "OpenTelemetry is disabled") {
		t.Errorf("Expected disabled notice in log output, got %q", buf.String())
	}
}

func TestInitOTel_FullInitialization(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping exporter construction in short mode")
	}

	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	cfg := OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:4317",
		ServiceName:    "snaplock-test",
		ServiceVersion: "0.0.1",
		Insecure:       true,
	}

	// Exporters connect lazily, so construction succeeds without a
	// collector listening.
	providers, err := InitOTel(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("InitOTel failed: %v", err)
	}
	if providers == nil || providers.TracerProvider == nil || providers.MeterProvider == nil {
		t.Fatal("Expected both providers to be constructed")
	}

	tracer := otel.Tracer("snaplock-test")
	ctx, span := tracer.Start(context.Background(), "request-lock")
	if !span.IsRecording() {
		t.Error("Expected the global tracer to produce recording spans")
	}

	if got := UpdateLoggerWithTraceContext(ctx, logger); got == logger {
		t.Error("Expected an annotated logger while the span records")
	}
	span.End()

	// Without a collector the flush fails; shutdown must still return.
	sctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = ShutdownOTel(sctx, providers, logger)
}

func TestShutdownOTel(t *testing.T) {
	t.Run("nil providers is a no-op", func(t *testing.T) {
		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		if err := ShutdownOTel(context.Background(), nil, logger); err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	})

	t.Run("nil members are skipped", func(t *testing.T) {
		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		if err := ShutdownOTel(context.Background(), &OTelProviders{}, logger); err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	})

	t.Run("shuts down a live tracer provider", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(InfoLevel, &buf)

		providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}
		if err := ShutdownOTel(context.Background(), providers, logger); err != nil {
			t.Fatalf("Shutdown failed: %v", err)
		}
		if !strings.Contains(buf.String(), "OpenTelemetry shutdown complete") {
			t.Errorf("Expected completion notice in log output, got %q", buf.String())
		}
	})
}

func TestUpdateLoggerWithTraceContext(t *testing.T) {
	t.Run("no span returns the logger unchanged", func(t *testing.T) {
		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		if got := UpdateLoggerWithTraceContext(context.Background(), logger); got != logger {
			t.Error("Expected the same logger back without a span")
		}
	})

	t.Run("recording span adds trace fields", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		var buf bytes.Buffer
		UpdateLoggerWithTraceContext(ctx, NewLogger(InfoLevel, &buf)).Info("annotated")

		entry := decodeLogLine(t, &buf)
		if entry["trace_id"] != span.SpanContext().TraceID().String() {
			t.Errorf("Expected trace_id %s, got %v", span.SpanContext().TraceID(), entry["trace_id"])
		}
		if entry["span_id"] != span.SpanContext().SpanID().String() {
			t.Errorf("Expected span_id %s, got %v", span.SpanContext().SpanID(), entry["span_id"])
		}
	})

	t.Run("existing fields survive annotation", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		var buf bytes.Buffer
		logger := NewLogger(InfoLevel, &buf).WithField("path", "/data/report.csv")
		UpdateLoggerWithTraceContext(ctx, logger).Info("annotated")

		entry := decodeLogLine(t, &buf)
		if entry["path"] != "/data/report.csv" {
			t.Errorf("Expected the path field to survive, got %v", entry["path"])
		}
		if entry["trace_id"] == nil {
			t.Error("Expected a trace_id field alongside existing fields")
		}
	})

	t.Run("unsampled span adds nothing", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		var buf bytes.Buffer
		UpdateLoggerWithTraceContext(ctx, NewLogger(InfoLevel, &buf)).Info("plain")

		entry := decodeLogLine(t, &buf)
		if _, exists := entry["trace_id"]; exists {
			t.Error("Expected no trace_id from a non-recording span")
		}
	})

	t.Run("nested spans share the trace", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
		tracer := tp.Tracer("test")

		ctx, parent := tracer.Start(context.Background(), "parent")
		defer parent.End()
		ctx, child := tracer.Start(ctx, "child")
		defer child.End()

		var buf bytes.Buffer
		UpdateLoggerWithTraceContext(ctx, NewLogger(InfoLevel, &buf)).Info("child op")

		entry := decodeLogLine(t, &buf)
		if entry["trace_id"] != parent.SpanContext().TraceID().String() {
			t.Error("Expected the child to log under the parent's trace")
		}
		if entry["span_id"] != child.SpanContext().SpanID().String() {
			t.Error("Expected the innermost span's ID")
		}
	})
}

func BenchmarkUpdateLoggerWithTraceContext(b *testing.B) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("bench").Start(context.Background(), "op")
	defer span.End()

	logger := NewNopLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = UpdateLoggerWithTraceContext(ctx, logger)
	}
}
