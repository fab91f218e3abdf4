package observability

import (
	"context"
	"testing"

	"github.com/signalsfoundry/building-sim/internal/logging"
)

func TestTracingConfigFromEnvOverlaysBase(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "TRUE")
	t.Setenv("SIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("SIM_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "0.25")

	cfg := TracingConfigFromEnv(TracingConfig{ServiceName: "from-file"})
	if !cfg.Enabled {
		t.Fatalf("Enabled = false, want true")
	}
	if cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("exporter/endpoint = %q/%q", cfg.Exporter, cfg.Endpoint)
	}
	if cfg.ServiceName != "from-file" {
		t.Fatalf("ServiceName = %q, want from-file", cfg.ServiceName)
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("SampleRatio = %v, want 0.25", cfg.SampleRatio)
	}
}

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "7")

	cfg := TracingConfigFromEnv(TracingConfig{})
	if cfg.Enabled {
		t.Fatalf("tracing should default to disabled")
	}
	if cfg.Exporter != "stdout" || cfg.ServiceName != "building-sim" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	cfg := TracingConfig{Enabled: true, Exporter: "stdout"}.ApplyDefaults()
	shutdown, err := InitTracing(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
