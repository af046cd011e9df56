package observability

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("segmentation")

	if cfg.ServiceName != "segmentation" {
		t.Errorf("expected ServiceName 'segmentation', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if cfg.Enabled {
		t.Error("expected tracing disabled by default")
	}
}

func TestTracerConfigApplyDefaults(t *testing.T) {
	cfg := TracerConfig{ServiceName: "segmentation"}
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || !cfg.Insecure {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	custom := TracerConfig{ServiceName: "segmentation", Endpoint: "otel:4318", SampleRate: 0.25}
	custom.ApplyDefaults()
	if custom.Endpoint != "otel:4318" || custom.SampleRate != 0.25 || custom.Insecure {
		t.Fatalf("explicit values overwritten: %+v", custom)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := samplerFor(tc.rate).Description(); got != tc.want {
				t.Errorf("samplerFor(%v) = %s, want %s", tc.rate, got, tc.want)
			}
		})
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordNode(ctx, "prediction-pipeline", "predict", "completed", 100*time.Millisecond)
	metrics.RecordPipeline(ctx, "prediction-pipeline", "failed", time.Second)
	metrics.RecordError(ctx, "JOB_FAILED", "predict")
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("segmentation")
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure true for default config")
	}
}

func TestServiceHealth_AddComponent(t *testing.T) {
	sh := NewServiceHealth("segmentation", "1.0.0")
	if sh.Status != HealthStatusUp {
		t.Fatalf("expected 'up', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "pubsub", Status: HealthStatusDegraded, Message: "slow"})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected status 'degraded', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "bigquery", Status: HealthStatusDown})
	sh.AddComponent(Health{Name: "kafka", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected 'down' not overridden by 'degraded', got %s", sh.Status)
	}
	if len(sh.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(sh.Components))
	}
	if sh.IsUp() || sh.Checked.IsZero() {
		t.Errorf("unexpected report %+v", sh)
	}
	if got := strings.Join(sh.Unhealthy(), ","); got != "pubsub,bigquery,kafka" {
		t.Errorf("unexpected unhealthy components %q", got)
	}
}

func TestSpanHelpersRecord(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), SpanBigQueryJob)
	SetSpanAttribute(ctx, AttrNode, "train")
	SetSpanAttribute(ctx, "attempt", 2)
	SetSpanAttribute(ctx, "unsupported", struct{}{})
	SetSpanError(ctx, fmt.Errorf("quota exceeded"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != SpanBigQueryJob {
		t.Errorf("expected span %q, got %q", SpanBigQueryJob, spans[0].Name)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected recorded error event, got %d events", len(spans[0].Events))
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == AttrNode && a.Value.AsString() == "train" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s attribute, got %v", AttrNode, spans[0].Attributes)
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span"))
}
