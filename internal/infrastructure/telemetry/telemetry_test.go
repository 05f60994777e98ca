package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_RequiresServiceName(t *testing.T) {
	if _, _, err := Init(context.Background(), Config{Enabled: true}); err == nil {
		t.Fatal("expected error")
	}
}

func TestInit_Disabled(t *testing.T) {
	tp, shutdown, err := Init(context.Background(), Config{ServiceName: "waypoint"})
	if err != nil {
		t.Fatal(err)
	}
	if tp != nil {
		t.Error("disabled telemetry should not build a provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown = %v", err)
	}
}

func TestInit_EnabledBuildsProvider(t *testing.T) {
	tp, shutdown, err := Init(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "waypoint",
		OTLPEndpoint: "localhost:4318",
		Insecure:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if tp == nil {
		t.Fatal("expected a provider")
	}
	// Nothing was exported, so shutdown does not need a collector.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown = %v", err)
	}
}

func TestNewTracerProviderWithExporter_EmitsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, shutdown, err := newTracerProviderWithExporter(exp, Config{ServiceName: "waypoint", ServiceVersion: "v0"})
	if err != nil {
		t.Fatalf("new tracer provider: %v", err)
	}

	_, sp := tp.Tracer("test").Start(context.Background(), "tool_execution")
	sp.End()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "tool_execution" {
		t.Fatalf("spans = %+v", spans)
	}
	found := false
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == attribute.Key("service.name") && kv.Value.AsString() == "waypoint" {
			found = true
		}
	}
	if !found {
		t.Error("resource missing service.name")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
