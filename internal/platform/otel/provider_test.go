package otel

import (
	"context"
	"slices"
	"strings"
	"testing"

	gootel "go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{ServiceName: "steam-gateway"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestSetupRegistersTraceContextPropagator(t *testing.T) {
	if _, err := Setup(context.Background(), Options{ServiceName: "steam-gateway"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := gootel.GetTextMapPropagator().Fields()
	if !slices.Contains(fields, "traceparent") {
		t.Fatalf("expected traceparent propagator, got %v", fields)
	}
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no actual export happens.
	shutdown, err := Setup(context.Background(), Options{
		ServiceName: "steam-gateway",
		Version:     "test",
		Environment: "test",
		Endpoint:    "http://192.0.2.1:4318",
		SampleRatio: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupRejectsSampleRatioOutOfRange(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.5} {
		_, err := Setup(context.Background(), Options{
			ServiceName: "steam-gateway",
			Endpoint:    "http://192.0.2.1:4318",
			SampleRatio: ratio,
		})
		if err == nil {
			t.Errorf("ratio %v: expected error", ratio)
		}
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		root  string
	}{
		{1, "root:AlwaysOnSampler"},
		{0.25, "root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := sampler(tt.ratio).Description()
		if !strings.HasPrefix(desc, "ParentBased{") || !strings.Contains(desc, tt.root) {
			t.Errorf("sampler(%v) = %s, want %s", tt.ratio, desc, tt.root)
		}
	}
}

func TestServiceAttributes(t *testing.T) {
	attrs := serviceAttributes(Options{ServiceName: "steam-gateway", Environment: "production"})
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %v", attrs)
	}
	if attrs[0] != semconv.ServiceName("steam-gateway") {
		t.Errorf("unexpected service attribute %v", attrs[0])
	}
	if attrs[1] != semconv.DeploymentEnvironment("production") {
		t.Errorf("unexpected environment attribute %v", attrs[1])
	}
}
