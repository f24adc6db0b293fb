package observability

import (
	"context"
	"testing"
)

func TestNewTracer_NoEndpointReturnsNoOpShutdown(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-service"})
	if tracer == nil {
		t.Fatal("NewTracer() returned nil")
	}
	if tracer.provider != nil {
		t.Error("expected no TracerProvider when Endpoint is empty")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v, want nil", err)
	}
}

func TestNewTracer_WithEndpointConfiguresProvider(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Endpoint:       "localhost:4317",
		EnableInsecure: true,
		SamplingRate:   0.5,
	})
	defer func() { _ = shutdown(context.Background()) }()

	if tracer == nil {
		t.Fatal("NewTracer() returned nil")
	}
	if tracer.provider == nil {
		t.Error("expected a TracerProvider when Endpoint is set")
	}
}
