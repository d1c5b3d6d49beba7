package observability

import (
	"context"
	"errors"
	"testing"
)

func TestNewTracerNoEndpointIsNoopButUsable(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	if tracer == nil {
		t.Fatal("NewTracer returned nil tracer")
	}

	ctx, span := tracer.StartProviderCall(context.Background(), "anthropic", "claude-3")
	if ctx == nil {
		t.Fatal("StartProviderCall returned nil context")
	}
	span.End()

	_, span = tracer.StartCommandRPC(context.Background(), "conn-1")
	span.End()

	if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
		t.Fatalf("shutdown: %v", shutdownErr)
	}
}

func TestRecordErrorNilIsNoop(t *testing.T) {
	tracer, _ := NewTracer(TraceConfig{})
	_, span := tracer.StartCommandRPC(context.Background(), "conn-1")
	defer span.End()

	tracer.RecordError(span, nil)
	tracer.RecordError(span, errors.New("boom"))
}
