package observability

import (
	"context"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type countingProcessor struct {
	mu      sync.Mutex
	started int
	ended   int
}

func (p *countingProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {
	p.mu.Lock()
	p.started++
	p.mu.Unlock()
}

func (p *countingProcessor) OnEnd(sdktrace.ReadOnlySpan) {
	p.mu.Lock()
	p.ended++
	p.mu.Unlock()
}

func (p *countingProcessor) Shutdown(context.Context) error   { return nil }
func (p *countingProcessor) ForceFlush(context.Context) error { return nil }

func TestSetupDisabledReturnsNoopTracer(t *testing.T) {
	tracer, shutdown, err := Setup(context.Background(), Config{EnableTracing: false}, "replica-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, span := tracer.Start(context.Background(), "ignored")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestStartTickStartsAndEndsOneSpanOnAnEnabledProvider(t *testing.T) {
	proc := &countingProcessor{}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(proc)
	tracer := tp.Tracer("replica-test")

	_, span := StartTick(context.Background(), tracer, 3, 5)
	span.End()

	if proc.started != 1 || proc.ended != 1 {
		t.Fatalf("expected exactly one started and ended span, got started=%d ended=%d", proc.started, proc.ended)
	}
}

func TestStartTransportSendStartsAndEndsOneSpanOnAnEnabledProvider(t *testing.T) {
	proc := &countingProcessor{}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(proc)
	tracer := tp.Tracer("replica-test")

	_, span := StartTransportSend(context.Background(), tracer, 128)
	span.End()

	if proc.started != 1 || proc.ended != 1 {
		t.Fatalf("expected exactly one started and ended span, got started=%d ended=%d", proc.started, proc.ended)
	}
}
