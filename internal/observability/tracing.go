package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	noop "go.opentelemetry.io/otel/trace/noop"
)

// TickSpanName and TransportSendSpanName name the two spans this
// package wraps every update-engine tick and transport send in
// (SPEC_FULL.md §10.4).
const (
	TickSpanName          = "replica.tick"
	TransportSendSpanName = "replica.transport.send"
)

// Setup installs a TracerProvider for serviceName. When cfg disables
// tracing, the returned tracer and shutdown are no-ops, grounded on
// louisbranch-fracturing.space/internal/platform/otel.Setup's opt-in
// shape but without that file's OTLP exporter — this module has no
// external collector target, so spans stay in-process.
func Setup(ctx context.Context, cfg Config, serviceName string) (tracer trace.Tracer, shutdown func(context.Context) error, err error) {
	if !cfg.EnableTracing {
		return noop.NewTracerProvider().Tracer(serviceName), func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return noop.NewTracerProvider().Tracer(serviceName), func(context.Context) error { return nil }, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Tracer(serviceName), tp.Shutdown, nil
}

// StartTick starts a span named TickSpanName carrying participant and
// dispatched-record counts, to be ended by the caller once the tick
// finishes (SPEC_FULL.md §10.4).
func StartTick(ctx context.Context, tracer trace.Tracer, participants, dispatched int) (context.Context, trace.Span) {
	return tracer.Start(ctx, TickSpanName, trace.WithAttributes(
		attrInt("replica.participants", participants),
		attrInt("replica.dispatched", dispatched),
	))
}

// StartTransportSend starts a child span named TransportSendSpanName
// for one outbound wire send.
func StartTransportSend(ctx context.Context, tracer trace.Tracer, bytes int) (context.Context, trace.Span) {
	return tracer.Start(ctx, TransportSendSpanName, trace.WithAttributes(
		attrInt("replica.wire.bytes", bytes),
	))
}

func attrInt(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
