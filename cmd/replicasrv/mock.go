package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	noop "go.opentelemetry.io/otel/trace/noop"

	replica "replicamgr"
	"replicamgr/internal/observability"
	"replicamgr/logging"
)

// mockTransport satisfies replica.Transport without a live connection,
// logging every send instead of writing it to a socket. The demo host
// falls back to this so construct/destruct/scope/serialize still produce
// observable output when no --listen address was given.
type mockTransport struct {
	mu     sync.Mutex
	router *logging.Router
	tracer trace.Tracer
	sent   int
}

func newMockTransport(router *logging.Router, tracer trace.Tracer) *mockTransport {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("mock-transport")
	}
	return &mockTransport{router: router, tracer: tracer}
}

func (t *mockTransport) Send(channel byte, reliability replica.Reliability, payload []byte, target replica.ParticipantID) error {
	_, span := observability.StartTransportSend(context.Background(), t.tracer, len(payload))
	defer span.End()

	t.mu.Lock()
	t.sent++
	n := t.sent
	t.mu.Unlock()

	fmt.Printf("mock-send #%d channel=%d reliability=%v target=%s bytes=%d\n", n, channel, reliability, target, len(payload))
	if t.router != nil {
		t.router.Publish(context.Background(), logging.Event{
			Type:     "MOCK_SEND",
			Time:     time.Now(),
			Targets:  []logging.EntityRef{{ID: string(target), Kind: logging.EntityKindParticipant}},
			Reliable: reliability == replica.ReliableOrdered,
			Severity: logging.SeverityDebug,
			Category: logging.CategoryDispatch,
		})
	}
	return nil
}
