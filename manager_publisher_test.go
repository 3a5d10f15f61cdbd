package replica

import (
	"context"
	"sync"
	"testing"

	"replicamgr/logging"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []logging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event logging.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) all() []logging.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]logging.Event, len(p.events))
	copy(out, p.events)
	return out
}

func TestEmitPublishesDispatchEventOnSuccessfulSend(t *testing.T) {
	transport := &mockTransport{}
	publisher := &recordingPublisher{}
	m := NewManager(DefaultConfig(), transport, WithPublisher(publisher))
	m.Reference(1, newMockReplica(5))
	m.AddParticipant("p1")

	m.Construct(1, "p1", false)
	m.Tick()

	events := publisher.all()
	if len(events) != 1 {
		t.Fatalf("expected exactly one published event, got %d", len(events))
	}
	event := events[0]
	if event.Category != logging.CategoryDispatch {
		t.Fatalf("expected a dispatch-category event, got %q", event.Category)
	}
	if event.Type != logging.EventType(TagConstruct) {
		t.Fatalf("expected the CONSTRUCT tag as the event type, got %q", event.Type)
	}
	if len(event.Targets) != 1 || event.Targets[0].ID != "p1" {
		t.Fatalf("expected p1 as the published target, got %+v", event.Targets)
	}
	if !event.Reliable {
		t.Fatalf("expected a construct dispatch to be published as reliable (ReliableOrdered)")
	}
	if event.Tick != 1 {
		t.Fatalf("expected the event's tick to be the tick it was dispatched on, got %d", event.Tick)
	}
}

func TestEmitDoesNotPublishOnTransportFailure(t *testing.T) {
	transport := &mockTransport{fail: true}
	publisher := &recordingPublisher{}
	m := NewManager(DefaultConfig(), transport, WithPublisher(publisher))
	m.Reference(1, newMockReplica(5))
	m.AddParticipant("p1")

	m.Construct(1, "p1", false)
	m.Tick()

	if got := len(publisher.all()); got != 0 {
		t.Fatalf("expected no published events on a failed send, got %d", got)
	}
}
