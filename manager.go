package replica

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"replicamgr/logging"
)

// Logger is the narrow logging surface the manager depends on, mirroring
// the teacher's telemetry.Logger interface so hosts can plug in
// internal/telemetry.WrapLogger or any other *log.Logger-compatible
// adapter without the core importing a concrete logging package.
type Logger interface {
	Printf(format string, args ...any)
}

// Metrics is the narrow counters/gauges surface the manager depends on,
// mirroring the teacher's telemetry.Metrics interface.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

// Clock abstracts time.Now so ticks are deterministic under test, mirroring
// the teacher's logging.Clock interface.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Manager is the Replica Manager core described by spec.md: the pending-
// command queue, the per-participant object mirror, and the update cycle
// that together enforce dependency ordering and per-object call
// cancellation. It is the single type a host embeds to get replication.
type Manager struct {
	cfg       Config
	registry  *Registry
	table     *ParticipantTable
	transport Transport
	logger    Logger
	metrics   Metrics
	publisher logging.Publisher
	clock     Clock

	autoParticipate bool
	autoConstruct   bool

	tickCount uint64
}

// ManagerOption configures optional Manager dependencies at construction
// time as a functional option, rather than through a long positional
// constructor.
type ManagerOption func(*Manager)

// WithLogger installs a Logger. The default is a no-op.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics installs a Metrics sink. The default is a no-op.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithPublisher installs a structured-event Publisher, satisfied
// directly by *logging.Router. Every successfully dispatched wire
// record is additionally published as a CategoryDispatch event
// (SPEC_FULL.md §7, §10.1); this is purely observational and never
// changes which command bits are cleared or retained. The default is
// a no-op.
func WithPublisher(publisher logging.Publisher) ManagerOption {
	return func(m *Manager) {
		if publisher != nil {
			m.publisher = publisher
		}
	}
}

// WithClock installs a Clock. The default is the system clock.
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager constructs a Manager over transport with cfg and any options.
func NewManager(cfg Config, transport Transport, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:             cfg,
		table:           NewParticipantTable(),
		transport:       transport,
		logger:          nopLogger{},
		metrics:         nopMetrics{},
		publisher:       logging.NopPublisher(),
		clock:           ClockFunc(time.Now),
		autoParticipate: cfg.AutoParticipateNewConnections,
		autoConstruct:   cfg.AutoConstructToNewParticipants,
	}
	m.registry = NewRegistry(m.cascadeDereference)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTransport installs or replaces the transport used by emit(). Hosts
// whose transport needs a reference back to the manager (e.g. a WebSocket
// listener dispatching inbound packets into HandlePacket) construct the
// manager with a nil transport and call SetTransport once the transport
// itself exists.
func (m *Manager) SetTransport(transport Transport) {
	m.transport = transport
}

// Registry exposes the Identity & Registry component (spec.md §4.1) for
// callers that need bulk/indexed access beyond Reference/Dereference.
func (m *Manager) Registry() *Registry { return m.registry }

// Participants exposes the Participant Table component (spec.md §4.2).
func (m *Manager) Participants() *ParticipantTable { return m.table }

// Reference idempotently registers handle with its backing object (spec.md
// §3). User calls receive only a Handle, so they do not register it: a
// call that targets an unregistered handle is ignored (see
// ensureReferenced).
func (m *Manager) Reference(handle Handle, object Replica) {
	m.registry.Reference(handle, object)
}

// Dereference removes handle from the registry and purges every
// per-participant command and mirror entry naming it (I1, spec.md §3
// "Lifecycles"). The caller must not touch the underlying object again
// after this returns.
func (m *Manager) Dereference(handle Handle) {
	m.registry.Dereference(handle)
}

// cascadeDereference is the Registry's onDereference hook: it purges every
// participant's mirror and command queue entries for handle, emitting no
// wire traffic (spec.md §4.6 "Dereference cascades...").
func (m *Manager) cascadeDereference(handle Handle) {
	m.table.purgeHandle(handle)
}

// AddParticipant idempotently adds id to the participant table. If
// Config.AutoConstructToNewParticipants is enabled, it also enqueues an
// ExplicitConstruct for every currently registered replica, in registry
// order (spec.md §6.4, scenario S5).
func (m *Manager) AddParticipant(id ParticipantID) {
	if !m.table.Add(id) {
		return
	}
	if m.autoConstruct {
		m.registry.ForEach(func(handle Handle) {
			// DefaultScope is realized as a side effect of construct's own
			// mirror insert (§4.6 step 2) and dispatchOne's same-tick
			// serialize fold; queuing SCOPE_TRUE here too would dispatch a
			// redundant send-scope-change against a mirror entry that is
			// already in scope (scenario S4).
			m.enqueueTargeted(handle, id, false, ExplicitConstruct)
		})
	}
}

// RemoveParticipant removes id and cascades removal of its mirror, command
// queue, and received queue (spec.md §4.2). After this returns, no outgoing
// or ingoing messages for id are produced (scenario S6).
func (m *Manager) RemoveParticipant(id ParticipantID) {
	m.table.Remove(id)
}

// HandleConnect is the transport lifecycle callback for a new remote
// connection (spec.md §6.2 "attach"). When auto-participation is enabled,
// it adds the participant; existing connections at the moment
// auto-participation is enabled are deliberately not retried here — this is
// a contract (spec.md §4.2), not a bug.
func (m *Manager) HandleConnect(event ConnectionEvent) {
	if m.autoParticipate {
		m.AddParticipant(event.Participant)
	}
}

// HandleDisconnect is the transport lifecycle callback for a lost
// connection (spec.md §6.2 "disconnect").
func (m *Manager) HandleDisconnect(event ConnectionEvent) {
	m.RemoveParticipant(event.Participant)
}

// HandlePacket hands a decoded inbound record to participant's received
// queue. Processing happens during the next Tick, not here (spec.md §4.5).
// A record addressed to an unknown participant is silently dropped
// (spec.md §7 "Participant unknown: silently skipped").
func (m *Manager) HandlePacket(participant ParticipantID, record WireRecord) {
	p, ok := m.table.lookup(participant)
	if !ok {
		return
	}
	p.received.push(record)
}

// IsInScope reports whether handle is currently in scope for participant,
// per the mirror's authoritative scope state (spec.md §4.3).
func (m *Manager) IsInScope(handle Handle, participant ParticipantID) bool {
	p, ok := m.table.lookup(participant)
	if !ok {
		return false
	}
	inScope, exists := p.mirror.isInScope(handle)
	return exists && inScope
}

// Construct enqueues EXPLICIT_CONSTRUCT for handle, targeting participant
// or every participant except it (see resolveTargets). When
// Config.DefaultScope is true, dispatchOne (dispatch.go) inserts the
// resulting mirror entry already in scope and folds in an immediate
// serialize on the same tick (spec.md §4.6 step 2, scenario S4) — Construct
// itself never queues SCOPE_TRUE, which would otherwise dispatch a second,
// redundant send-scope-change against that same mirror entry.
func (m *Manager) Construct(handle Handle, participant ParticipantID, broadcast bool) {
	if !m.ensureReferenced(handle) {
		return
	}
	m.enqueueBroadcast(handle, participant, broadcast, ExplicitConstruct)
}

// ConstructImplicit enqueues IMPLICIT_CONSTRUCT for handle (spec.md §4.4's
// fourth entry point, "implicit construct (see §4.6)"). Unlike Construct, no
// send-construction capability is invoked and no wire record is emitted —
// dispatchOne just inserts a mirror entry assuming the remote already has
// the object (spec.md §4.6 step 2, I5), the way a host uses this for
// objects both ends provision out of band (e.g. a shared map layout) rather
// than replicated over the wire. EXPLICIT_CONSTRUCT already queued for the
// same handle supersedes this bit on merge (I4) rather than the other way
// around, so calling this after Construct is a harmless no-op.
func (m *Manager) ConstructImplicit(handle Handle, participant ParticipantID, broadcast bool) {
	if !m.ensureReferenced(handle) {
		return
	}
	m.enqueueBroadcast(handle, participant, broadcast, ImplicitConstruct)
}

// SetScope enqueues SCOPE_TRUE or SCOPE_FALSE for handle (spec.md §4.4).
func (m *Manager) SetScope(handle Handle, inScope bool, participant ParticipantID, broadcast bool) {
	if !m.ensureReferenced(handle) {
		return
	}
	bits := ScopeFalse
	if inScope {
		bits = ScopeTrue
	}
	m.enqueueBroadcast(handle, participant, broadcast, bits)
}

// SignalSerialize enqueues SERIALIZE for handle (spec.md §4.4).
func (m *Manager) SignalSerialize(handle Handle, participant ParticipantID, broadcast bool) {
	if !m.ensureReferenced(handle) {
		return
	}
	m.enqueueBroadcast(handle, participant, broadcast, Serialize)
}

// Destruct handles destruction eagerly rather than via queued bits
// (spec.md §4.6): it purges every other pending command for the targeted
// (participant, handle) pairs (I7), then, only where a mirror entry
// already exists, invokes send-destruction and removes the mirror entry.
// A handle with no mirror entry for a given target produces no wire
// message at all, resolving spec.md §9's open question in favor of P4.
func (m *Manager) Destruct(handle Handle, participant ParticipantID, broadcast bool) {
	if !m.registry.Contains(handle) {
		return
	}
	object, _ := m.registry.Lookup(handle)
	for _, target := range m.resolveTargets(participant, broadcast) {
		m.destructOne(handle, object, target)
	}
}

func (m *Manager) destructOne(handle Handle, object Replica, target ParticipantID) {
	p, ok := m.table.lookup(target)
	if !ok {
		return
	}
	p.commandQueue.purge(handle)
	if !p.mirror.has(handle) {
		return
	}
	mask := m.registry.InterfaceMask(handle)
	if object != nil && mask.Has(InterfaceSendDestruction) {
		var buf bytes.Buffer
		wrote, err := object.SendDestruction(&buf, target)
		if err != nil {
			m.logger.Printf("replica: send-destruction error handle=%d target=%s: %v", handle, target, err)
		}
		if wrote {
			m.emit(WireRecord{Tag: TagDestruct, NetworkID: object.NetworkID(), Payload: buf.Bytes()}, ReliableOrdered, target)
		}
	}
	p.mirror.remove(handle)
	m.metrics.Add(metricDestructDispatched, 1)
}

// ensureReferenced reports whether handle is currently in the registry.
// It does not register anything: it returns false for a handle that was
// never referenced or has since been dereferenced, and the caller then
// ignores the command (spec.md §7 "Command on unregistered handle ...
// silently ignored").
func (m *Manager) ensureReferenced(handle Handle) bool {
	return m.registry.Contains(handle)
}

// resolveTargets expands (participant, broadcast) into the concrete
// participant IDs a user call addresses (spec.md §4.4):
//
//	broadcast=true,  participant=UnassignedParticipant -> every participant
//	broadcast=true,  participant=<pid>                 -> every participant except pid
//	broadcast=false                                    -> exactly participant
func (m *Manager) resolveTargets(participant ParticipantID, broadcast bool) []ParticipantID {
	if !broadcast {
		if participant == UnassignedParticipant {
			return nil
		}
		return []ParticipantID{participant}
	}
	ids := m.table.IDs()
	if participant == UnassignedParticipant {
		return ids
	}
	out := make([]ParticipantID, 0, len(ids))
	for _, id := range ids {
		if id != participant {
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) enqueueBroadcast(handle Handle, participant ParticipantID, broadcast bool, bits CommandBits) {
	for _, target := range m.resolveTargets(participant, broadcast) {
		m.enqueueTargeted(handle, target, false, bits)
	}
}

// enqueueTargeted merges bits into the single participant's command queue
// for handle (spec.md §7 "Participant unknown: silently skipped").
func (m *Manager) enqueueTargeted(handle Handle, target ParticipantID, _ bool, bits CommandBits) {
	p, ok := m.table.lookup(target)
	if !ok {
		return
	}
	p.commandQueue.merge(handle, bits)
	m.metrics.Add(metricQueueMerges, 1)
	m.metrics.Store(metricQueueDepth, uint64(p.commandQueue.len()))
}

// emit sends an encoded WireRecord to target over the manager's transport,
// logging and reporting (but not retrying) a send failure (spec.md §7).
func (m *Manager) emit(record WireRecord, reliability Reliability, target ParticipantID) {
	if m.transport == nil {
		return
	}
	payload, err := EncodeWireRecord(record)
	if err != nil {
		m.logger.Printf("replica: encode wire record tag=%s target=%s: %v", record.Tag, target, err)
		return
	}
	if err := m.transport.Send(m.cfg.SendChannel, reliability, payload, target); err != nil {
		m.logger.Printf("replica: transport send failed tag=%s target=%s: %v", record.Tag, target, err)
		return
	}
	m.metrics.Add(metricBytesSent, uint64(len(payload)))
	m.publisher.Publish(context.Background(), logging.Event{
		Type:     logging.EventType(record.Tag),
		Tick:     m.tickCount,
		Time:     m.clock.Now(),
		Actor:    logging.EntityRef{ID: fmt.Sprintf("%d", record.NetworkID), Kind: logging.EntityKindReplica},
		Targets:  []logging.EntityRef{{ID: string(target), Kind: logging.EntityKindParticipant}},
		Reliable: reliability == ReliableOrdered,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryDispatch,
	})
}

const (
	metricQueueDepth          = "replica_command_queue_depth"
	metricQueueMerges         = "replica_command_queue_merges_total"
	metricConstructDispatched = "replica_construct_dispatched_total"
	metricDestructDispatched  = "replica_destruct_dispatched_total"
	metricScopeDispatched     = "replica_scope_dispatched_total"
	metricSerializeDispatched = "replica_serialize_dispatched_total"
	metricUnresolvedDropped   = "replica_unresolved_dropped_total"
	metricBytesSent           = "replica_bytes_sent_total"
)
