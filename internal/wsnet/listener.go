package wsnet

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	noop "go.opentelemetry.io/otel/trace/noop"

	replica "replicamgr"
	"replicamgr/internal/observability"
	"replicamgr/internal/telemetry"
)

// Manager is the narrow surface Listener calls into. *replica.Manager
// satisfies it directly.
type Manager interface {
	HandleConnect(replica.ConnectionEvent)
	HandleDisconnect(replica.ConnectionEvent)
	HandlePacket(replica.ParticipantID, replica.WireRecord)
}

// Listener binds replica.Transport to a set of live WebSocket
// connections: one *websocket.Conn per participant, writes serialized
// through a per-connection mutex so a reliable-ordered frame and a
// later one never interleave.
type Listener struct {
	mu      sync.Mutex
	conns   map[replica.ParticipantID]*connection
	manager Manager
	logger  telemetry.Logger
	codec   Codec
	tracer  trace.Tracer
}

type connection struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	recv    *sequenceGuard
	sendSeq uint64
}

// NewListener constructs a Listener dispatching connect/packet/disconnect
// events into manager. Pass a nil tracer to get a no-op one (tracing off).
func NewListener(manager Manager, logger telemetry.Logger, codec Codec, tracer trace.Tracer) *Listener {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	if codec == nil {
		codec = PlainCodec{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("wsnet")
	}
	return &Listener{
		conns:   make(map[replica.ParticipantID]*connection),
		manager: manager,
		logger:  logger,
		codec:   codec,
		tracer:  tracer,
	}
}

// Serve registers conn for participant and runs its read loop until the
// connection closes, at which point the participant is disconnected.
func (l *Listener) Serve(participant replica.ParticipantID, conn *websocket.Conn) {
	if l == nil || conn == nil {
		return
	}

	c := &connection{conn: conn, recv: newSequenceGuard()}
	l.mu.Lock()
	if existing, ok := l.conns[participant]; ok {
		existing.conn.Close()
	}
	l.conns[participant] = c
	l.mu.Unlock()

	l.manager.HandleConnect(replica.ConnectionEvent{Participant: participant})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			l.disconnect(participant)
			return
		}

		frame, err := l.codec.Decode(payload)
		if err != nil {
			l.logger.Printf("wsnet: discarding malformed frame from %s: %v", participant, err)
			continue
		}

		record, err := replica.DecodeWireRecord(frame.Body)
		if err != nil {
			l.logger.Printf("wsnet: discarding malformed wire record from %s: %v", participant, err)
			continue
		}

		if frame.Reliability == replica.UnreliableSequenced {
			if !c.recv.accept(record.NetworkID, frame.Sequence) {
				continue
			}
		}

		l.manager.HandlePacket(participant, record)
	}
}

func (l *Listener) disconnect(participant replica.ParticipantID) {
	l.mu.Lock()
	delete(l.conns, participant)
	l.mu.Unlock()
	l.manager.HandleDisconnect(replica.ConnectionEvent{Participant: participant})
}

// Send implements replica.Transport by looking up the live connection
// for target and writing the framed, codec-encoded payload to it.
// Per spec.md §7, a failed send simply returns an error — the caller
// (dispatch.go) leaves the owning command bit cleared regardless.
func (l *Listener) Send(channel byte, reliability replica.Reliability, payload []byte, target replica.ParticipantID) error {
	_, span := observability.StartTransportSend(context.Background(), l.tracer, len(payload))
	defer span.End()

	l.mu.Lock()
	c, ok := l.conns[target]
	l.mu.Unlock()
	if !ok {
		return errNoConnection{target: target}
	}

	seq := uint64(0)
	if reliability == replica.UnreliableSequenced {
		seq = c.nextSendSequence()
	}

	encoded, err := l.codec.Encode(Frame{Channel: channel, Reliability: reliability, Sequence: seq, Body: payload})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, encoded)
}

func (c *connection) nextSendSequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendSeq++
	return c.sendSeq
}

type errNoConnection struct{ target replica.ParticipantID }

func (e errNoConnection) Error() string {
	return "wsnet: no live connection for participant " + string(e.target)
}

var _ replica.Transport = (*Listener)(nil)
