package replica

// Reliability selects the delivery guarantee for one transport send
// (spec.md §6.2).
type Reliability int

const (
	// ReliableOrdered guarantees delivery and ordering on the chosen
	// channel. Construct, destruct, scope-change, and download-complete
	// records are sent reliable-ordered (spec.md §5).
	ReliableOrdered Reliability = iota
	// UnreliableSequenced tolerates loss; a fresher record supersedes a
	// stale one. Serialize records are sent unreliable-sequenced (spec.md
	// §5: "loss is acceptable because fresh serializes supersede").
	UnreliableSequenced
)

// Transport is the narrow interface the manager consumes from the
// surrounding reliable-datagram peer-to-peer networking layer (spec.md
// §6.2). The manager never depends on a concrete transport; internal/wsnet
// provides one concrete binding over WebSocket (SPEC_FULL.md §6.5).
type Transport interface {
	// Send transmits bytes to target on channel with the requested
	// reliability. A non-nil error is reported upward by the manager; the
	// command bit that produced the send stays cleared regardless (spec.md
	// §7: "Transport send failure... command bit stays cleared").
	Send(channel byte, reliability Reliability, payload []byte, target ParticipantID) error
}

// ConnectionEvent is delivered by the transport to the manager's lifecycle
// callbacks (spec.md §6.2).
type ConnectionEvent struct {
	Participant ParticipantID
}

// The manager exposes its own lifecycle entry points — HandleConnect,
// HandlePacket, HandleDisconnect on *Manager (manager.go) — for a transport
// adapter to call directly, matching the teacher's pattern of the
// websocket handler calling concrete Hub methods (Join, Subscribe,
// Disconnect) rather than the Hub registering into a listener interface.
