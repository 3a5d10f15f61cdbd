package replica

import (
	"sync"

	"github.com/google/uuid"
)

// participant is the per-peer record described in spec.md §3: its mirror,
// command queue, and received-command queue, plus the pending
// download-complete flag.
type participant struct {
	id ParticipantID

	callDownloadCompletePending bool

	mirror       *mirror
	commandQueue *commandQueue
	received     *receivedQueue
}

func newParticipant(id ParticipantID) *participant {
	return &participant{
		id:                          id,
		callDownloadCompletePending: true,
		mirror:                      newMirror(),
		commandQueue:                newCommandQueue(),
		received:                    newReceivedQueue(),
	}
}

// ParticipantTable is the ordered set of remote participants currently
// engaged in replication (spec.md §4.2). Its lifecycle is tied to transport
// connect/disconnect events or explicit add/remove calls.
type ParticipantTable struct {
	mu    sync.Mutex
	byID  map[ParticipantID]*participant
	order []ParticipantID
}

// NewParticipantTable constructs an empty participant table.
func NewParticipantTable() *ParticipantTable {
	return &ParticipantTable{byID: make(map[ParticipantID]*participant)}
}

// Add idempotently adds a participant. Returns true if a new record was
// created, false if id was already present.
func (t *ParticipantTable) Add(id ParticipantID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byID[id]; exists {
		return false
	}
	t.byID[id] = newParticipant(id)
	t.order = append(t.order, id)
	return true
}

// AddGenerated adds a new participant under a freshly minted UUIDv7 ID and
// returns it, for callers (such as the demo host's `participant` REPL
// command and its WebSocket handler when no participant query parameter is
// given) that don't have a transport-assigned identity to hand the table. UUIDv7 is
// time-sortable, so IDs naturally order by connection time in logs.
func (t *ParticipantTable) AddGenerated() ParticipantID {
	id := ParticipantID(uuid.Must(uuid.NewV7()).String())
	t.Add(id)
	return id
}

// Remove deletes id and everything it owns: mirror, command queue, and
// received queue (spec.md §4.2). Returns false if id was not present.
func (t *ParticipantTable) Remove(id ParticipantID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byID[id]; !exists {
		return false
	}
	delete(t.byID, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether id is currently in the table.
func (t *ParticipantTable) Contains(id ParticipantID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byID[id]
	return ok
}

// IDs returns every participant ID, in table (insertion) order.
func (t *ParticipantTable) IDs() []ParticipantID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ParticipantID(nil), t.order...)
}

// lookup returns the internal participant record for id. It is unexported
// because the per-participant mirror/queue types are not part of the public
// API surface; callers use the ParticipantTable and Manager methods instead.
func (t *ParticipantTable) lookup(id ParticipantID) (*participant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byID[id]
	return p, ok
}

// forEachOrdered calls fn once per participant, in table order, without
// holding the table lock across the call.
func (t *ParticipantTable) forEachOrdered(fn func(*participant)) {
	t.mu.Lock()
	ids := append([]ParticipantID(nil), t.order...)
	t.mu.Unlock()
	for _, id := range ids {
		t.mu.Lock()
		p, ok := t.byID[id]
		t.mu.Unlock()
		if ok {
			fn(p)
		}
	}
}

// purgeHandle removes every trace of handle from every participant's mirror
// and command queue, without emitting any wire traffic (spec.md §4.6
// "Dereference cascades through all participants").
func (t *ParticipantTable) purgeHandle(handle Handle) {
	t.mu.Lock()
	participants := make([]*participant, 0, len(t.order))
	for _, id := range t.order {
		participants = append(participants, t.byID[id])
	}
	t.mu.Unlock()
	for _, p := range participants {
		p.mirror.remove(handle)
		p.commandQueue.purge(handle)
	}
}
