package replica

import (
	"sync"
	"time"
)

// mirrorEntry is the per-(participant, handle) record described in spec.md
// §3: whether the remote end is in scope for the object, and when it was
// last sent a serialize payload.
type mirrorEntry struct {
	inScope      bool
	lastSendTime time.Time
}

// mirror tracks, for one participant, which handles the remote end is
// believed to possess (spec.md §4.3). A mirror entry exists iff a
// construction (explicit or implicit) has been successfully dispatched for
// that handle (I5); it is the authority for scope queries and the
// precondition of I6 (serialize requires an in-scope mirror entry).
type mirror struct {
	mu      sync.Mutex
	entries map[Handle]*mirrorEntry
}

func newMirror() *mirror {
	return &mirror{entries: make(map[Handle]*mirrorEntry)}
}

// insert creates a mirror entry for handle with the given initial scope and
// send time. It is a no-op if an entry already exists (callers are expected
// to have already checked existence per the dispatch rule in spec.md §4.6
// step 2: "if a mirror entry already exists, skip the construct bits").
func (m *mirror) insert(handle Handle, inScope bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[handle]; exists {
		return
	}
	m.entries[handle] = &mirrorEntry{inScope: inScope, lastSendTime: now}
}

// remove deletes the mirror entry for handle, if any.
func (m *mirror) remove(handle Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, handle)
}

// has reports whether a mirror entry exists for handle.
func (m *mirror) has(handle Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[handle]
	return ok
}

// isInScope reports whether handle has a mirror entry and, if so, whether
// it is currently in scope.
func (m *mirror) isInScope(handle Handle) (inScope bool, exists bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[handle]
	if !ok {
		return false, false
	}
	return entry.inScope, true
}

// setScope updates the in-scope flag for an existing entry. Returns false
// if no entry exists for handle.
func (m *mirror) setScope(handle Handle, inScope bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[handle]
	if !ok {
		return false
	}
	entry.inScope = inScope
	return true
}

// touchSendTime records that a serialize was just sent for handle. Returns
// false if no entry exists for handle.
func (m *mirror) touchSendTime(handle Handle, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[handle]
	if !ok {
		return false
	}
	entry.lastSendTime = now
	return true
}

// lastSendTime reports the last serialize send time recorded for handle.
func (m *mirror) lastSendTime(handle Handle) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[handle]
	if !ok {
		return time.Time{}, false
	}
	return entry.lastSendTime, true
}

// len reports the number of mirror entries currently tracked.
func (m *mirror) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
