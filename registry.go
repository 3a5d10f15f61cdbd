package replica

import (
	"sort"
	"sync"
	"time"
)

// registeredReplica is the registry's record for one locally-known replica
// object (spec.md §3 "Registered Replica").
type registeredReplica struct {
	handle          Handle
	object          Replica
	mask            InterfaceMask
	lastStateChange time.Time
}

// Registry is the global, ordered table of locally-known replica objects
// (spec.md §4.1). It is safe for concurrent use: user code, transport
// callbacks, and the update tick may all touch it.
type Registry struct {
	mu       sync.Mutex
	byHandle map[Handle]*registeredReplica
	order    []Handle // kept sorted by Handle for stable indexed iteration

	onDereference func(Handle)
}

// NewRegistry constructs an empty registry. onDereference, if non-nil, is
// invoked synchronously whenever a handle is dereferenced, before it is
// removed from the registry itself — the manager uses this hook to cascade
// removal through every participant's mirror and command queue (I1).
func NewRegistry(onDereference func(Handle)) *Registry {
	return &Registry{
		byHandle:      make(map[Handle]*registeredReplica),
		onDereference: onDereference,
	}
}

// Reference idempotently registers handle with object. A second Reference
// for an already-registered handle is a no-op with respect to the stored
// object and mask (the first registration wins).
func (r *Registry) Reference(handle Handle, object Replica) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byHandle[handle]; exists {
		return
	}
	r.byHandle[handle] = &registeredReplica{
		handle: handle,
		object: object,
		mask:   InterfaceMaskAll,
	}
	r.insertOrderedLocked(handle)
}

// Dereference removes handle from the registry. The caller's onDereference
// hook (installed via NewRegistry) runs first so cascading cleanup can still
// observe a present-but-about-to-vanish handle.
func (r *Registry) Dereference(handle Handle) {
	r.mu.Lock()
	_, exists := r.byHandle[handle]
	r.mu.Unlock()
	if !exists {
		return
	}
	if r.onDereference != nil {
		r.onDereference(handle)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byHandle, handle)
	r.removeOrderedLocked(handle)
}

// Contains reports whether handle is currently registered.
func (r *Registry) Contains(handle Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byHandle[handle]
	return ok
}

// Lookup returns the replica object registered for handle.
func (r *Registry) Lookup(handle Handle) (Replica, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byHandle[handle]
	if !ok {
		return nil, false
	}
	return rec.object, true
}

// Count reports the number of registered replicas.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// At exposes the registry's deterministic handle ordering so bulk
// operations (e.g. "construct every existing replica to a new participant")
// can iterate with a stable index, as required by spec.md §4.1.
func (r *Registry) At(index int) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.order) {
		return 0, false
	}
	return r.order[index], true
}

// ForEach calls fn once per registered handle, in deterministic order. fn
// must not call back into the registry; take a snapshot first if mutation
// during iteration is required.
func (r *Registry) ForEach(fn func(Handle)) {
	r.mu.Lock()
	handles := append([]Handle(nil), r.order...)
	r.mu.Unlock()
	for _, h := range handles {
		fn(h)
	}
}

// SetInterfaceMask updates which capability interfaces may be invoked for
// handle. Returns false if handle is not registered.
func (r *Registry) SetInterfaceMask(handle Handle, mask InterfaceMask) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byHandle[handle]
	if !ok {
		return false
	}
	rec.mask = mask
	return true
}

// InterfaceMask returns the interface mask for handle, defaulting to
// InterfaceMaskAll for an unregistered handle.
func (r *Registry) InterfaceMask(handle Handle) InterfaceMask {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byHandle[handle]
	if !ok {
		return InterfaceMaskAll
	}
	return rec.mask
}

// MarkStateChanged records that a deserialize of handle returned
// "state changed" at t (spec.md §3 "Registered Replica").
func (r *Registry) MarkStateChanged(handle Handle, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byHandle[handle]; ok {
		rec.lastStateChange = t
	}
}

// LastStateChange reports when handle last reported a deserialize state
// change, and whether that information is available.
func (r *Registry) LastStateChange(handle Handle) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byHandle[handle]
	if !ok || rec.lastStateChange.IsZero() {
		return time.Time{}, false
	}
	return rec.lastStateChange, true
}

// ResolveNetworkID finds the handle currently reporting netID via its
// NetworkID capability (spec.md §2 item 1: "resolves network IDs to
// handles"). Network IDs are owned by the replica object, not cached by the
// registry, so resolution is a scan over the registered set; this keeps the
// registry honest about a network ID that changes or a handle whose object
// has not yet been assigned one (spec.md §4.6 step 1).
func (r *Registry) ResolveNetworkID(netID NetworkID) (Handle, bool) {
	if netID == NoNetworkID {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, handle := range r.order {
		rec := r.byHandle[handle]
		if rec.object != nil && rec.object.NetworkID() == netID {
			return handle, true
		}
	}
	return 0, false
}

func (r *Registry) insertOrderedLocked(handle Handle) {
	idx := sort.Search(len(r.order), func(i int) bool { return r.order[i] >= handle })
	r.order = append(r.order, 0)
	copy(r.order[idx+1:], r.order[idx:])
	r.order[idx] = handle
}

func (r *Registry) removeOrderedLocked(handle Handle) {
	idx := sort.Search(len(r.order), func(i int) bool { return r.order[i] >= handle })
	if idx >= len(r.order) || r.order[idx] != handle {
		return
	}
	r.order = append(r.order[:idx], r.order[idx+1:]...)
}
