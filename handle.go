package replica

// Handle is the opaque identity of a user-owned replica object. The manager
// never owns the memory behind a handle; it holds a weak relation that must
// be released via Dereference before the caller frees the underlying object.
type Handle uint64

// NetworkID is the externally assigned, stable identifier used on the wire.
// A handle may have no NetworkID at the moment a command is issued; the
// manager tolerates this and resolves it lazily during dispatch (§4.6).
type NetworkID uint32

// NoNetworkID is the zero value meaning "not yet assigned".
const NoNetworkID NetworkID = 0

// ParticipantID identifies a remote participant engaged in replication.
type ParticipantID string

// UnassignedParticipant is the sentinel ParticipantID meaning "no specific
// participant" (spec.md §4.4: "broadcast=true with pid=unassigned targets
// every participant"). It is the zero value of ParticipantID.
const UnassignedParticipant ParticipantID = ""
