package replica

import (
	"io"
	"time"
)

// ReceiveDisposition is the outcome of a replica's receive-side capability.
type ReceiveDisposition int

const (
	// Accept means the capability consumed the record and it is fully handled.
	Accept ReceiveDisposition = iota
	// Reject means the capability will never be able to handle this record;
	// it should be dropped without retry.
	Reject
	// Defer means the capability cannot handle the record yet (for example,
	// a dependency has not arrived) and it should be retried on a later tick.
	Defer
)

// Replica is the capability interface the manager invokes on user objects.
// The manager holds only a Handle; it never touches the object directly
// except through these methods, and only for the interfaces enabled by the
// object's InterfaceMask (see Registry.SetInterfaceMask).
type Replica interface {
	// SendConstruction writes construction payload bytes for target.
	// Returning wrote=false with no error is the per-object cancel contract
	// of spec.md §4.6: the manager treats it as "declined" and skips the bit
	// without dropping the rest of the queued record.
	SendConstruction(out io.Writer, now time.Time, target ParticipantID) (wrote bool, err error)

	// ReceiveConstruction decodes an inbound construction record.
	ReceiveConstruction(in io.Reader, now time.Time, netID NetworkID, sender ParticipantID) (ReceiveDisposition, error)

	// SendDestruction writes destruction payload bytes for target.
	SendDestruction(out io.Writer, target ParticipantID) (wrote bool, err error)

	// ReceiveDestruction acknowledges an inbound destruction record.
	ReceiveDestruction(in io.Reader, sender ParticipantID) (ack bool, err error)

	// SendScopeChange writes a scope-change payload for target.
	SendScopeChange(out io.Writer, inScope bool, target ParticipantID) (wrote bool, err error)

	// ReceiveScopeChange decodes an inbound scope-change record and reports
	// the new scope the sender is asserting.
	ReceiveScopeChange(in io.Reader, sender ParticipantID) (newScope bool, err error)

	// Serialize writes the latest state for target.
	Serialize(out io.Writer, target ParticipantID) (wrote bool, err error)

	// Deserialize applies an inbound state payload and reports whether it
	// changed local state.
	Deserialize(in io.Reader, sender ParticipantID) (stateChanged bool, err error)

	// NetworkID returns the object's current network identifier, or
	// NoNetworkID if one has not been assigned yet.
	NetworkID() NetworkID
}

// InterfaceMask is a bitmask of capability interfaces that may be invoked
// for a given handle (spec.md §3 "Registered Replica"). The default mask
// enables all interfaces.
type InterfaceMask uint8

const (
	InterfaceSendConstruction InterfaceMask = 1 << iota
	InterfaceReceiveConstruction
	InterfaceSendDestruction
	InterfaceReceiveDestruction
	InterfaceSendScope
	InterfaceReceiveScope
	InterfaceSerialize
	InterfaceDeserialize

	// InterfaceMaskAll enables every capability interface; this is the
	// default mask for a newly registered replica.
	InterfaceMaskAll InterfaceMask = InterfaceSendConstruction |
		InterfaceReceiveConstruction |
		InterfaceSendDestruction |
		InterfaceReceiveDestruction |
		InterfaceSendScope |
		InterfaceReceiveScope |
		InterfaceSerialize |
		InterfaceDeserialize
)

// Has reports whether every bit in want is set in the mask.
func (m InterfaceMask) Has(want InterfaceMask) bool {
	return m&want == want
}
