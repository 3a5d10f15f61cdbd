package replica

import (
	"bytes"
)

// dispatchOne applies spec.md §4.6 to a single queued record: resolve
// identity, then construct, then scope-change, then serialize, in that
// fixed order (P7). It reports which bits should be retired from the
// queue. A bit that did not succeed because it is waiting on a dependency
// (no network ID yet, no mirror entry yet, remote end not in scope yet) or
// because the capability declined stays queued for retry on a later tick.
// A bit whose interface is disabled on the registry is retired anyway,
// without any wire effect, so a permanently disabled capability does not
// loop forever (spec.md §7 "Interface-disabled call").
func (m *Manager) dispatchOne(target ParticipantID, p *participant, handle Handle, bits CommandBits) CommandBits {
	object, ok := m.registry.Lookup(handle)
	if !ok {
		// Handle vanished between snapshot and dispatch (e.g. a dereference
		// raced the tick); the command queue purge already dropped the
		// record, so there is nothing left to retire.
		return 0
	}

	// Step 1: resolve identity. Without a network ID the object cannot be
	// addressed on the wire at all; skip the whole record this tick and
	// retry next tick (spec.md §4.6 step 1, scenario S1).
	netID := object.NetworkID()
	if netID == NoNetworkID {
		return 0
	}

	mask := m.registry.InterfaceMask(handle)
	var retired CommandBits

	// Step 2: construct.
	if bits&(ExplicitConstruct|ImplicitConstruct) != 0 {
		cleared := m.dispatchConstruct(target, p, handle, object, netID, mask, bits)
		retired |= cleared
		// A fresh construct that defaulted to in-scope also wants an
		// immediate serialize; fold that into the working bit set so step 4
		// below considers it this same tick (spec.md scenario S4).
		if cleared&ExplicitConstruct != 0 && m.cfg.DefaultScope {
			if inScope, exists := p.mirror.isInScope(handle); exists && inScope {
				bits |= Serialize
			}
		}
	}

	// Step 3: scope change. Requires a mirror entry, which construct may
	// have just created above.
	if bits&(ScopeTrue|ScopeFalse) != 0 {
		cleared := m.dispatchScope(target, p, handle, object, netID, mask, bits)
		retired |= cleared
		if cleared&ScopeTrue != 0 {
			// "If newly true, also implicitly set SERIALIZE" (spec.md
			// §4.6 step 3, scenario R2) — evaluated this same tick only.
			bits |= Serialize
		}
	}

	// Step 4: serialize.
	if bits&Serialize != 0 {
		retired |= m.dispatchSerialize(target, p, handle, object, netID, mask)
	}

	return retired
}

// dispatchConstruct handles the EXPLICIT_CONSTRUCT / IMPLICIT_CONSTRUCT
// bits of one record and returns the subset that should be retired.
func (m *Manager) dispatchConstruct(target ParticipantID, p *participant, handle Handle, object Replica, netID NetworkID, mask InterfaceMask, bits CommandBits) CommandBits {
	if p.mirror.has(handle) {
		// Duplicate: the remote already has this object per the mirror.
		// Retire the construct bits without touching scope/serialize.
		if bits&ExplicitConstruct != 0 {
			return ExplicitConstruct
		}
		return ImplicitConstruct
	}

	if bits&ExplicitConstruct != 0 {
		if !mask.Has(InterfaceSendConstruction) {
			// Permanently disabled: retire so this does not loop, but
			// never create a mirror entry — the remote never received a
			// construction (I5).
			return ExplicitConstruct
		}
		now := m.clock.Now()
		var buf bytes.Buffer
		wrote, err := object.SendConstruction(&buf, now, target)
		if err != nil {
			m.logger.Printf("replica: send-construction error handle=%d target=%s: %v", handle, target, err)
		}
		if !wrote {
			// Per-object cancel: this bit is skipped this tick only; the
			// rest of the record (e.g. a pending scope change) is not
			// dropped (spec.md §4.6 step 2).
			return 0
		}
		inScope := m.cfg.DefaultScope
		p.mirror.insert(handle, inScope, now)
		ts := now.UnixNano()
		m.emit(WireRecord{Tag: TagConstruct, NetworkID: netID, Timestamp: &ts, Payload: buf.Bytes()}, ReliableOrdered, target)
		m.metrics.Add(metricConstructDispatched, 1)
		return ExplicitConstruct
	}

	// IMPLICIT_CONSTRUCT invokes no capability, so no interface mask check
	// applies: assume the remote already has the object, only add a mirror
	// entry, no wire send (spec.md §4.6 step 2).
	p.mirror.insert(handle, false, m.clock.Now())
	return ImplicitConstruct
}

// dispatchScope handles the SCOPE_TRUE / SCOPE_FALSE bit of one record and
// returns it if it should be retired.
func (m *Manager) dispatchScope(target ParticipantID, p *participant, handle Handle, object Replica, netID NetworkID, mask InterfaceMask, bits CommandBits) CommandBits {
	if !p.mirror.has(handle) {
		// Waiting on construct; retry next tick.
		return 0
	}
	scopeBit := ScopeFalse
	inScope := false
	if bits&ScopeTrue != 0 {
		scopeBit, inScope = ScopeTrue, true
	}
	if !mask.Has(InterfaceSendScope) {
		return scopeBit
	}
	var buf bytes.Buffer
	wrote, err := object.SendScopeChange(&buf, inScope, target)
	if err != nil {
		m.logger.Printf("replica: send-scope-change error handle=%d target=%s: %v", handle, target, err)
	}
	if !wrote {
		return 0
	}
	p.mirror.setScope(handle, inScope)
	ts := m.clock.Now().UnixNano()
	m.emit(WireRecord{Tag: TagScopeChange, NetworkID: netID, Timestamp: &ts, Payload: buf.Bytes()}, ReliableOrdered, target)
	m.metrics.Add(metricScopeDispatched, 1)
	return scopeBit
}

// dispatchSerialize handles the SERIALIZE bit of one record and returns it
// if it should be retired.
func (m *Manager) dispatchSerialize(target ParticipantID, p *participant, handle Handle, object Replica, netID NetworkID, mask InterfaceMask) CommandBits {
	inScope, exists := p.mirror.isInScope(handle)
	if !exists || !inScope {
		// I6: serialize requires an in-scope mirror entry; retry later.
		return 0
	}
	if !mask.Has(InterfaceSerialize) {
		return Serialize
	}
	var buf bytes.Buffer
	wrote, err := object.Serialize(&buf, target)
	if err != nil {
		m.logger.Printf("replica: serialize error handle=%d target=%s: %v", handle, target, err)
	}
	if !wrote {
		return 0
	}
	p.mirror.touchSendTime(handle, m.clock.Now())
	// Serialize is sent unreliable-sequenced; a send failure is not
	// retried — a fresher serialize supersedes a lost one (spec.md §9 open
	// question, resolved "no retry").
	m.emit(WireRecord{Tag: TagSerialize, NetworkID: netID, Payload: buf.Bytes()}, UnreliableSequenced, target)
	m.metrics.Add(metricSerializeDispatched, 1)
	return Serialize
}
