package replica

import (
	"bytes"
	"time"
)

// Tick runs a single update-engine pass (spec.md §4.7): drain every
// participant's received queue, walk every participant's command queue and
// dispatch each record, then check pending download-complete flags. The
// tick is strictly single-threaded cooperative: call it from one goroutine
// only (typically a host-owned ticker loop, see Manager.Run).
func (m *Manager) Tick() {
	m.tickCount++
	now := m.clock.Now()

	// Step 1: drain received queues.
	m.table.forEachOrdered(func(p *participant) {
		m.drainReceived(p)
	})

	// Step 2: walk command queues in table order, dispatching each record.
	m.table.forEachOrdered(func(p *participant) {
		for _, queued := range p.commandQueue.snapshot() {
			retired := m.dispatchOne(p.id, p, queued.handle, queued.bits)
			if retired != 0 {
				p.commandQueue.retire(queued.handle, retired)
			}
		}
		m.metrics.Store(metricQueueDepth, uint64(p.commandQueue.len()))
	})

	// Step 3: download-complete notifications.
	m.table.forEachOrdered(func(p *participant) {
		m.checkDownloadComplete(p, now)
	})
}

// drainReceived processes one participant's received-command queue in FIFO
// order until it is empty or a handler defers (spec.md §4.7 step 1).
func (m *Manager) drainReceived(p *participant) {
	for {
		rec, ok := p.received.pop()
		if !ok {
			return
		}
		if m.processReceived(p, rec) {
			continue
		}
		// Deferred: put it back at the head and stop for now so a later,
		// possibly dependent, record does not jump ahead of it.
		p.received.requeue(rec)
		return
	}
}

// processReceived handles one inbound record and reports whether draining
// should continue (true) or stop for now (false). Stopping happens when a
// required user callback defers, or when the record's network ID cannot yet
// be resolved to a registered handle (spec.md §7 "Unknown network ID on
// inbound").
func (m *Manager) processReceived(p *participant, rec receivedRecord) bool {
	handle, ok := m.registry.ResolveNetworkID(rec.record.NetworkID)
	if !ok {
		if rec.tries >= m.cfg.UnresolvedRetryTicks {
			m.logger.Printf("replica: dropping unresolved record tag=%s netID=%d participant=%s after %d ticks",
				rec.record.Tag, rec.record.NetworkID, p.id, rec.tries)
			m.metrics.Add(metricUnresolvedDropped, 1)
			return true // drop it, but draining may continue with the next record
		}
		return false
	}

	object, ok := m.registry.Lookup(handle)
	if !ok {
		return true
	}

	mask := m.registry.InterfaceMask(handle)
	reader := bytes.NewReader(rec.record.Payload)
	switch rec.record.Tag {
	case TagConstruct:
		if !mask.Has(InterfaceReceiveConstruction) {
			return true
		}
		disposition, err := object.ReceiveConstruction(reader, m.clock.Now(), rec.record.NetworkID, p.id)
		if err != nil {
			m.logger.Printf("replica: receive-construction error handle=%d participant=%s: %v", handle, p.id, err)
		}
		switch disposition {
		case Defer:
			return false
		case Reject:
			return true
		default:
			return true
		}

	case TagDestruct:
		if !mask.Has(InterfaceReceiveDestruction) {
			return true
		}
		if _, err := object.ReceiveDestruction(reader, p.id); err != nil {
			m.logger.Printf("replica: receive-destruction error handle=%d participant=%s: %v", handle, p.id, err)
		}
		return true

	case TagScopeChange:
		if !mask.Has(InterfaceReceiveScope) {
			return true
		}
		if _, err := object.ReceiveScopeChange(reader, p.id); err != nil {
			m.logger.Printf("replica: receive-scope-change error handle=%d participant=%s: %v", handle, p.id, err)
		}
		return true

	case TagSerialize:
		if !mask.Has(InterfaceDeserialize) {
			return true
		}
		changed, err := object.Deserialize(reader, p.id)
		if err != nil {
			m.logger.Printf("replica: deserialize error handle=%d participant=%s: %v", handle, p.id, err)
			return true
		}
		if changed {
			m.registry.MarkStateChanged(handle, m.clock.Now())
		}
		return true

	case TagDownloadComplete:
		m.logger.Printf("replica: participant=%s reports download complete", p.id)
		return true

	default:
		m.logger.Printf("replica: dropping received record with unknown tag=%q participant=%s", rec.record.Tag, p.id)
		return true
	}
}

// checkDownloadComplete clears a participant's pending download-complete
// flag once its command queue has no construction bits left (the mirror is
// not consulted). When the manager auto-constructs to new participants it
// then emits the DOWNLOAD_COMPLETE wire record (spec.md §4.7 step 3,
// scenario S5); otherwise the flag is cleared and nothing is sent.
func (m *Manager) checkDownloadComplete(p *participant, now time.Time) {
	if !p.callDownloadCompletePending {
		return
	}
	if p.commandQueue.hasConstructionPending() {
		return
	}
	p.callDownloadCompletePending = false
	if !m.autoConstruct {
		return
	}
	ts := now.UnixNano()
	m.emit(WireRecord{Tag: TagDownloadComplete, Timestamp: &ts}, ReliableOrdered, p.id)
}
