package replica

import (
	"io"
	"sync"
	"time"
)

// mockReplica is a scriptable Replica used across the core test suite. Its
// default behavior is to write a short non-empty payload on every send/serialize call
// (so "declined" has to be requested explicitly) and accept every receive.
type mockReplica struct {
	mu  sync.Mutex
	net NetworkID

	declineSendConstruction bool
	declineSendScope        bool
	declineSerialize         bool
	declineSendDestruction  bool

	receiveConstructionDisposition ReceiveDisposition
	receiveDestructionAck          bool
	receiveScopeChangeNewScope     bool
	deserializeStateChanged        bool

	sendConstructionCalls int
	sendDestructionCalls  int
	sendScopeCalls        int
	serializeCalls        int
	receiveConstructCalls int
	receiveDestructCalls  int
	receiveScopeCalls     int
	deserializeCalls      int

	scopeCallArgs []bool
}

func newMockReplica(netID NetworkID) *mockReplica {
	return &mockReplica{net: netID, receiveConstructionDisposition: Accept, receiveDestructionAck: true}
}

func (r *mockReplica) SetNetworkID(id NetworkID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.net = id
}

func (r *mockReplica) NetworkID() NetworkID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.net
}

func (r *mockReplica) SendConstruction(out io.Writer, now time.Time, target ParticipantID) (bool, error) {
	r.mu.Lock()
	r.sendConstructionCalls++
	decline := r.declineSendConstruction
	r.mu.Unlock()
	if decline {
		return false, nil
	}
	_, err := out.Write([]byte("construct"))
	return true, err
}

func (r *mockReplica) ReceiveConstruction(in io.Reader, now time.Time, netID NetworkID, sender ParticipantID) (ReceiveDisposition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiveConstructCalls++
	return r.receiveConstructionDisposition, nil
}

func (r *mockReplica) SendDestruction(out io.Writer, target ParticipantID) (bool, error) {
	r.mu.Lock()
	r.sendDestructionCalls++
	decline := r.declineSendDestruction
	r.mu.Unlock()
	if decline {
		return false, nil
	}
	_, err := out.Write([]byte("destruct"))
	return true, err
}

func (r *mockReplica) ReceiveDestruction(in io.Reader, sender ParticipantID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiveDestructCalls++
	return r.receiveDestructionAck, nil
}

func (r *mockReplica) SendScopeChange(out io.Writer, inScope bool, target ParticipantID) (bool, error) {
	r.mu.Lock()
	r.sendScopeCalls++
	r.scopeCallArgs = append(r.scopeCallArgs, inScope)
	decline := r.declineSendScope
	r.mu.Unlock()
	if decline {
		return false, nil
	}
	_, err := out.Write([]byte("scope"))
	return true, err
}

func (r *mockReplica) ReceiveScopeChange(in io.Reader, sender ParticipantID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiveScopeCalls++
	return r.receiveScopeChangeNewScope, nil
}

func (r *mockReplica) Serialize(out io.Writer, target ParticipantID) (bool, error) {
	r.mu.Lock()
	r.serializeCalls++
	decline := r.declineSerialize
	r.mu.Unlock()
	if decline {
		return false, nil
	}
	_, err := out.Write([]byte("state"))
	return true, err
}

func (r *mockReplica) Deserialize(in io.Reader, sender ParticipantID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deserializeCalls++
	return r.deserializeStateChanged, nil
}

// mockTransport records every Send call instead of touching real sockets.
type mockTransport struct {
	mu    sync.Mutex
	sends []mockSend
	fail  bool
}

type mockSend struct {
	channel     byte
	reliability Reliability
	payload     []byte
	target      ParticipantID
}

func (t *mockTransport) Send(channel byte, reliability Reliability, payload []byte, target ParticipantID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return errMockSendFailed
	}
	t.sends = append(t.sends, mockSend{channel: channel, reliability: reliability, payload: payload, target: target})
	return nil
}

func (t *mockTransport) sendsWithTag(tag WireTag) []mockSend {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []mockSend
	for _, s := range t.sends {
		rec, err := DecodeWireRecord(s.payload)
		if err == nil && rec.Tag == tag {
			out = append(out, s)
		}
	}
	return out
}

func (t *mockTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

type mockSendError struct{ msg string }

func (e *mockSendError) Error() string { return e.msg }

var errMockSendFailed = &mockSendError{msg: "mock transport send failed"}
