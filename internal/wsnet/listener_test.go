package wsnet

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	replica "replicamgr"
)

type fakeManager struct {
	mu          sync.Mutex
	connected   []replica.ParticipantID
	disconnects []replica.ParticipantID
	packets     []replica.WireRecord
}

func (m *fakeManager) HandleConnect(e replica.ConnectionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = append(m.connected, e.Participant)
}

func (m *fakeManager) HandleDisconnect(e replica.ConnectionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects = append(m.disconnects, e.Participant)
}

func (m *fakeManager) HandlePacket(id replica.ParticipantID, record replica.WireRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, record)
}

func (m *fakeManager) packetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packets)
}

func newTestServer(t *testing.T, listener *Listener, participant replica.ParticipantID) (*httptest.Server, *websocket.Conn) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		listener.Serve(participant, conn)
	}))

	url := "ws" + srv.URL[len("http"):]
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial failed: %v", err)
	}
	return srv, client
}

func TestListenerServeDispatchesConnectAndDisconnect(t *testing.T) {
	manager := &fakeManager{}
	listener := NewListener(manager, nil, nil, nil)
	srv, client := newTestServer(t, listener, "p1")
	defer srv.Close()

	client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(manager.disconnects) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		manager.mu.Lock()
		manager.mu.Unlock()
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()
	if len(manager.connected) != 1 || manager.connected[0] != "p1" {
		t.Fatalf("expected HandleConnect for p1, got %v", manager.connected)
	}
	if len(manager.disconnects) != 1 || manager.disconnects[0] != "p1" {
		t.Fatalf("expected HandleDisconnect for p1, got %v", manager.disconnects)
	}
}

func TestListenerServeDecodesInboundFrames(t *testing.T) {
	manager := &fakeManager{}
	listener := NewListener(manager, nil, PlainCodec{}, nil)
	srv, client := newTestServer(t, listener, "p1")
	defer srv.Close()
	defer client.Close()

	record := replica.WireRecord{Tag: replica.TagSerialize, NetworkID: 7}
	body, err := replica.EncodeWireRecord(record)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	frame, err := PlainCodec{}.Encode(Frame{Channel: 0, Reliability: replica.ReliableOrdered, Body: body})
	if err != nil {
		t.Fatalf("unexpected frame encode error: %v", err)
	}
	if err := client.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for manager.packetCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if manager.packetCount() != 1 {
		t.Fatalf("expected exactly one dispatched packet, got %d", manager.packetCount())
	}
}

func TestListenerSendReturnsErrorForUnknownParticipant(t *testing.T) {
	listener := NewListener(&fakeManager{}, nil, nil, nil)
	err := listener.Send(0, replica.ReliableOrdered, []byte("x"), "ghost")
	if err == nil {
		t.Fatalf("expected an error sending to a participant with no live connection")
	}
}

func TestListenerSendDeliversFrameToClient(t *testing.T) {
	manager := &fakeManager{}
	listener := NewListener(manager, nil, PlainCodec{}, nil)
	srv, client := newTestServer(t, listener, "p1")
	defer srv.Close()
	defer client.Close()

	// give Serve a moment to register the connection before sending.
	deadline := time.Now().Add(2 * time.Second)
	for len(manager.connected) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	record := replica.WireRecord{Tag: replica.TagConstruct, NetworkID: 9}
	body, err := replica.EncodeWireRecord(record)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if err := listener.Send(0, replica.ReliableOrdered, body, "p1"); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	frame, err := (PlainCodec{}).Decode(data)
	if err != nil {
		t.Fatalf("unexpected frame decode error: %v", err)
	}
	decoded, err := replica.DecodeWireRecord(frame.Body)
	if err != nil {
		t.Fatalf("unexpected record decode error: %v", err)
	}
	if decoded.Tag != replica.TagConstruct || decoded.NetworkID != 9 {
		t.Fatalf("expected the delivered record to match what was sent, got %+v", decoded)
	}
}
