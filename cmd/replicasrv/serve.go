package main

import (
	nethttp "net/http"

	"github.com/gorilla/websocket"

	replica "replicamgr"
	"replicamgr/internal/wsnet"
)

// newWebSocketServer binds an HTTP upgrader to listener so real peers can
// connect; the listener is then the manager's transport in place of the
// REPL's mock transport. Grounded on the teacher's
// ws.Handler (server/internal/net/ws/handler.go): upgrade, hand the
// connection to the transport's own read loop, identify the peer from a
// query parameter.
func newWebSocketServer(addr string, manager *replica.Manager, listener *wsnet.Listener) *nethttp.Server {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *nethttp.Request) bool { return true },
	}

	mux := nethttp.NewServeMux()
	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		participant := r.URL.Query().Get("participant")
		if participant == "" {
			participant = string(manager.Participants().AddGenerated())
		} else {
			manager.AddParticipant(replica.ParticipantID(participant))
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		listener.Serve(replica.ParticipantID(participant), conn)
	})

	return &nethttp.Server{Addr: addr, Handler: mux}
}
