package transport

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Upgrader upgrades inbound HTTP requests to WebSocket peer links; used
// by cmd/gund's relay endpoint. Origin checks are left to the caller's
// reverse proxy / CORS layer, matching a relay that's meant to be
// reachable from arbitrary peers.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Accept upgrades r/w to a WebSocket connection and wraps it as a peer.
func Accept(w http.ResponseWriter, r *http.Request, peerID string, log *logrus.Entry) (*WSPeer, error) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWSPeer(peerID, conn, log), nil
}
