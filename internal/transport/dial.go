package transport

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"gungo/internal/dam"
)

// DialWithReconnect connects to url and keeps reconnecting with
// exponential backoff (capped at maxBackoff) whenever the connection
// drops, until stop is closed. Every successful connection's peer is
// handed to onConnect so the caller can register it with a router, and
// onEnvelope receives decoded inbound messages.
func DialWithReconnect(
	url, peerID string,
	onConnect func(*WSPeer),
	onDisconnect func(peerID string),
	onEnvelope func(peerID string, env *dam.Envelope),
	stop <-chan struct{},
	log *logrus.Entry,
) {
	backoff := initialBackoff
	for {
		select {
		case <-stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			if log != nil {
				log.WithError(err).WithField("url", url).Warn("transport: dial failed, backing off")
			}
			select {
			case <-time.After(backoff):
			case <-stop:
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = initialBackoff
		peer := NewWSPeer(peerID, conn, log)
		onConnect(peer)

		err = peer.Run(onEnvelope)
		if onDisconnect != nil {
			onDisconnect(peerID)
		}
		if log != nil {
			log.WithError(err).WithField("url", url).Warn("transport: peer link closed, will retry")
		}
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
