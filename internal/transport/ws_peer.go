// Package transport implements peer links for the DAM router: a
// WebSocket link that is always available, and an optional WebRTC data
// channel link for NAT-traversing direct peer connections.
package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"gungo/internal/dam"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = pongWait * 9 / 10
	maxBackoff     = 30 * time.Second
	initialBackoff = 250 * time.Millisecond
)

// WSPeer is a DAM peer backed by a single WebSocket connection. It
// satisfies dam.Peer and runs its own read/write/ping goroutines.
type WSPeer struct {
	id  string
	log *logrus.Entry

	mu     sync.Mutex
	conn   *websocket.Conn
	writeQ chan *dam.Envelope
	done   chan struct{}
}

// NewWSPeer wraps an already-established connection (e.g. from a server
// accept handler, or a successful dial).
func NewWSPeer(id string, conn *websocket.Conn, log *logrus.Entry) *WSPeer {
	p := &WSPeer{
		id:     id,
		log:    log,
		conn:   conn,
		writeQ: make(chan *dam.Envelope, 64),
		done:   make(chan struct{}),
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return p
}

func (p *WSPeer) ID() string { return p.id }

// Send queues env for delivery; it never blocks the caller on a slow
// socket beyond the channel's own buffer (DAM's per-peer queue already
// applies backpressure upstream of this).
func (p *WSPeer) Send(env *dam.Envelope) error {
	select {
	case p.writeQ <- env:
		return nil
	case <-p.done:
		return fmt.Errorf("transport: peer %s closed", p.id)
	}
}

// Run drives the peer's write loop, ping loop, and read loop until the
// connection fails or ctx-equivalent Close is called. onEnvelope is
// invoked for every decoded inbound envelope.
func (p *WSPeer) Run(onEnvelope func(peerID string, env *dam.Envelope)) error {
	errCh := make(chan error, 2)

	go p.writeLoop(errCh)
	go p.readLoop(onEnvelope, errCh)

	err := <-errCh
	p.Close()
	return err
}

func (p *WSPeer) writeLoop(errCh chan<- error) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-p.writeQ:
			if !ok {
				return
			}
			data, err := env.Encode()
			if err != nil {
				if p.log != nil {
					p.log.WithError(err).Warn("transport: encode envelope")
				}
				continue
			}
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				errCh <- fmt.Errorf("transport: write: %w", err)
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				errCh <- fmt.Errorf("transport: ping: %w", err)
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *WSPeer) readLoop(onEnvelope func(peerID string, env *dam.Envelope), errCh chan<- error) {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("transport: read: %w", err)
			return
		}
		env, err := dam.Decode(data)
		if err != nil {
			if p.log != nil {
				p.log.WithError(err).Warn("transport: dropping malformed envelope")
			}
			continue
		}
		onEnvelope(p.id, env)
	}
}

// Close shuts down the peer's goroutines and underlying socket.
func (p *WSPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return nil
	default:
		close(p.done)
	}
	return p.conn.Close()
}
