package transport

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"gungo/internal/dam"
)

// WebRTCPeer is an optional, NAT-traversing DAM peer link over a WebRTC
// data channel. Nothing in gungo constructs one: config's WebRTCEnabled
// option is not consulted by gun.New. Signaling
// (SDP/ICE exchange) is left to the caller; this type only wraps an
// already-negotiated data channel.
type WebRTCPeer struct {
	id  string
	log *logrus.Entry
	pc  *webrtc.PeerConnection
	dc  *webrtc.DataChannel
}

// NewWebRTCLink creates a peer connection with a single ordered,
// reliable data channel named "gun", suitable for DAM traffic.
func NewWebRTCLink(id string, log *logrus.Entry) (*WebRTCPeer, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("transport: new peer connection: %w", err)
	}

	ordered := true
	dc, err := pc.CreateDataChannel("gun", &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: create data channel: %w", err)
	}

	return &WebRTCPeer{id: id, log: log, pc: pc, dc: dc}, nil
}

func (p *WebRTCPeer) ID() string { return p.id }

// Send marshals env and writes it to the data channel.
func (p *WebRTCPeer) Send(env *dam.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("transport: encode envelope: %w", err)
	}
	return p.dc.Send(data)
}

// OnEnvelope wires onEnvelope to fire for every message received on the
// data channel once it opens.
func (p *WebRTCPeer) OnEnvelope(onEnvelope func(peerID string, env *dam.Envelope)) {
	p.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		env, err := dam.Decode(msg.Data)
		if err != nil {
			if p.log != nil {
				p.log.WithError(err).Warn("transport: dropping malformed webrtc envelope")
			}
			return
		}
		onEnvelope(p.id, env)
	})
}

// PeerConnection exposes the underlying connection for signaling code
// (offer/answer/ICE candidate exchange happens outside this package).
func (p *WebRTCPeer) PeerConnection() *webrtc.PeerConnection { return p.pc }

func (p *WebRTCPeer) Close() error {
	return p.pc.Close()
}
