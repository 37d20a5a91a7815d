// Package dam implements the Daisy-chain Aggregation Mesh: the message
// router that forwards get/put traffic between peers, deduplicates
// re-broadcast envelopes, tracks outstanding get requests so replies can
// be routed back to their asker, and applies backpressure per peer.
package dam

import (
	"encoding/json"
	"fmt"

	"gungo/internal/graph"
)

// Envelope is a DAM wire message. Exactly one of Put, Get, or Dam should
// be set, per spec §4.4.
type Envelope struct {
	ID      string                  `json:"#"`
	ReplyTo string                  `json:"@,omitempty"`
	Put     map[string]*graph.Node  `json:"put,omitempty"`
	Get     *GetRequest             `json:"get,omitempty"`
	Dam     string                  `json:"dam,omitempty"`
	Ok      bool                    `json:"ok,omitempty"`
}

// GetRequest asks for the node (and optionally a single field) at Soul.
type GetRequest struct {
	Soul  string `json:"#"`
	Field string `json:".,omitempty"`
}

// Kind reports which of put/get/dam this envelope carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindPut
	KindGet
	KindDam
)

func (e *Envelope) Kind() Kind {
	switch {
	case e.Put != nil:
		return KindPut
	case e.Get != nil:
		return KindGet
	case e.Dam != "":
		return KindDam
	default:
		return KindUnknown
	}
}

// Validate rejects envelopes that carry zero or more than one payload
// kind, which the spec disallows.
func (e *Envelope) Validate() error {
	count := 0
	if e.Put != nil {
		count++
	}
	if e.Get != nil {
		count++
	}
	if e.Dam != "" {
		count++
	}
	if count != 1 {
		return fmt.Errorf("dam: envelope must carry exactly one of put/get/dam, got %d", count)
	}
	return nil
}

// Encode renders the envelope to wire JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire envelope.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("dam: decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
