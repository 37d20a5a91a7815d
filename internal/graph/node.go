package graph

import "maps"

// Meta is a node's reserved "_" field: the addressing soul and the
// per-field state vector used by HAM (spec §3).
type Meta struct {
	Soul   string             `json:"#"`
	States map[string]float64 `json:"_states"` // marshaled as ">" on the wire, see wire.go
}

// Node is an unordered field->value map plus its metadata. It is the unit
// the store keeps one of per soul.
type Node struct {
	Meta   Meta
	Fields map[string]Value
}

// NewNode creates an empty node addressed by soul.
func NewNode(soul string) *Node {
	return &Node{
		Meta:   Meta{Soul: soul, States: map[string]float64{}},
		Fields: map[string]Value{},
	}
}

// Clone deep-copies a node so callers can mutate the copy without racing
// the store's authoritative copy.
func (n *Node) Clone() *Node {
	c := NewNode(n.Meta.Soul)
	maps.Copy(c.Meta.States, n.Meta.States)
	maps.Copy(c.Fields, n.Fields)
	return c
}

// State returns the current state for field, and whether it is present.
func (n *Node) State(field string) (float64, bool) {
	s, ok := n.Meta.States[field]
	return s, ok
}

// EarliestState returns the oldest state recorded across n's fields, used
// as a stand-in for the node's creation time: nodes carry no separate
// creation timestamp, so the first field ever written to a soul is the
// closest thing to one.
func (n *Node) EarliestState() (float64, bool) {
	var earliest float64
	found := false
	for _, s := range n.Meta.States {
		if !found || s < earliest {
			earliest = s
			found = true
		}
	}
	return earliest, found
}

// SetField writes field=value at state s, recording both the value and
// its state. Callers are expected to have already run the value through
// HAM; SetField itself performs no conflict resolution.
func (n *Node) SetField(field string, value Value, state float64) {
	n.Fields[field] = value
	n.Meta.States[field] = state
}
