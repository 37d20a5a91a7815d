package graph

import "encoding/json"

// wireMeta mirrors Meta's on-the-wire shape: {"#": soul, ">": {field: state}}.
type wireMeta struct {
	Soul   string             `json:"#"`
	States map[string]float64 `json:">"`
}

// MarshalJSON renders a node as {"_": {...}, field: value, ...}, the shape
// carried inside a `put` message's soul->node map (spec §6).
func (n *Node) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(n.Fields)+1)
	for k, v := range n.Fields {
		if e, ok := IsEdge(v); ok {
			raw[k] = e
		} else {
			raw[k] = v
		}
	}
	raw["_"] = wireMeta{Soul: n.Meta.Soul, States: n.Meta.States}
	return json.Marshal(raw)
}

// UnmarshalJSON parses a node from its wire shape, decoding {"#": soul}
// objects back into Edge values.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	n.Fields = map[string]Value{}
	n.Meta = Meta{States: map[string]float64{}}

	for k, v := range raw {
		if k == "_" {
			var m wireMeta
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			n.Meta.Soul = m.Soul
			if m.States != nil {
				n.Meta.States = m.States
			}
			continue
		}
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return err
		}
		n.Fields[k] = decodeWireValue(decoded)
	}
	return nil
}
