package graph

import (
	"encoding/json"
	"fmt"
)

// Edge is the sole compound value a node field may hold: a reference to
// another soul. Edges may dangle — the referenced soul need not exist yet.
type Edge struct {
	Soul string
}

// MarshalJSON renders an edge as the wire form {"#": soul}.
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"#": e.Soul})
}

// Value is a field's primitive value: nil, bool, float64, string, or Edge.
// chain.Put flattens nested maps into separate nodes before they reach the
// store; other values, arrays included, are stored as given, and wire
// decoding keeps any non-edge object as a plain map.
type Value = any

// IsEdge reports whether v decodes an edge reference.
func IsEdge(v Value) (Edge, bool) {
	e, ok := v.(Edge)
	return e, ok
}

// typeTag ranks value types per §4.1: null < boolean < number < string <
// edge. The HAM tiebreak itself compares CanonicalValue strings, whose
// leading tag digit encodes the same order.
func typeTag(v Value) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, int, int64:
		return 2
	case string:
		return 3
	case Edge:
		return 4
	default:
		return 5
	}
}

// CanonicalValue renders v as the canonical string used for HAM's lexical
// tiebreak: a type tag byte followed by a minimal, deterministic encoding
// of the value itself. Hash and signature input use canonicalFieldValue
// instead.
func CanonicalValue(v Value) string {
	switch t := v.(type) {
	case nil:
		return "0:null"
	case bool:
		if t {
			return "1:true"
		}
		return "1:false"
	case float64:
		return "2:" + formatNumber(t)
	case int:
		return "2:" + formatNumber(float64(t))
	case int64:
		return "2:" + formatNumber(float64(t))
	case string:
		return "3:" + t
	case Edge:
		return "4:" + t.Soul
	default:
		return fmt.Sprintf("5:%v", t)
	}
}

// decodeWireValue turns a JSON-decoded field value (produced by
// encoding/json's default decoding into `any`) into a graph.Value,
// recognizing the {"#": soul} edge shape.
func decodeWireValue(raw any) Value {
	switch t := raw.(type) {
	case map[string]any:
		if s, ok := t["#"]; ok {
			if soul, ok := s.(string); ok && len(t) == 1 {
				return Edge{Soul: soul}
			}
		}
		return t
	default:
		return raw
	}
}
