// Package ham implements the Hypothetical Amnesia Machine conflict
// resolution rule described in spec §4.1: per-(soul, field) merge of a
// (state, value) pair against the locally held one.
package ham

import "gungo/internal/graph"

// Decision is the outcome of merging one field.
type Decision int

const (
	// Defer means the incoming state is ahead of machineNow; the caller
	// should buffer the update and retry once machineNow catches up.
	Defer Decision = iota
	// Historical means the incoming state is older than what's held
	// locally; discard it.
	Historical
	// Update means the incoming state is strictly newer; accept vIn.
	Update
	// NoOp means both sides already agree; nothing changes.
	NoOp
	// Tiebreak means both states are equal but the values differ; the
	// lexically greater canonical encoding wins.
	Tiebreak
)

// FieldMerge is the pure per-field merge function from spec §4.1, rules
// 1-5, evaluated in order. sMine/vMine may be zero-valued with
// mineExists=false when the field has never been written locally.
func FieldMerge(mineExists bool, sMine float64, vMine graph.Value, sIn float64, vIn graph.Value, machineNow float64) (Decision, graph.Value, float64) {
	if sIn > machineNow {
		return Defer, vIn, sIn
	}
	if !mineExists {
		return Update, vIn, sIn
	}
	if sIn < sMine {
		return Historical, vMine, sMine
	}
	if sIn > sMine {
		return Update, vIn, sIn
	}
	// sIn == sMine
	if graph.CanonicalValue(vIn) == graph.CanonicalValue(vMine) {
		return NoOp, vMine, sMine
	}
	if graph.CanonicalValue(vIn) > graph.CanonicalValue(vMine) {
		return Tiebreak, vIn, sIn
	}
	return Tiebreak, vMine, sMine
}

// Delta is the subset of fields a merge actually changed locally; it is
// what the store passes to its subscribers. The store does not hand it to
// the DAM router, so a local write is not sent to peers as a put.
type Delta struct {
	Soul   string
	Fields map[string]graph.Value
	States map[string]float64
}

func (d *Delta) empty() bool { return len(d.Fields) == 0 }

// Deferred is a field update whose state is ahead of machineNow and must
// be retried later.
type Deferred struct {
	Soul    string
	Field   string
	State   float64
	Value   graph.Value
	ReadyAt float64
}

// MergeNode merges every field of incoming into existing (existing may be
// nil for a soul seen for the first time), returning the updated node, the
// delta that actually changed, and any fields that must be deferred.
func MergeNode(existing *graph.Node, incoming *graph.Node, machineNow float64) (merged *graph.Node, delta *Delta, deferred []Deferred) {
	soul := incoming.Meta.Soul
	if existing == nil {
		existing = graph.NewNode(soul)
	}
	merged = existing.Clone()
	delta = &Delta{Soul: soul, Fields: map[string]graph.Value{}, States: map[string]float64{}}

	for field, vIn := range incoming.Fields {
		sIn, ok := incoming.Meta.States[field]
		if !ok {
			continue // malformed incoming node: no state for field, drop it
		}
		sMine, mineExists := merged.State(field)
		vMine := merged.Fields[field]

		decision, acceptedValue, acceptedState := FieldMerge(mineExists, sMine, vMine, sIn, vIn, machineNow)
		switch decision {
		case Defer:
			deferred = append(deferred, Deferred{Soul: soul, Field: field, State: sIn, Value: vIn, ReadyAt: sIn})
		case Update, Tiebreak:
			if !mineExists || acceptedState != sMine || graph.CanonicalValue(acceptedValue) != graph.CanonicalValue(vMine) {
				merged.SetField(field, acceptedValue, acceptedState)
				delta.Fields[field] = acceptedValue
				delta.States[field] = acceptedState
			}
		case Historical, NoOp:
			// nothing changes
		}
	}

	if delta.empty() {
		delta = nil
	}
	return merged, delta, deferred
}
