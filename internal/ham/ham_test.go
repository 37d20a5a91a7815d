package ham

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungo/internal/graph"
)

func TestFieldMerge_Defer(t *testing.T) {
	decision, _, _ := FieldMerge(true, 100, "old", 500, "new", 200)
	assert.Equal(t, Defer, decision)
}

func TestFieldMerge_Historical(t *testing.T) {
	decision, v, s := FieldMerge(true, 100, "old", 50, "new", 200)
	assert.Equal(t, Historical, decision)
	assert.Equal(t, "old", v)
	assert.Equal(t, float64(100), s)
}

func TestFieldMerge_Update(t *testing.T) {
	decision, v, s := FieldMerge(true, 100, "old", 150, "new", 200)
	assert.Equal(t, Update, decision)
	assert.Equal(t, "new", v)
	assert.Equal(t, float64(150), s)
}

func TestFieldMerge_NoOpConverged(t *testing.T) {
	decision, v, _ := FieldMerge(true, 100, "same", 100, "same", 200)
	assert.Equal(t, NoOp, decision)
	assert.Equal(t, "same", v)
}

func TestFieldMerge_LexicalTiebreak(t *testing.T) {
	// "2" > "1" lexically
	decision, v, _ := FieldMerge(true, 100, "1", 100, "2", 200)
	assert.Equal(t, Tiebreak, decision)
	assert.Equal(t, "2", v)

	// symmetric: running it the other way round must pick the same winner
	decision2, v2, _ := FieldMerge(true, 100, "2", 100, "1", 200)
	assert.Equal(t, Tiebreak, decision2)
	assert.Equal(t, "2", v2)
}

func TestFieldMerge_FirstWrite(t *testing.T) {
	decision, v, s := FieldMerge(false, 0, nil, 10, "hello", 200)
	assert.Equal(t, Update, decision)
	assert.Equal(t, "hello", v)
	assert.Equal(t, float64(10), s)
}

func TestMergeNode_ConvergesRegardlessOfOrder(t *testing.T) {
	// Two peers write concurrently with equal state; whichever value sorts
	// lexically greater must win regardless of merge order (spec scenario 2).
	n1 := graph.NewNode("a")
	n1.SetField("x", float64(1), 100)

	n2 := graph.NewNode("a")
	n2.SetField("x", float64(2), 100)

	mergedA, _, _ := MergeNode(nil, n1, 1000)
	mergedA, _, _ = MergeNode(mergedA, n2, 1000)

	mergedB, _, _ := MergeNode(nil, n2, 1000)
	mergedB, _, _ = MergeNode(mergedB, n1, 1000)

	require.Equal(t, mergedA.Fields["x"], mergedB.Fields["x"])
}

func TestMergeNode_DeferBeyondNow(t *testing.T) {
	incoming := graph.NewNode("a")
	incoming.SetField("x", "future", 5000)

	merged, delta, deferred := MergeNode(nil, incoming, 1000)
	assert.Nil(t, delta)
	require.Len(t, deferred, 1)
	assert.Equal(t, "x", deferred[0].Field)
	assert.Equal(t, float64(5000), deferred[0].ReadyAt)
	assert.NotContains(t, merged.Fields, "x")
}

func TestMergeNode_HistoricalDiscarded(t *testing.T) {
	existing := graph.NewNode("a")
	existing.SetField("x", "keep", 200)

	incoming := graph.NewNode("a")
	incoming.SetField("x", "stale", 100)

	merged, delta, deferred := MergeNode(existing, incoming, 1000)
	assert.Nil(t, delta)
	assert.Empty(t, deferred)
	assert.Equal(t, "keep", merged.Fields["x"])
}
