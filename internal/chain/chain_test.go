package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungo/internal/graph"
	"gungo/internal/gunerr"
)

func newTestStore() *graph.Store {
	return graph.New(graph.NewMemoryBackend())
}

func TestChain_PutThenOnce(t *testing.T) {
	s := newTestStore()
	c := Root(s, "room1")

	require.NoError(t, c.Put(map[string]any{"topic": "hello"}))

	v, ok, err := c.Get("topic").Once(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestChain_ScalarPutOnChildField(t *testing.T) {
	s := newTestStore()
	c := Root(s, "room1")
	require.NoError(t, c.Put(map[string]any{}))

	require.NoError(t, c.Get("count").Put(42.0))

	v, ok, err := c.Get("count").Once(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestChain_NestedMapCreatesLinkedChild(t *testing.T) {
	s := newTestStore()
	c := Root(s, "room1")

	require.NoError(t, c.Put(map[string]any{
		"profile": map[string]any{"name": "alice"},
	}))

	name, ok, err := c.Get("profile").Get("name").Once(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", name)
}

func TestChain_BackReturnsToAncestor(t *testing.T) {
	s := newTestStore()
	c := Root(s, "room1")
	require.NoError(t, c.Put(map[string]any{"topic": "hello"}))

	back := c.Get("topic").Back(1)
	assert.Equal(t, "room1", back.soul)
}

func TestChain_BackPastRootClamps(t *testing.T) {
	s := newTestStore()
	c := Root(s, "room1")
	assert.Same(t, c, c.Back(5))
}

func TestChain_OnFiresForInitialAndSubsequentWrites(t *testing.T) {
	s := newTestStore()
	c := Root(s, "room1")
	require.NoError(t, c.Put(map[string]any{"topic": "hello"}))

	var seen []any
	h := c.Get("topic").On(func(v any, field string) {
		seen = append(seen, v)
	})
	defer c.Get("topic").Off(h)

	require.NoError(t, c.Get("topic").Put("updated"))

	require.Len(t, seen, 2)
	assert.Equal(t, "hello", seen[0])
	assert.Equal(t, "updated", seen[1])
}

func TestChain_SetAddsDistinctMembers(t *testing.T) {
	s := newTestStore()
	c := Root(s, "room1").Get("messages")

	m1, err := c.Set(map[string]any{"text": "hi"})
	require.NoError(t, err)
	m2, err := c.Set(map[string]any{"text": "there"})
	require.NoError(t, err)

	assert.NotEqual(t, m1.field, m2.field)

	members := c.Map()
	assert.Len(t, members, 2)
}

func TestChain_MapYieldsScalarFieldsNotOnlyEdges(t *testing.T) {
	s := newTestStore()
	c := Root(s, "room1")
	require.NoError(t, c.Put(map[string]any{"a": 1.0, "b": 2.0, "c": 3.0}))

	members := c.Map()
	require.Len(t, members, 3)

	got := map[string]any{}
	for _, m := range members {
		v, ok, err := m.Once(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		got[m.field] = v
	}
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0, "c": 3.0}, got)
}

func TestChain_PutToAlreadyExpiredSoulRejected(t *testing.T) {
	s := newTestStore()
	c := Root(s, "doc<?0")
	require.NoError(t, c.Put(map[string]any{"body": "first"}))

	err := c.Put(map[string]any{"body": "second"})
	assert.ErrorIs(t, err, gunerr.ErrExpired)
}

func TestChain_ScalarPutToExpiredSoulRejected(t *testing.T) {
	s := newTestStore()
	c := Root(s, "doc<?0")
	require.NoError(t, c.Put(map[string]any{"seed": true}))

	err := c.Get("field").Put("value")
	assert.ErrorIs(t, err, gunerr.ErrExpired)
}

func TestChain_OnceOnExpiredSoulReturnsEmpty(t *testing.T) {
	s := newTestStore()
	c := Root(s, "doc<?0")
	require.NoError(t, c.Put(map[string]any{"body": "hello"}))

	v, ok, err := c.Get("body").Once(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestChain_OnceOnNonExpiredSoulStillResolves(t *testing.T) {
	s := newTestStore()
	c := Root(s, "doc<?3600")
	require.NoError(t, c.Put(map[string]any{"body": "hello"}))

	v, ok, err := c.Get("body").Once(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestChain_OnceTimesOutEmptyOnMissingSoul(t *testing.T) {
	s := newTestStore()
	c := Root(s, "nowhere")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	v, ok, err := c.Once(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}
