package graph

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(now float64) *Store {
	clock := now
	return New(NewMemoryBackend(), WithClock(func() float64 { return clock }))
}

func TestStore_WriteThenRead(t *testing.T) {
	s := newTestStore(1000)
	n := NewNode("mark")
	n.SetField("name", "Mark", 100)

	delta, err := s.Write(n)
	require.NoError(t, err)
	require.NotNil(t, delta)

	got, ok := s.Read("mark")
	require.True(t, ok)
	assert.Equal(t, "Mark", got.Fields["name"])
}

func TestStore_SecondWriteHistoricalIsNoOp(t *testing.T) {
	s := newTestStore(1000)
	n1 := NewNode("mark")
	n1.SetField("name", "Mark", 200)
	_, err := s.Write(n1)
	require.NoError(t, err)

	n2 := NewNode("mark")
	n2.SetField("name", "Stale", 100)
	delta, err := s.Write(n2)
	require.NoError(t, err)
	assert.Nil(t, delta)

	got, _ := s.Read("mark")
	assert.Equal(t, "Mark", got.Fields["name"])
}

func TestStore_SubscribeFiresOnAcceptedDelta(t *testing.T) {
	s := newTestStore(1000)
	var mu sync.Mutex
	var received []ChangeEvent

	s.Subscribe("mark", "", func(ev ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	})

	n := NewNode("mark")
	n.SetField("name", "Mark", 100)
	_, err := s.Write(n)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "Mark", received[0].Fields["name"])
}

func TestStore_UnsubscribeStopsNotifications(t *testing.T) {
	s := newTestStore(1000)
	count := 0
	h := s.Subscribe("mark", "", func(ChangeEvent) { count++ })
	s.Unsubscribe(h)

	n := NewNode("mark")
	n.SetField("name", "Mark", 100)
	_, err := s.Write(n)
	require.NoError(t, err)

	assert.Equal(t, 0, count)
}

func TestStore_LoadAsyncFallsBackToBackend(t *testing.T) {
	backend := NewMemoryBackend()
	seeded := NewNode("mark")
	seeded.SetField("name", "Mark", 100)
	require.NoError(t, backend.Put("mark", seeded))

	s := New(backend, WithClock(func() float64 { return 1000 }))
	n, ok := s.LoadAsync(context.Background(), "mark")
	require.True(t, ok)
	assert.Equal(t, "Mark", n.Fields["name"])
}

func TestStore_LoadAsyncFallsBackToPeers(t *testing.T) {
	peerNode := NewNode("mark")
	peerNode.SetField("name", "FromPeer", 100)

	s := New(NewMemoryBackend(),
		WithClock(func() float64 { return 1000 }),
		WithPeerLoader(func(ctx context.Context, soul string) (*Node, bool) {
			if soul == "mark" {
				return peerNode, true
			}
			return nil, false
		}),
	)
	n, ok := s.LoadAsync(context.Background(), "mark")
	require.True(t, ok)
	assert.Equal(t, "FromPeer", n.Fields["name"])
}

func TestStore_DeferredReplayOnClockAdvance(t *testing.T) {
	clock := float64(1000)
	s := New(NewMemoryBackend(), WithClock(func() float64 { return clock }))

	n := NewNode("mark")
	n.SetField("live", float64(1), 1500) // ahead of machineNow=1000

	delta, err := s.Write(n)
	require.NoError(t, err)
	assert.Nil(t, delta)

	_, ok := s.Read("mark")
	assert.False(t, ok, "deferred field must not be visible before its state elapses")

	// Advance the clock and let the queued timer fire. wake() replays
	// synchronously, so the field is visible as soon as it returns.
	clock = 1600
	s.deferQ.wake()

	got, ok := s.Read("mark")
	require.True(t, ok)
	assert.Equal(t, float64(1), got.Fields["live"])
}

func TestStore_WritersToDifferentSoulsDoNotBlock(t *testing.T) {
	s := newTestStore(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := NewNode("soul-" + strconv.Itoa(i))
			n.SetField("v", float64(i), 100)
			_, _ = s.Write(n)
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Keys(), 50)
}
