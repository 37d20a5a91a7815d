package dam

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungo/internal/graph"
)

type recordingPeer struct {
	id  string
	mu  sync.Mutex
	got []*Envelope
}

func newRecordingPeer(id string) *recordingPeer {
	return &recordingPeer{id: id}
}

func (p *recordingPeer) ID() string { return p.id }

func (p *recordingPeer) Send(env *Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, env)
	return nil
}

func (p *recordingPeer) received() []*Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Envelope, len(p.got))
	copy(out, p.got)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRouter_DedupDropsRepeatedEnvelope(t *testing.T) {
	r := New()
	a := newRecordingPeer("a")
	r.AddPeer(a)

	env := &Envelope{ID: "msg-1", Put: map[string]*graph.Node{"s1": graph.NewNode("s1")}}
	require.NoError(t, r.HandleInbound("origin", env))
	require.NoError(t, r.HandleInbound("origin", env))

	waitFor(t, func() bool { return len(a.received()) >= 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, a.received(), 1)
}

func TestRouter_FanoutExcludesSender(t *testing.T) {
	r := New()
	a := newRecordingPeer("a")
	b := newRecordingPeer("b")
	r.AddPeer(a)
	r.AddPeer(b)

	env := &Envelope{ID: "msg-2", Put: map[string]*graph.Node{"s1": graph.NewNode("s1")}}
	require.NoError(t, r.HandleInbound("a", env))

	waitFor(t, func() bool { return len(b.received()) == 1 })
	assert.Empty(t, a.received())
}

func TestRouter_SignatureGateRejectsPut(t *testing.T) {
	r := New(WithSignatureGate(func(soul string, node *graph.Node) error {
		return assert.AnError
	}))

	env := &Envelope{ID: "msg-3", Put: map[string]*graph.Node{"#abc": graph.NewNode("#abc")}}
	err := r.HandleInbound("origin", env)
	assert.Error(t, err)
}

func TestRouter_PredicateBlocksEnvelope(t *testing.T) {
	r := New(WithPredicate(func(env *Envelope) bool { return false }))
	a := newRecordingPeer("a")
	r.AddPeer(a)

	env := &Envelope{ID: "msg-4", Put: map[string]*graph.Node{"s1": graph.NewNode("s1")}}
	require.NoError(t, r.HandleInbound("origin", env))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, a.received())
}

func TestRouter_OnPutCalledForEachSoul(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	r := New(WithOnPut(func(soul string, node *graph.Node) {
		mu.Lock()
		defer mu.Unlock()
		seen[soul] = true
	}))

	env := &Envelope{ID: "msg-5", Put: map[string]*graph.Node{
		"s1": graph.NewNode("s1"),
		"s2": graph.NewNode("s2"),
	}}
	require.NoError(t, r.HandleInbound("origin", env))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen["s1"])
	assert.True(t, seen["s2"])
}

func TestPeerQueue_DropsOldestNonReplyWhenSaturated(t *testing.T) {
	a := newRecordingPeer("a")
	q := newPeerQueue(a, 2, nil)

	// Fill, then block the drain goroutine from starting by not calling run();
	// exercise enqueue directly.
	q.enqueue(&Envelope{ID: "1", Put: map[string]*graph.Node{"s": graph.NewNode("s")}})
	q.enqueue(&Envelope{ID: "2", Put: map[string]*graph.Node{"s": graph.NewNode("s")}})
	q.enqueue(&Envelope{ID: "3", ReplyTo: "req-1", Put: map[string]*graph.Node{"s": graph.NewNode("s")}})

	q.mu.Lock()
	defer q.mu.Unlock()
	require.Len(t, q.buf, 2)
	assert.Equal(t, "2", q.buf[0].ID)
	assert.Equal(t, "3", q.buf[1].ID)
}

func TestRouter_RequestGetTimesOutEmpty(t *testing.T) {
	r := New()
	node, ok := r.RequestGet("req-1", "missing-soul", 30*time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, node)
}

func TestRouter_RequestGetResolvesFromReply(t *testing.T) {
	r := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		reply := &Envelope{ID: "reply-1", ReplyTo: "req-2", Put: map[string]*graph.Node{"s1": graph.NewNode("s1")}}
		_ = r.HandleInbound("peer-x", reply)
	}()

	node, ok := r.RequestGet("req-2", "s1", time.Second)
	require.True(t, ok)
	assert.Equal(t, "s1", node.Meta.Soul)
}
