package dam

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"gungo/internal/graph"
)

// Predicate lets callers reject inbound envelopes after dedup and the
// signature gate, before they are merged or forwarded, e.g. to
// rate-limit a noisy peer.
type Predicate func(*Envelope) bool

// SignatureGate is consulted for every soul in a put envelope before it
// is handed to the merge callback; it should reject hash/user souls that
// fail signature verification, per spec §7 ("reject unverifiable
// hash/user-soul writes pre-merge").
type SignatureGate func(soul string, node *graph.Node) error

const defaultDedupSize = 4096
const defaultPeerQueueCap = 256

// Option configures a Router.
type Option func(*Router)

func WithPredicate(p Predicate) Option {
	return func(r *Router) { r.predicate = p }
}

func WithSignatureGate(g SignatureGate) Option {
	return func(r *Router) { r.verify = g }
}

func WithOnPut(fn func(soul string, node *graph.Node)) Option {
	return func(r *Router) { r.onPut = fn }
}

func WithLogger(log *logrus.Entry) Option {
	return func(r *Router) { r.log = log }
}

func WithPeerQueueCap(n int) Option {
	return func(r *Router) { r.queueCap = n }
}

// Router dedups, gates, and fans out DAM envelopes across a set of
// connected peers.
type Router struct {
	mu       sync.RWMutex
	peers    map[string]*peerQueue
	dedup    *lru.Cache[string, struct{}]
	waiting  sync.Map // id -> chan *Envelope
	predicate Predicate
	verify    SignatureGate
	onPut     func(soul string, node *graph.Node)
	log       *logrus.Entry
	queueCap  int
}

// New constructs a Router.
func New(opts ...Option) *Router {
	dedup, _ := lru.New[string, struct{}](defaultDedupSize)
	r := &Router{
		peers:    make(map[string]*peerQueue),
		dedup:    dedup,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		queueCap: defaultPeerQueueCap,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddPeer registers p for fanout and starts its delivery goroutine.
func (r *Router) AddPeer(p Peer) {
	q := newPeerQueue(p, r.queueCap, r.log)
	r.mu.Lock()
	r.peers[p.ID()] = q
	r.mu.Unlock()
	go q.run()
}

// RemovePeer stops and discards peer id's queue.
func (r *Router) RemovePeer(id string) {
	r.mu.Lock()
	q, ok := r.peers[id]
	delete(r.peers, id)
	r.mu.Unlock()
	if ok {
		q.stop()
	}
}

// HandleInbound processes an envelope received from fromPeer: it is
// deduplicated, gated through the signature and predicate checks, merged
// via onPut (for puts) or routed to an outstanding waiter (for replies),
// and fanned out to other interested peers.
func (r *Router) HandleInbound(fromPeer string, env *Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	if _, seen := r.dedup.Get(env.ID); seen {
		return nil
	}
	r.dedup.Add(env.ID, struct{}{})

	if err := r.verifyPut(env); err != nil {
		return err
	}

	if r.predicate != nil && !r.predicate(env) {
		return nil
	}

	switch env.Kind() {
	case KindPut:
		r.acceptPut(env)
	case KindGet:
		// Nothing to merge. Gets are forwarded below; the router never
		// answers one itself and has no helper for building a reply.
	}

	if env.ReplyTo != "" {
		if ch, ok := r.waiting.Load(env.ReplyTo); ok {
			select {
			case ch.(chan *Envelope) <- env:
			default:
			}
		}
	}

	r.fanout(env, fromPeer)
	return nil
}

// verifyPut runs the signature gate over every soul of a put envelope;
// envelopes without a put pass unchanged.
func (r *Router) verifyPut(env *Envelope) error {
	if r.verify == nil {
		return nil
	}
	for soul, node := range env.Put {
		if err := r.verify(soul, node); err != nil {
			return fmt.Errorf("dam: reject put for %s: %w", soul, err)
		}
	}
	return nil
}

func (r *Router) acceptPut(env *Envelope) {
	if r.onPut != nil {
		for soul, node := range env.Put {
			r.onPut(soul, node)
		}
	}
}

// fanout forwards env to every peer except the one it arrived from (or
// every peer, for locally-originated envelopes where fromPeer is "").
func (r *Router) fanout(env *Envelope, fromPeer string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, q := range r.peers {
		if id == fromPeer {
			continue
		}
		if !wantsEnvelope(q.peer, env) {
			continue
		}
		q.enqueue(env)
	}
}

func wantsEnvelope(p Peer, env *Envelope) bool {
	interested, ok := p.(Interest)
	if !ok {
		return true
	}
	if env.Get != nil {
		return interested.WantsSoul(env.Get.Soul)
	}
	for soul := range env.Put {
		if interested.WantsSoul(soul) {
			return true
		}
	}
	return len(env.Put) == 0
}

// Broadcast originates a new locally-created envelope to every peer.
func (r *Router) Broadcast(env *Envelope) {
	r.dedup.Add(env.ID, struct{}{})
	r.fanout(env, "")
}

// RequestGet broadcasts a get for soul and waits up to timeout for a
// reply envelope carrying a put for that soul. Returns nil, false on
// timeout, matching once()'s "resolve empty rather than error" rule.
func (r *Router) RequestGet(id, soul string, timeout time.Duration) (*graph.Node, bool) {
	ch := make(chan *Envelope, 8)
	r.waiting.Store(id, ch)
	defer r.waiting.Delete(id)

	r.Broadcast(&Envelope{ID: id, Get: &GetRequest{Soul: soul}})

	deadline := time.After(timeout)
	for {
		select {
		case env := <-ch:
			if node, ok := env.Put[soul]; ok {
				return node, true
			}
		case <-deadline:
			return nil, false
		}
	}
}
