// Package graph implements the authoritative soul->node map, its HAM-based
// write path, change notifications, and the pluggable persistence
// collaborator, per spec §3 and §4.2.
//
// This store is the only authoritative mutable state in the engine (spec
// §5): a single merge on a given soul is atomic with respect to observers,
// subscriber notifications fire only after the delta is visible to reads,
// readers proceed concurrently with each other, and writers to different
// souls proceed concurrently while writers to the same soul serialize.
// Grounded on the teacher's store/store.go — the WAL-first write and
// RWMutex-guarded map are kept in spirit, generalized from a flat K/V
// record to a HAM-merged graph node and from one global lock to a
// per-soul stripe so unrelated souls never contend.
package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gungo/internal/ham"
)

// Store owns the in-memory soul->node map and writes through to a
// Collaborator on every merged delta.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*Node

	soulLocks sync.Map // soul -> *sync.Mutex, serializes writers per soul

	backend Collaborator
	subs    *subscriptionRegistry
	deferQ  *deferredQueue

	nowFn func() float64
	log   *logrus.Entry

	// loadFromPeers, when set, is consulted by LoadAsync after a local and
	// backend miss — wired to the DAM's outbound `get` by pkg/gun.
	loadFromPeers func(ctx context.Context, soul string) (*Node, bool)
}

// Option configures a Store at construction.
type Option func(*Store)

// WithClock overrides the wall-clock function used for HAM's machineNow
// and for deferred-queue scheduling; tests use this to control time.
func WithClock(fn func() float64) Option {
	return func(s *Store) { s.nowFn = fn }
}

// WithPeerLoader wires a fallback loader consulted by LoadAsync when both
// the in-memory cache and the backend miss.
func WithPeerLoader(fn func(ctx context.Context, soul string) (*Node, bool)) Option {
	return func(s *Store) { s.loadFromPeers = fn }
}

// WithLogger overrides the default discard logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

// New creates a Store backed by backend, applying any options.
func New(backend Collaborator, opts ...Option) *Store {
	s := &Store{
		nodes:   make(map[string]*Node),
		backend: backend,
		subs:    newSubscriptionRegistry(),
		nowFn:   func() float64 { return float64(time.Now().UnixMilli()) },
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(s)
	}
	s.deferQ = newDeferredQueue(s.nowFn, s.replayDeferred)
	return s
}

func (s *Store) lockFor(soul string) *sync.Mutex {
	v, _ := s.soulLocks.LoadOrStore(soul, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Read synchronously returns the node at soul if it is already cached in
// memory; it never touches the backend or the network.
func (s *Store) Read(soul string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[soul]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Write HAM-merges incoming into the node at soul, applies the resulting
// delta, persists it, and notifies subscribers. It returns the delta that
// was actually applied (nil if nothing changed).
func (s *Store) Write(incoming *Node) (*ham.Delta, error) {
	soul := incoming.Meta.Soul
	lock := s.lockFor(soul)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	existing := s.nodes[soul]
	s.mu.RUnlock()

	merged, delta, deferred := ham.MergeNode(existing, incoming, s.nowFn())

	if delta != nil {
		s.mu.Lock()
		s.nodes[soul] = merged
		s.mu.Unlock()

		if s.backend != nil {
			if err := s.backend.Put(soul, merged); err != nil {
				return nil, fmt.Errorf("store: persist %s: %w", soul, err)
			}
		}
		s.subs.Notify(delta)
	}

	for _, d := range deferred {
		s.log.WithFields(logrus.Fields{"soul": d.Soul, "field": d.Field, "ready_at": d.ReadyAt}).
			Debug("deferring update ahead of local clock")
		s.deferQ.enqueue(d)
	}

	return delta, nil
}

// replayDeferred re-submits a deferred field update as a single-field
// node write, going back through the exact same merge path a live
// arrival would take.
func (s *Store) replayDeferred(d ham.Deferred) {
	n := NewNode(d.Soul)
	n.SetField(d.Field, d.Value, d.State)
	if _, err := s.Write(n); err != nil {
		s.log.WithError(err).WithField("soul", d.Soul).Warn("replay of deferred update failed")
	}
}

// Subscribe installs cb to fire on every HAM-accepted change to soul,
// optionally narrowed to one field.
func (s *Store) Subscribe(soul string, field string, cb func(ChangeEvent)) Handle {
	return s.subs.Subscribe(soul, field, cb)
}

// Unsubscribe removes a subscription installed by Subscribe.
func (s *Store) Unsubscribe(h Handle) { s.subs.Unsubscribe(h) }

// LoadAsync resolves soul from memory, then the backend, then (if wired)
// the peer mesh, in that order. A backend hit is cached in memory; a node
// returned by the peer loader is returned as is, without caching here.
func (s *Store) LoadAsync(ctx context.Context, soul string) (*Node, bool) {
	if n, ok := s.Read(soul); ok {
		return n, true
	}

	if s.backend != nil {
		if n, ok, err := s.backend.Get(soul); err == nil && ok {
			s.mu.Lock()
			s.nodes[soul] = n
			s.mu.Unlock()
			return n.Clone(), true
		} else if err != nil {
			s.log.WithError(err).WithField("soul", soul).Warn("backend load failed")
		}
	}

	if s.loadFromPeers != nil {
		if n, ok := s.loadFromPeers(ctx, soul); ok {
			return n, true
		}
	}

	return nil, false
}

// Keys returns every soul currently cached in memory.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.nodes))
	for k := range s.nodes {
		keys = append(keys, k)
	}
	return keys
}

// Close stops the deferred-update timer and closes the backend.
func (s *Store) Close() error {
	s.deferQ.stop()
	if s.backend != nil {
		return s.backend.Close()
	}
	return nil
}
