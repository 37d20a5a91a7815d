package graph

import (
	"sync"
	"sync/atomic"

	"gungo/internal/ham"
)

// ChangeEvent is delivered to a subscriber after a delta has been applied
// to the store and is visible to readers (spec §5: notifications fire
// after the delta is visible to reads).
type ChangeEvent struct {
	Soul   string
	Fields map[string]Value
}

// Handle identifies a subscription for later Unsubscribe.
type Handle uint64

type subscriber struct {
	handle Handle
	field  string // "" means "any field in this soul"
	cb     func(ChangeEvent)
}

// subscriptionRegistry tracks subscribers per soul. Lists are
// copy-on-notify: a notification takes a snapshot of the slice so
// callbacks may re-enter the store (e.g. to Subscribe again) without
// deadlocking or racing concurrent Subscribe/Unsubscribe calls.
type subscriptionRegistry struct {
	mu    sync.RWMutex
	byID  map[Handle]string // handle -> soul, for O(1) Unsubscribe
	souls map[string][]*subscriber
	next  uint64
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		byID:  map[Handle]string{},
		souls: map[string][]*subscriber{},
	}
}

// Subscribe installs cb for soul, optionally narrowed to one field.
func (r *subscriptionRegistry) Subscribe(soul, field string, cb func(ChangeEvent)) Handle {
	h := Handle(atomic.AddUint64(&r.next, 1))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.souls[soul] = append(r.souls[soul], &subscriber{handle: h, field: field, cb: cb})
	r.byID[h] = soul
	return h
}

// Unsubscribe removes the subscriber for handle, if any.
func (r *subscriptionRegistry) Unsubscribe(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	soul, ok := r.byID[h]
	if !ok {
		return
	}
	delete(r.byID, h)
	subs := r.souls[soul]
	for i, s := range subs {
		if s.handle == h {
			r.souls[soul] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.souls[soul]) == 0 {
		delete(r.souls, soul)
	}
}

// Notify fans delta out to every subscriber of its soul, narrowing by
// field when the subscriber asked for one.
func (r *subscriptionRegistry) Notify(delta *ham.Delta) {
	r.mu.RLock()
	subs := append([]*subscriber(nil), r.souls[delta.Soul]...)
	r.mu.RUnlock()

	for _, s := range subs {
		if s.field == "" {
			s.cb(ChangeEvent{Soul: delta.Soul, Fields: delta.Fields})
			continue
		}
		if v, ok := delta.Fields[s.field]; ok {
			s.cb(ChangeEvent{Soul: delta.Soul, Fields: map[string]Value{s.field: v}})
		}
	}
}
