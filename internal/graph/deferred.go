package graph

import (
	"container/heap"
	"sync"
	"time"

	"gungo/internal/ham"
)

// deferredItem is one HAM-deferred field update, ordered by ReadyAt.
type deferredItem struct {
	ham.Deferred
	index int
}

type deferredPQ []*deferredItem

func (pq deferredPQ) Len() int            { return len(pq) }
func (pq deferredPQ) Less(i, j int) bool  { return pq[i].ReadyAt < pq[j].ReadyAt }
func (pq deferredPQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *deferredPQ) Push(x any)         { item := x.(*deferredItem); item.index = len(*pq); *pq = append(*pq, item) }
func (pq *deferredPQ) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// deferredQueue buffers HAM-deferred updates keyed by release time and
// replays the earliest-due one once a single timer fires, per spec §4.2.
// Replays re-enter MergeNode so rule ordering is identical to a live
// arrival.
type deferredQueue struct {
	mu      sync.Mutex
	pq      deferredPQ
	timer   *time.Timer
	nowFn   func() float64
	replay  func(d ham.Deferred)
	stopped bool
}

func newDeferredQueue(nowFn func() float64, replay func(d ham.Deferred)) *deferredQueue {
	q := &deferredQueue{nowFn: nowFn, replay: replay}
	heap.Init(&q.pq)
	return q
}

// enqueue buffers d and reschedules the wake timer if d is now the
// earliest-due entry.
func (q *deferredQueue) enqueue(d ham.Deferred) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	heap.Push(&q.pq, &deferredItem{Deferred: d})
	q.rescheduleLocked()
}

func (q *deferredQueue) rescheduleLocked() {
	if len(q.pq) == 0 {
		return
	}
	next := q.pq[0]
	delayMs := next.ReadyAt - q.nowFn()
	if delayMs < 0 {
		delayMs = 0
	}
	delay := time.Duration(delayMs) * time.Millisecond

	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(delay, q.wake)
}

func (q *deferredQueue) wake() {
	q.mu.Lock()
	if q.stopped || len(q.pq) == 0 {
		q.mu.Unlock()
		return
	}
	now := q.nowFn()
	item := q.pq[0]
	if item.ReadyAt > now {
		// Clock moved but not enough yet; reschedule for the remainder.
		q.rescheduleLocked()
		q.mu.Unlock()
		return
	}
	heap.Pop(&q.pq)
	q.rescheduleLocked()
	q.mu.Unlock()

	q.replay(item.Deferred)
}

func (q *deferredQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	if q.timer != nil {
		q.timer.Stop()
	}
}

// Len reports how many updates are currently buffered; exposed for tests.
func (q *deferredQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}
