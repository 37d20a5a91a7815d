package dam

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// peerQueue is a bounded, FIFO delivery queue for one peer. When full,
// it drops the oldest non-reply envelope to make room rather than
// blocking the router or dropping a reply the other side is waiting on.
type peerQueue struct {
	peer Peer
	cap  int
	log  *logrus.Entry

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []*Envelope
	closed bool
}

func newPeerQueue(p Peer, capacity int, log *logrus.Entry) *peerQueue {
	q := &peerQueue{peer: p, cap: capacity, log: log}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *peerQueue) enqueue(env *Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	if len(q.buf) >= q.cap {
		if !q.dropOldestNonReplyLocked() {
			// Every queued item is a reply in flight; drop the new
			// envelope rather than evict one nobody can afford to lose.
			if q.log != nil {
				q.log.WithField("peer", q.peer.ID()).Warn("dam: peer queue saturated with replies, dropping new envelope")
			}
			return
		}
	}
	q.buf = append(q.buf, env)
	q.cond.Signal()
}

func (q *peerQueue) dropOldestNonReplyLocked() bool {
	for i, env := range q.buf {
		if env.ReplyTo == "" {
			q.buf = append(q.buf[:i], q.buf[i+1:]...)
			return true
		}
	}
	return false
}

func (q *peerQueue) run() {
	for {
		q.mu.Lock()
		for len(q.buf) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed && len(q.buf) == 0 {
			q.mu.Unlock()
			return
		}
		env := q.buf[0]
		q.buf = q.buf[1:]
		q.mu.Unlock()

		if err := q.peer.Send(env); err != nil && q.log != nil {
			q.log.WithError(err).WithField("peer", q.peer.ID()).Warn("dam: peer send failed")
		}
	}
}

func (q *peerQueue) stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
