package roomstore

import (
	"container/list"
	"sync"
	"time"
)

// waitingPoolEntry tracks one session's place in the FIFO couple-matching
// queue along with the timeout timer that expires it. matched guards
// against the timer firing after the session has already been paired (or
// against a second no_match_found being sent if Cancel races the timer).
type waitingPoolEntry struct {
	sess    *Session
	el      *list.Element
	timer   *time.Timer
	matched sync.Once
}

// waitingPool is a FIFO of sessions that joined with room_type=couple (the
// legacy couple path) pending pairing with a peer.
type waitingPool struct {
	mu      sync.Mutex
	order   *list.List // *waitingPoolEntry
	byID    map[SessionID]*waitingPoolEntry
	timeout time.Duration
}

func newWaitingPool(timeout time.Duration) *waitingPool {
	return &waitingPool{
		order:   list.New(),
		byID:    make(map[SessionID]*waitingPoolEntry),
		timeout: timeout,
	}
}

// popPeer removes and returns the longest-waiting session, if any. The
// caller is responsible for cancelling its timeout timer.
func (p *waitingPool) popPeer() *waitingPoolEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	front := p.order.Front()
	if front == nil {
		return nil
	}
	entry := front.Value.(*waitingPoolEntry)
	p.order.Remove(front)
	delete(p.byID, entry.sess.ID)
	return entry
}

// enqueue adds sess to the back of the pool and arms its timeout. onTimeout
// is invoked at most once (guarded by entry.matched) even if the timer
// fires concurrently with a cancel.
func (p *waitingPool) enqueue(sess *Session, onTimeout func(*Session)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry := &waitingPoolEntry{sess: sess}
	entry.el = p.order.PushBack(entry)
	p.byID[sess.ID] = entry
	entry.timer = time.AfterFunc(p.timeout, func() {
		p.cancel(sess.ID)
		entry.matched.Do(func() { onTimeout(sess) })
	})
}

// cancel removes sess from the pool (if still present) and stops its timer,
// used when the session is matched before its timeout fires.
func (p *waitingPool) cancel(id SessionID) {
	p.mu.Lock()
	entry, ok := p.byID[id]
	if ok {
		p.order.Remove(entry.el)
		delete(p.byID, id)
	}
	p.mu.Unlock()

	if ok && entry.timer != nil {
		entry.timer.Stop()
	}
}

// markMatched prevents a race-losing timeout callback from also firing
// no_match_found once a session has been paired by popPeer.
func (p *waitingPool) markMatched(entry *waitingPoolEntry) {
	entry.matched.Do(func() {})
	if entry.timer != nil {
		entry.timer.Stop()
	}
}
