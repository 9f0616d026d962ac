// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import "sync"

// pendingQueue is a FIFO of PendingTx shared between the sender's build and
// watch goroutines, preserving submission order (nonce order == queue
// order) while build and watch run concurrently.
type pendingQueue struct {
	mu    sync.Mutex
	items []PendingTx
}

func (q *pendingQueue) push(tx PendingTx) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, tx)
}

// peekFront returns the oldest pending transaction without removing it, and
// whether the queue was non-empty.
func (q *pendingQueue) peekFront() (PendingTx, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return PendingTx{}, false
	}
	return q.items[0], true
}

// popFront removes the oldest pending transaction. It is a no-op if the
// queue is empty or the front entry's nonce no longer matches (guards
// against a race between watch reading a stale peek and a concurrent pop).
func (q *pendingQueue) popFront(nonce uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.items[0].Nonce != nonce {
		return
	}
	q.items = q.items[1:]
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
