// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"container/heap"
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/luxfi/geth/common"
)

// suppressionCacheSize bounds the planner's completed/confirmed sets so a
// long-running validator doesn't grow these without limit. A transfer
// falling out of the cache after this many more recent ones is only a
// problem if it is somehow re-delivered by the fetcher, which does not
// happen once its cursor has advanced past it.
const suppressionCacheSize = 100_000

// scheduledItem is one entry in the planner's release-time min-heap: a
// foreign transfer held for sync_persistence_time before being considered
// for release as a confirmation task.
type scheduledItem struct {
	releaseTime time.Time
	seq         uint64
	transfer    TransferEvent
}

// scheduledHeap implements container/heap.Interface ordered by release
// time, then insertion sequence to keep ties FIFO.
type scheduledHeap []*scheduledItem

func (h scheduledHeap) Len() int { return len(h) }
func (h scheduledHeap) Less(i, j int) bool {
	if !h[i].releaseTime.Equal(h[j].releaseTime) {
		return h[i].releaseTime.Before(h[j].releaseTime)
	}
	return h[i].seq < h[j].seq
}
func (h scheduledHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *scheduledHeap) Push(x any)   { *h = append(*h, x.(*scheduledItem)) }
func (h *scheduledHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// ConfirmationTaskPlannerConfig wires a planner's input/output queues.
type ConfirmationTaskPlannerConfig struct {
	SyncPersistenceTime  time.Duration
	TransferEventQueue   <-chan TransferEvent
	HomeBridgeEventQueue <-chan HomeEvent
	ConfirmationTaskQueue chan<- TransferEvent
}

// ConfirmationTaskPlanner joins the foreign transfer stream with the home
// confirmation/completion stream and emits the set of transfers this
// validator still needs to confirm.
type ConfirmationTaskPlanner struct {
	cfg ConfirmationTaskPlannerConfig

	scheduled            scheduledHeap
	alreadyConfirmedByMe *lru.Cache
	completed            *lru.Cache
	seq                  uint64

	running chan struct{} // closed exactly once, by StartValidating
}

// NewConfirmationTaskPlanner constructs a planner in the not-running state;
// StartValidating must be called (by the status watcher) before it will
// release any tasks.
func NewConfirmationTaskPlanner(cfg ConfirmationTaskPlannerConfig) *ConfirmationTaskPlanner {
	alreadyConfirmedByMe, err := lru.New(suppressionCacheSize)
	if err != nil {
		panic("bridge: invalid suppression cache size: " + err.Error())
	}
	completed, err := lru.New(suppressionCacheSize)
	if err != nil {
		panic("bridge: invalid suppression cache size: " + err.Error())
	}

	p := &ConfirmationTaskPlanner{
		cfg:                  cfg,
		alreadyConfirmedByMe: alreadyConfirmedByMe,
		completed:            completed,
		running:              make(chan struct{}),
	}
	heap.Init(&p.scheduled)
	return p
}

// StartValidating flips the planner's running gate. Safe to call multiple
// times or concurrently; only the first call has an effect.
func (p *ConfirmationTaskPlanner) StartValidating() {
	select {
	case <-p.running:
		// already running
	default:
		close(p.running)
	}
}

// Run drives the planner's main loop until ctx is cancelled: drain both
// input queues, release every scheduled transfer whose hold has elapsed,
// then sleep until the next release time or for SyncPersistenceTime,
// whichever comes first; new arrivals do not cut the sleep short and are
// picked up on the next pass. It is single-threaded:
// all heap and set mutation happens on this goroutine, so no additional
// locking is required.
func (p *ConfirmationTaskPlanner) Run(ctx context.Context) error {
	select {
	case <-p.running:
	case <-ctx.Done():
		return nil
	}

	for {
		p.drainHomeEvents()
		p.drainTransferEvents()
		if err := p.releaseDue(ctx); err != nil {
			return nil
		}

		sleepUntil := time.Now().Add(p.cfg.SyncPersistenceTime)
		if p.scheduled.Len() > 0 {
			top := p.scheduled[0].releaseTime
			if top.Before(sleepUntil) {
				sleepUntil = top
			}
		}

		timer := time.NewTimer(time.Until(sleepUntil))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

func (p *ConfirmationTaskPlanner) drainHomeEvents() {
	for {
		select {
		case event := <-p.cfg.HomeBridgeEventQueue:
			switch event.Kind {
			case HomeEventConfirmation:
				p.alreadyConfirmedByMe.Add(event.Confirmation.TransferHash, struct{}{})
			case HomeEventCompletion:
				p.completed.Add(event.Completion.TransferHash, struct{}{})
				p.discardScheduled(event.Completion.TransferHash)
			}
		default:
			return
		}
	}
}

func (p *ConfirmationTaskPlanner) drainTransferEvents() {
	for {
		select {
		case transfer := <-p.cfg.TransferEventQueue:
			h := transfer.TransferHash()
			if p.isSuppressed(h) {
				continue
			}
			p.seq++
			heap.Push(&p.scheduled, &scheduledItem{
				releaseTime: time.Now().Add(p.cfg.SyncPersistenceTime),
				seq:         p.seq,
				transfer:    transfer,
			})
		default:
			return
		}
	}
}

// releaseDue pops every heap entry whose release time has arrived,
// re-checking suppression at pop time -- this is where duplicate
// suppression actually fires, since a Confirmation or Completion may
// have arrived after the transfer was scheduled but before its hold
// elapsed.
func (p *ConfirmationTaskPlanner) releaseDue(ctx context.Context) error {
	now := time.Now()
	for p.scheduled.Len() > 0 && !p.scheduled[0].releaseTime.After(now) {
		item := heap.Pop(&p.scheduled).(*scheduledItem)
		h := item.transfer.TransferHash()
		if p.isSuppressed(h) {
			continue
		}
		select {
		case p.cfg.ConfirmationTaskQueue <- item.transfer:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *ConfirmationTaskPlanner) isSuppressed(h common.Hash) bool {
	return p.completed.Contains(h) || p.alreadyConfirmedByMe.Contains(h)
}

// discardScheduled removes any heap entry for transferHash, called when a
// Completion arrives for a transfer still waiting out its sync persistence
// window.
func (p *ConfirmationTaskPlanner) discardScheduled(transferHash common.Hash) {
	for i := 0; i < p.scheduled.Len(); {
		if p.scheduled[i].transfer.TransferHash() == transferHash {
			heap.Remove(&p.scheduled, i)
			continue
		}
		i++
	}
}
