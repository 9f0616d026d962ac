// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func newTestPlanner(t *testing.T, persistence time.Duration) (*ConfirmationTaskPlanner, chan TransferEvent, chan HomeEvent, chan TransferEvent) {
	t.Helper()
	transferQueue := make(chan TransferEvent, 16)
	homeQueue := make(chan HomeEvent, 16)
	taskQueue := make(chan TransferEvent, 16)

	p := NewConfirmationTaskPlanner(ConfirmationTaskPlannerConfig{
		SyncPersistenceTime:   persistence,
		TransferEventQueue:    transferQueue,
		HomeBridgeEventQueue:  homeQueue,
		ConfirmationTaskQueue: taskQueue,
	})
	return p, transferQueue, homeQueue, taskQueue
}

func mustReceive(t *testing.T, ch <-chan TransferEvent, timeout time.Duration) TransferEvent {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatal("timed out waiting for confirmation task")
		return TransferEvent{}
	}
}

func assertNoRelease(t *testing.T, ch <-chan TransferEvent, within time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected confirmation task released: %+v", v)
	case <-time.After(within):
	}
}

func TestPlanner_ReleasesTransferAfterPersistenceWindow(t *testing.T) {
	p, transferQueue, _, taskQueue := newTestPlanner(t, 30*time.Millisecond)
	p.StartValidating()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	transfer := TransferEvent{TransactionHash: common.HexToHash("0xaa"), LogIndex: 0}
	transferQueue <- transfer

	assertNoRelease(t, taskQueue, 10*time.Millisecond)
	released := mustReceive(t, taskQueue, 200*time.Millisecond)
	require.Equal(t, transfer.TransferHash(), released.TransferHash())
}

func TestPlanner_SuppressesAlreadyConfirmedByMe(t *testing.T) {
	p, transferQueue, homeQueue, taskQueue := newTestPlanner(t, 20*time.Millisecond)
	p.StartValidating()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	transfer := TransferEvent{TransactionHash: common.HexToHash("0xbb"), LogIndex: 1}
	homeQueue <- HomeEvent{
		Kind:         HomeEventConfirmation,
		Confirmation: ConfirmationEvent{TransferHash: transfer.TransferHash()},
	}
	transferQueue <- transfer

	assertNoRelease(t, taskQueue, 100*time.Millisecond)
}

func TestPlanner_CompletionDiscardsScheduledTransfer(t *testing.T) {
	p, transferQueue, homeQueue, taskQueue := newTestPlanner(t, 50*time.Millisecond)
	p.StartValidating()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	transfer := TransferEvent{TransactionHash: common.HexToHash("0xcc"), LogIndex: 2}
	transferQueue <- transfer
	time.Sleep(5 * time.Millisecond)
	homeQueue <- HomeEvent{
		Kind:       HomeEventCompletion,
		Completion: CompletionEvent{TransferHash: transfer.TransferHash()},
	}

	assertNoRelease(t, taskQueue, 150*time.Millisecond)
}

func TestPlanner_DoesNotReleaseBeforeStartValidating(t *testing.T) {
	p, transferQueue, _, taskQueue := newTestPlanner(t, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	transfer := TransferEvent{TransactionHash: common.HexToHash("0xdd"), LogIndex: 0}
	transferQueue <- transfer

	assertNoRelease(t, taskQueue, 50*time.Millisecond)

	p.StartValidating()
	mustReceive(t, taskQueue, 200*time.Millisecond)
}

func TestPlanner_IsSuppressedChecksBothCaches(t *testing.T) {
	p, _, _, _ := newTestPlanner(t, time.Second)

	h1 := common.HexToHash("0x01")
	h2 := common.HexToHash("0x02")
	require.False(t, p.isSuppressed(h1))

	p.alreadyConfirmedByMe.Add(h1, struct{}{})
	require.True(t, p.isSuppressed(h1))
	require.False(t, p.isSuppressed(h2))

	p.completed.Add(h2, struct{}{})
	require.True(t, p.isSuppressed(h2))
}
