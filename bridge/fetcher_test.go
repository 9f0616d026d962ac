// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	geth "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/stretchr/testify/require"
)

// fakeFetcherClient serves a fixed, append-only log set and a mutable head,
// letting a test simulate blocks arriving (and the reorg window sliding)
// one step at a time.
type fakeFetcherClient struct {
	mu   sync.Mutex
	head uint64
	logs []types.Log
}

func (f *fakeFetcherClient) setHead(h uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = h
}

func (f *fakeFetcherClient) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeFetcherClient) FilterLogs(_ context.Context, q geth.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFetcherClient) SendTransaction(context.Context, *types.Transaction) error { return nil }
func (f *fakeFetcherClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, nil
}
func (f *fakeFetcherClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeFetcherClient) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	return 0, nil
}
func (f *fakeFetcherClient) CallContract(context.Context, geth.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}
func (f *fakeFetcherClient) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}
func (f *fakeFetcherClient) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

// fakeFilterTooLargeClient always reports a head beyond the reorg window
// and fails every FilterLogs call with a provider-style "range too large"
// error, regardless of the requested range.
type fakeFilterTooLargeClient struct {
	fakeFetcherClient
	calls int
}

func (f *fakeFilterTooLargeClient) FilterLogs(context.Context, geth.FilterQuery) ([]types.Log, error) {
	f.calls++
	return nil, errors.New("query returned more than 10000 results")
}

func transferLog(blockNumber uint64, logIndex uint, to common.Address) types.Log {
	return types.Log{
		Address:     common.HexToAddress("0x01"),
		Topics:      []common.Hash{transferEventID, addressTopic(common.HexToAddress("0x03")), addressTopic(to)},
		Data:        common.LeftPadBytes(big.NewInt(42).Bytes(), 32),
		BlockNumber: blockNumber,
		Index:       logIndex,
		TxHash:      common.BytesToHash([]byte{byte(blockNumber), byte(logIndex)}),
	}
}

func TestEventFetcher_WithholdsLogsWithinReorgWindow(t *testing.T) {
	bridgeAddr := common.HexToAddress("0x02")
	client := &fakeFetcherClient{
		head: 10,
		logs: []types.Log{transferLog(8, 0, bridgeAddr)},
	}

	out := make(chan TransferEvent, 8)
	f := NewEventFetcher(EventFetcherConfig[TransferEvent]{
		Client:           client,
		ContractAddress:  common.HexToAddress("0x01"),
		EventDescriptors: TransferEventDescriptors(bridgeAddr),
		StartBlock:       0,
		MaxReorgDepth:    5,
		PollInterval:     time.Millisecond,
		OutputQueue:      out,
		Name:             "test",
	})

	require.NoError(t, f.tick(context.Background()))
	select {
	case ev := <-out:
		t.Fatalf("log at block 8 should still be within the reorg window at head 10, got %+v", ev)
	default:
	}

	client.setHead(13) // confirmed head = 13 - 5 = 8, now includes block 8
	require.NoError(t, f.tick(context.Background()))
	select {
	case ev := <-out:
		require.Equal(t, uint64(8), ev.BlockNumber)
	default:
		t.Fatal("expected log at block 8 to be released once it cleared the reorg window")
	}
}

func TestEventFetcher_EmitsInOnChainOrder(t *testing.T) {
	bridgeAddr := common.HexToAddress("0x02")
	client := &fakeFetcherClient{
		head: 20,
		logs: []types.Log{
			transferLog(5, 1, bridgeAddr),
			transferLog(5, 0, bridgeAddr),
			transferLog(3, 0, bridgeAddr),
		},
	}

	out := make(chan TransferEvent, 8)
	f := NewEventFetcher(EventFetcherConfig[TransferEvent]{
		Client:           client,
		ContractAddress:  common.HexToAddress("0x01"),
		EventDescriptors: TransferEventDescriptors(bridgeAddr),
		StartBlock:       0,
		MaxReorgDepth:    0,
		PollInterval:     time.Millisecond,
		OutputQueue:      out,
		Name:             "test",
	})

	require.NoError(t, f.tick(context.Background()))
	require.Len(t, out, 3)

	first := <-out
	second := <-out
	third := <-out
	require.Equal(t, uint64(3), first.BlockNumber)
	require.Equal(t, uint64(5), second.BlockNumber)
	require.Equal(t, uint(0), second.LogIndex)
	require.Equal(t, uint64(5), third.BlockNumber)
	require.Equal(t, uint(1), third.LogIndex)
}

func TestEventFetcher_ReturnsFatalRPCAfterRepeatedFilterTooLarge(t *testing.T) {
	bridgeAddr := common.HexToAddress("0x02")
	client := &fakeFilterTooLargeClient{fakeFetcherClient: fakeFetcherClient{head: 20}}

	f := NewEventFetcher(EventFetcherConfig[TransferEvent]{
		Client:           client,
		ContractAddress:  common.HexToAddress("0x01"),
		EventDescriptors: TransferEventDescriptors(bridgeAddr),
		StartBlock:       0,
		MaxReorgDepth:    5,
		PollInterval:     time.Millisecond,
		OutputQueue:      make(chan TransferEvent, 1),
		Name:             "test",
	})

	for i := 0; i < maxConsecutiveFatalFilterErrors-1; i++ {
		err := f.tick(context.Background())
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrFatalRPC), "should still be tolerating transient filter-too-large errors")
	}

	err := f.tick(context.Background())
	require.ErrorIs(t, err, ErrFatalRPC)
	require.Equal(t, maxConsecutiveFatalFilterErrors, client.calls)
}

func TestEventFetcher_RunStopsOnFatalRPC(t *testing.T) {
	bridgeAddr := common.HexToAddress("0x02")
	client := &fakeFilterTooLargeClient{fakeFetcherClient: fakeFetcherClient{head: 20}}

	f := NewEventFetcher(EventFetcherConfig[TransferEvent]{
		Client:           client,
		ContractAddress:  common.HexToAddress("0x01"),
		EventDescriptors: TransferEventDescriptors(bridgeAddr),
		StartBlock:       0,
		MaxReorgDepth:    5,
		PollInterval:     time.Millisecond,
		OutputQueue:      make(chan TransferEvent, 1),
		Name:             "test",
	})

	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrFatalRPC)
	case <-time.After(time.Second):
		t.Fatal("fetcher did not stop after repeated filter-too-large errors")
	}
}

func TestEventFetcher_AdvancesCursorPastConfirmedHead(t *testing.T) {
	bridgeAddr := common.HexToAddress("0x02")
	client := &fakeFetcherClient{head: 10}

	f := NewEventFetcher(EventFetcherConfig[TransferEvent]{
		Client:           client,
		ContractAddress:  common.HexToAddress("0x01"),
		EventDescriptors: TransferEventDescriptors(bridgeAddr),
		StartBlock:       0,
		MaxReorgDepth:    5,
		PollInterval:     time.Millisecond,
		OutputQueue:      make(chan TransferEvent, 1),
		Name:             "test",
	})

	require.NoError(t, f.tick(context.Background()))
	require.Equal(t, uint64(6), f.cursor) // confirmedHead(5) + 1
}
