// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	geth "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/metrics"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/chainclient"
)

// ErrFatalRPC marks an error after which the fetcher stops permanently
// rather than retrying on the next tick. tick wraps it around a
// filter-too-large error that keeps recurring; a Decode or client error
// that wraps it stops the fetcher the same way.
var ErrFatalRPC = errors.New("bridge: fatal rpc error")

// EventDescriptor names one event this fetcher watches and how to turn a
// matching log into a decoded event: a fixed, explicit mapping rather than
// ABI reflection at runtime.
type EventDescriptor[T ChainEvent] struct {
	Name string
	// Topics is the full topics filter passed to FilterLogs: Topics[0] is
	// always a single-element slice holding the event's topic0 signature
	// hash; Topics[1:] optionally constrain indexed arguments (e.g. the
	// foreign Transfer descriptor constrains "to" == the bridge address,
	// the home Confirmation descriptor constrains "validator" == me).
	Topics [][]common.Hash
	Decode func(types.Log) (T, error)
}

// EventFetcherConfig configures one EventFetcher instance.
type EventFetcherConfig[T ChainEvent] struct {
	Client           chainclient.Client
	ContractAddress  common.Address
	EventDescriptors []EventDescriptor[T]
	StartBlock       uint64
	MaxReorgDepth    uint64
	PollInterval     time.Duration
	OutputQueue      chan<- T
	Name             string
}

// EventFetcher polls a single chain for logs matching a fixed set of event
// descriptors and emits confirmed events, in on-chain order, onto its
// output queue. One instance watches exactly one chain.
type EventFetcher[T ChainEvent] struct {
	cfg    EventFetcherConfig[T]
	cursor uint64

	// consecutiveFilterErrors counts back-to-back filter-too-large
	// responses at the current cursor; it resets whenever a FilterLogs call
	// either succeeds or fails for a different reason.
	consecutiveFilterErrors int
}

// NewEventFetcher constructs a fetcher with its initial cursor clamped to
// max(start_block, 0) -- start_block is already unsigned, so this is just
// the identity, preserved here to keep the invariant explicit.
func NewEventFetcher[T ChainEvent](cfg EventFetcherConfig[T]) *EventFetcher[T] {
	return &EventFetcher[T]{cfg: cfg, cursor: cfg.StartBlock}
}

// Run drives the fetch loop until ctx is cancelled. It never returns a
// non-nil error except when the underlying transport reports an
// irrecoverable (ErrFatalRPC) condition.
func (f *EventFetcher[T]) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := f.tick(ctx); err != nil {
			if errors.Is(err, ErrFatalRPC) {
				return err
			}
			log.Warn("event fetcher: transient error, retrying next tick",
				"name", f.cfg.Name, "error", err)
		}
	}
}

// tick performs one poll/merge/sort/advance-cursor cycle.
func (f *EventFetcher[T]) tick(ctx context.Context) error {
	head, err := f.cfg.Client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fetching head block number: %w", err)
	}

	if head < f.cfg.MaxReorgDepth {
		return nil // confirmed window is empty
	}
	confirmedHead := head - f.cfg.MaxReorgDepth
	if confirmedHead < f.cursor {
		return nil // confirmed window is empty
	}

	var batch []T
	for _, desc := range f.cfg.EventDescriptors {
		query := geth.FilterQuery{
			FromBlock: new(big.Int).SetUint64(f.cursor),
			ToBlock:   new(big.Int).SetUint64(confirmedHead),
			Addresses: []common.Address{f.cfg.ContractAddress},
			Topics:    desc.Topics,
		}

		logs, err := f.cfg.Client.FilterLogs(ctx, query)
		if err != nil {
			if isFilterTooLargeError(err) {
				f.consecutiveFilterErrors++
				if f.consecutiveFilterErrors >= maxConsecutiveFatalFilterErrors {
					return fmt.Errorf("fetching %s logs [%d,%d]: %w: %v", desc.Name, f.cursor, confirmedHead, ErrFatalRPC, err)
				}
			} else {
				f.consecutiveFilterErrors = 0
			}
			return fmt.Errorf("fetching %s logs [%d,%d]: %w", desc.Name, f.cursor, confirmedHead, err)
		}
		f.consecutiveFilterErrors = 0

		for _, l := range logs {
			event, err := desc.Decode(l)
			if err != nil {
				return fmt.Errorf("decoding %s log (tx %s, index %d): %w", desc.Name, l.TxHash, l.Index, err)
			}
			batch = append(batch, event)
		}
	}

	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].EventBlockNumber() != batch[j].EventBlockNumber() {
			return batch[i].EventBlockNumber() < batch[j].EventBlockNumber()
		}
		return batch[i].EventLogIndex() < batch[j].EventLogIndex()
	})

	for _, event := range batch {
		select {
		case f.cfg.OutputQueue <- event:
		case <-ctx.Done():
			return nil
		}
	}

	f.cursor = confirmedHead + 1
	f.cursorGauge().Update(int64(f.cursor))
	return nil
}

// cursorGauge returns the metric tracking this fetcher's cursor, chosen by
// name so the foreign and home fetchers (the only two instances) are
// distinguishable in the metrics registry.
func (f *EventFetcher[T]) cursorGauge() *metrics.Gauge {
	if f.cfg.Name == "home" {
		return homeFetcherCursor
	}
	return foreignFetcherCursor
}
