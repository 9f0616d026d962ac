// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// ChainEvent is implemented by every event type that flows through an
// EventFetcher, so the fetcher can sort a merged batch into on-chain order
// regardless of which event descriptor produced it.
type ChainEvent interface {
	EventBlockNumber() uint64
	EventLogIndex() uint
}

// TransferEvent is a Transfer(from, to, value) log observed on the foreign
// chain, filtered to transfers addressed to the foreign bridge contract.
type TransferEvent struct {
	TokenAddress    common.Address // the contract that emitted this log
	Sender          common.Address
	Recipient       common.Address // the "to" argument: the bridge account credited
	Value           *big.Int
	TransactionHash common.Hash
	LogIndex        uint
	BlockNumber     uint64
	BlockHash       common.Hash
}

func (t TransferEvent) EventBlockNumber() uint64 { return t.BlockNumber }
func (t TransferEvent) EventLogIndex() uint      { return t.LogIndex }

// TransferHash returns the identity joining this foreign transfer with the
// home-chain Confirmation/Completion stream: keccak256(tx_hash ||
// minimal-big-endian(log_index)).
func (t TransferEvent) TransferHash() common.Hash {
	return computeTransferHash(t.TransactionHash, t.LogIndex)
}

// ConfirmationEvent is a Confirmation(transferHash, transactionHash, amount,
// recipient, validator) log on the home chain, filtered to validator == me.
type ConfirmationEvent struct {
	TransferHash    common.Hash
	TransactionHash common.Hash
	Amount          *big.Int
	Recipient       common.Address
	Validator       common.Address
	BlockNumber     uint64
	LogIndex        uint
}

func (c ConfirmationEvent) EventBlockNumber() uint64 { return c.BlockNumber }
func (c ConfirmationEvent) EventLogIndex() uint      { return c.LogIndex }

// CompletionEvent is a Completion(transferHash) log on the home chain,
// unfiltered: it signifies quorum was reached, regardless of which
// validator tipped it over.
type CompletionEvent struct {
	TransferHash common.Hash
	BlockNumber  uint64
	LogIndex     uint
}

func (c CompletionEvent) EventBlockNumber() uint64 { return c.BlockNumber }
func (c CompletionEvent) EventLogIndex() uint      { return c.LogIndex }

// HomeEventKind tags which variant a HomeEvent wraps.
type HomeEventKind uint8

const (
	HomeEventConfirmation HomeEventKind = iota
	HomeEventCompletion
)

// HomeEvent is the tagged union flowing out of the home-chain fetcher: it
// carries either a Confirmation (already filtered to this validator) or a
// Completion.
type HomeEvent struct {
	Kind         HomeEventKind
	Confirmation ConfirmationEvent
	Completion   CompletionEvent
}

func (h HomeEvent) EventBlockNumber() uint64 {
	if h.Kind == HomeEventConfirmation {
		return h.Confirmation.BlockNumber
	}
	return h.Completion.BlockNumber
}

func (h HomeEvent) EventLogIndex() uint {
	if h.Kind == HomeEventConfirmation {
		return h.Confirmation.LogIndex
	}
	return h.Completion.LogIndex
}

// PendingTx records a signed, submitted confirmation transaction while the
// sender waits for it to be mined and buried past max_reorg_depth.
type PendingTx struct {
	TxHash          common.Hash
	Nonce           uint64
	TransferHash    common.Hash
	Transfer        TransferEvent
	SubmittedHeight uint64
}
