// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// filterTooLargeSubstrings lists the error text JSON-RPC providers are
// known to return when a getLogs query spans too wide a block range or
// would return too many results. None of these is standardized, so this
// is necessarily a substring match against whatever providers are seen in
// practice (Infura, Alchemy, and geth's own built-in RPC server).
var filterTooLargeSubstrings = []string{
	"query returned more than",
	"block range is too large",
	"log response size exceeded",
	"exceeds the range",
	"limit exceeded",
}

// isFilterTooLargeError reports whether err looks like a provider telling
// us our getLogs window is too wide, as opposed to a generic transient
// network or rate-limit failure that is worth retrying indefinitely.
func isFilterTooLargeError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range filterTooLargeSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// TransferEventDescriptors builds the single Transfer descriptor the
// foreign-chain fetcher watches, constrained server-side to transfers
// addressed to foreignBridge.
func TransferEventDescriptors(foreignBridge common.Address) []EventDescriptor[TransferEvent] {
	return []EventDescriptor[TransferEvent]{
		{
			Name: TransferEventName,
			Topics: [][]common.Hash{
				{transferEventID},
				{}, // from: unconstrained
				{addressTopic(foreignBridge)},
			},
			Decode: decodeTransferLog,
		},
	}
}

// HomeEventDescriptors builds the Confirmation (filtered to validator == me)
// and Completion (unfiltered) descriptors the home-chain fetcher watches.
func HomeEventDescriptors(validator common.Address) []EventDescriptor[HomeEvent] {
	return []EventDescriptor[HomeEvent]{
		{
			Name: ConfirmationEventName,
			Topics: [][]common.Hash{
				{confirmationEventID},
				{addressTopic(validator)},
			},
			Decode: decodeConfirmationLog,
		},
		{
			Name:   CompletionEventName,
			Topics: [][]common.Hash{{completionEventID}},
			Decode: decodeCompletionLog,
		},
	}
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func decodeTransferLog(l types.Log) (TransferEvent, error) {
	if len(l.Topics) != 3 {
		return TransferEvent{}, fmt.Errorf("Transfer log: expected 3 topics, got %d", len(l.Topics))
	}
	values, err := erc20TokenABI.Events[TransferEventName].Inputs.NonIndexed().UnpackValues(l.Data)
	if err != nil {
		return TransferEvent{}, fmt.Errorf("unpacking Transfer data: %w", err)
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return TransferEvent{}, fmt.Errorf("unpacking Transfer data: unexpected value type %T", values[0])
	}

	return TransferEvent{
		TokenAddress:    l.Address,
		Sender:          common.BytesToAddress(l.Topics[1].Bytes()),
		Recipient:       common.BytesToAddress(l.Topics[2].Bytes()),
		Value:           value,
		TransactionHash: l.TxHash,
		LogIndex:        l.Index,
		BlockNumber:     l.BlockNumber,
		BlockHash:       l.BlockHash,
	}, nil
}

func decodeConfirmationLog(l types.Log) (HomeEvent, error) {
	if len(l.Topics) != 2 {
		return HomeEvent{}, fmt.Errorf("Confirmation log: expected 2 topics, got %d", len(l.Topics))
	}
	values, err := homeBridgeABIObj.Events[ConfirmationEventName].Inputs.NonIndexed().UnpackValues(l.Data)
	if err != nil {
		return HomeEvent{}, fmt.Errorf("unpacking Confirmation data: %w", err)
	}
	if len(values) != 4 {
		return HomeEvent{}, fmt.Errorf("unpacking Confirmation data: expected 4 values, got %d", len(values))
	}
	transferHash, ok := values[0].([32]byte)
	if !ok {
		return HomeEvent{}, fmt.Errorf("unpacking Confirmation data: unexpected transferHash type %T", values[0])
	}
	transactionHash, ok := values[1].([32]byte)
	if !ok {
		return HomeEvent{}, fmt.Errorf("unpacking Confirmation data: unexpected transactionHash type %T", values[1])
	}
	amount, ok := values[2].(*big.Int)
	if !ok {
		return HomeEvent{}, fmt.Errorf("unpacking Confirmation data: unexpected amount type %T", values[2])
	}
	recipient, ok := values[3].(common.Address)
	if !ok {
		return HomeEvent{}, fmt.Errorf("unpacking Confirmation data: unexpected recipient type %T", values[3])
	}

	return HomeEvent{
		Kind: HomeEventConfirmation,
		Confirmation: ConfirmationEvent{
			TransferHash:    transferHash,
			TransactionHash: transactionHash,
			Amount:          amount,
			Recipient:       recipient,
			Validator:       common.BytesToAddress(l.Topics[1].Bytes()),
			BlockNumber:     l.BlockNumber,
			LogIndex:        l.Index,
		},
	}, nil
}

func decodeCompletionLog(l types.Log) (HomeEvent, error) {
	values, err := homeBridgeABIObj.Events[CompletionEventName].Inputs.NonIndexed().UnpackValues(l.Data)
	if err != nil {
		return HomeEvent{}, fmt.Errorf("unpacking Completion data: %w", err)
	}
	if len(values) != 1 {
		return HomeEvent{}, fmt.Errorf("unpacking Completion data: expected 1 value, got %d", len(values))
	}
	transferHash, ok := values[0].([32]byte)
	if !ok {
		return HomeEvent{}, fmt.Errorf("unpacking Completion data: unexpected transferHash type %T", values[0])
	}

	return HomeEvent{
		Kind: HomeEventCompletion,
		Completion: CompletionEvent{
			TransferHash: transferHash,
			BlockNumber:  l.BlockNumber,
			LogIndex:     l.Index,
		},
	}, nil
}
