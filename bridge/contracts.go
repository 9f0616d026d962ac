// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"strings"

	geth "github.com/luxfi/geth"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

// minimalERC20TokenABI carries only the Transfer event: the fetcher never
// calls methods on the foreign token, it only filters its logs.
const minimalERC20TokenABI = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	],"name":"Transfer","type":"event"}
]`

// homeBridgeABI carries the events and methods this validator needs from
// the home bridge contract: the Confirmation/Completion events it watches,
// the confirmTransfer method it calls, and the validatorProxy accessor used
// at startup to resolve the validator-set contract.
const homeBridgeABI = `[
	{"anonymous":false,"inputs":[
		{"indexed":false,"name":"transferHash","type":"bytes32"},
		{"indexed":false,"name":"transactionHash","type":"bytes32"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"recipient","type":"address"},
		{"indexed":true,"name":"validator","type":"address"}
	],"name":"Confirmation","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"name":"transferHash","type":"bytes32"}
	],"name":"Completion","type":"event"},
	{"constant":false,"inputs":[
		{"name":"transferHash","type":"bytes32"},
		{"name":"transactionHash","type":"bytes32"},
		{"name":"amount","type":"uint256"},
		{"name":"recipient","type":"address"}
	],"name":"confirmTransfer","outputs":[],"type":"function"},
	{"constant":true,"inputs":[],"name":"validatorProxy","outputs":[
		{"name":"","type":"address"}
	],"type":"function"}
]`

// validatorProxyABI carries the single membership accessor the status
// watcher polls.
const validatorProxyABI = `[
	{"constant":true,"inputs":[
		{"name":"validator","type":"address"}
	],"name":"isValidator","outputs":[
		{"name":"","type":"bool"}
	],"type":"function"}
]`

// mustParseABI parses a fixed ABI literal at init time: any failure here
// is a programming error, not an operator error, so it panics rather than
// threading an error return through every package-level var.
func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("bridge: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

var (
	erc20TokenABI        = mustParseABI(minimalERC20TokenABI)
	homeBridgeABIObj     = mustParseABI(homeBridgeABI)
	validatorProxyABIObj = mustParseABI(validatorProxyABI)

	transferEventID     = erc20TokenABI.Events[TransferEventName].ID
	confirmationEventID = homeBridgeABIObj.Events[ConfirmationEventName].ID
	completionEventID   = homeBridgeABIObj.Events[CompletionEventName].ID
)

// callMsg builds a read-only call against a target contract from
// pre-packed calldata.
func callMsg(to common.Address, data []byte) geth.CallMsg {
	return geth.CallMsg{To: &to, Data: data}
}
