// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainclient defines the chain-RPC transport the bridge core
// consumes -- block number, log filtering, raw transaction submission,
// receipt lookup, balance queries and contract calls -- and a concrete
// implementation backed by github.com/luxfi/geth/ethclient.
package chainclient

import (
	"context"
	"math/big"
	"time"

	geth "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/ethclient"
)

// Client is the minimal chain-RPC surface every bridge component needs.
// It is satisfied by *ethclient.Client and by test fakes.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query geth.FilterQuery) ([]types.Log, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CallContract(ctx context.Context, call geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// ethClient wraps *ethclient.Client to pin it to the Client interface; kept
// as a named type (rather than using *ethclient.Client directly) so call
// sites depend only on the interface above.
type ethClient struct {
	*ethclient.Client
}

// Dial connects to a chain's JSON-RPC endpoint with the given timeout,
// wrapping construction of the underlying RPC client behind a single
// constructor.
func Dial(ctx context.Context, url string, timeout time.Duration) (Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := ethclient.DialContext(dialCtx, url)
	if err != nil {
		return nil, err
	}
	return ethClient{c}, nil
}
