// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/bridge/chainclient"
)

// ErrSanityCheckFailed is returned by a SanityCheckTransfer implementation
// when a transfer does not match the configured foreign token/bridge pair.
// It is always fatal: continuing would either waste gas or credit the
// wrong party.
var ErrSanityCheckFailed = errors.New("bridge: transfer sanity check failed")

// SanityCheckTransfer validates a transfer before a confirmation is built
// for it. MakeSanityCheckTransfer below builds the standard check; tests
// may substitute their own.
type SanityCheckTransfer func(TransferEvent) error

// MakeSanityCheckTransfer returns a sanity check requiring the transfer's
// token address to match the configured foreign token, its recipient (the
// bridge account credited by the lock) to match the configured foreign
// bridge, and its value to be positive. The fetcher already filters by
// both contract address and "to" topic, so in practice this only ever
// trips on a misconfiguration -- wrong token deployed at the configured
// address, or a bridge pointed at the wrong chain.
func MakeSanityCheckTransfer(foreignTokenAddress, foreignBridgeAddress common.Address) SanityCheckTransfer {
	return func(t TransferEvent) error {
		if t.TokenAddress != foreignTokenAddress {
			return fmt.Errorf("%w: token address %s does not match configured %s",
				ErrSanityCheckFailed, t.TokenAddress, foreignTokenAddress)
		}
		if t.Recipient != foreignBridgeAddress {
			return fmt.Errorf("%w: transfer recipient %s does not match configured bridge %s",
				ErrSanityCheckFailed, t.Recipient, foreignBridgeAddress)
		}
		if t.Value == nil || t.Value.Sign() <= 0 {
			return fmt.Errorf("%w: non-positive value %v", ErrSanityCheckFailed, t.Value)
		}
		return nil
	}
}

// ConfirmationSenderConfig configures a ConfirmationSender.
type ConfirmationSenderConfig struct {
	Client                chainclient.Client
	HomeBridgeAddress     common.Address
	PrivateKey            *ecdsa.PrivateKey
	GasPrice              *big.Int
	GasLimit              uint64
	MaxReorgDepth         uint64
	PollInterval          time.Duration
	SanityCheckTransfer   SanityCheckTransfer
	ConfirmationTaskQueue <-chan TransferEvent
}

// ConfirmationSender signs, submits and finality-tracks confirmation
// transactions, managing nonces locally once seeded from the chain.
type ConfirmationSender struct {
	cfg     ConfirmationSenderConfig
	address common.Address
	signer  types.Signer

	nextNonce atomic.Uint64
	pending   pendingQueue
	retry     chan PendingTx
}

// NewConfirmationSender constructs a sender. The account's current on-chain
// nonce is fetched lazily, on the first call to Run.
func NewConfirmationSender(cfg ConfirmationSenderConfig) *ConfirmationSender {
	return &ConfirmationSender{
		cfg:     cfg,
		address: crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		retry:   make(chan PendingTx, 64),
	}
}

// Run seeds the nonce counter and drives the build and watch loops until
// ctx is cancelled or either loop returns a fatal error.
func (s *ConfirmationSender) Run(ctx context.Context) error {
	chainID, err := s.cfg.Client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("fetching home chain id: %w", err)
	}
	s.signer = types.LatestSignerForChainID(chainID)

	startNonce, err := s.cfg.Client.NonceAt(ctx, s.address, nil)
	if err != nil {
		return fmt.Errorf("fetching starting nonce for %s: %w", s.address, err)
	}
	s.nextNonce.Store(startNonce)
	log.Info("confirmation sender: starting", "validator", s.address, "nonce", startNonce)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.buildLoop(ctx) })
	group.Go(func() error { return s.watchLoop(ctx) })
	return group.Wait()
}

// buildLoop consumes transfer tasks (new ones from ConfirmationTaskQueue,
// and resubmissions from the watch loop's retry channel) and turns each
// into a signed, submitted confirmation transaction. It stops accepting new
// tasks as soon as ctx is cancelled, completing whatever submission is
// already in flight.
func (s *ConfirmationSender) buildLoop(ctx context.Context) error {
	for {
		var (
			transfer TransferEvent
			nonce    uint64
			isRetry  bool
		)

		select {
		case <-ctx.Done():
			return nil
		case pending := <-s.retry:
			transfer, nonce, isRetry = pending.Transfer, pending.Nonce, true
		case transfer = <-s.cfg.ConfirmationTaskQueue:
			nonce = s.nextNonce.Add(1) - 1
		}

		if !isRetry {
			if err := s.cfg.SanityCheckTransfer(transfer); err != nil {
				return err // fatal
			}
		}

		if err := s.submit(ctx, transfer, nonce); err != nil {
			return err
		}
	}
}

// submit signs and sends the confirmTransfer call for transfer at nonce,
// retrying on any RPC error except "known transaction", which is treated
// as success: the nonce is considered consumed either way.
func (s *ConfirmationSender) submit(ctx context.Context, transfer TransferEvent, nonce uint64) error {
	tx, err := s.prepareConfirmationTransaction(transfer, nonce)
	if err != nil {
		return fmt.Errorf("preparing confirmation transaction for %s: %w", transfer.TransferHash(), err)
	}

	for {
		err := s.cfg.Client.SendTransaction(ctx, tx)
		if err == nil || isKnownTransaction(err) {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.PollInterval):
		}
	}

	head, err := s.cfg.Client.BlockNumber(ctx)
	for err != nil {
		// The transaction is already submitted; a transient head lookup
		// failure just delays when the watch loop starts counting its
		// grace period, it does not affect correctness.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.PollInterval):
		}
		head, err = s.cfg.Client.BlockNumber(ctx)
	}

	s.pending.push(PendingTx{
		TxHash:          tx.Hash(),
		Nonce:           nonce,
		TransferHash:    transfer.TransferHash(),
		Transfer:        transfer,
		SubmittedHeight: head,
	})
	confirmationsSubmitted.Inc(1)
	pendingTransactionQueueDepth.Update(int64(s.pending.len()))
	return nil
}

func (s *ConfirmationSender) prepareConfirmationTransaction(transfer TransferEvent, nonce uint64) (*types.Transaction, error) {
	// The minted home asset goes to the foreign-chain sender, not to the
	// "to" address (which is always the bridge account).
	calldata, err := homeBridgeABIObj.Pack("confirmTransfer",
		transfer.TransferHash(),
		transfer.TransactionHash,
		transfer.Value,
		transfer.Sender,
	)
	if err != nil {
		return nil, fmt.Errorf("packing confirmTransfer calldata: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.cfg.HomeBridgeAddress,
		Value:    big.NewInt(0),
		Gas:      s.cfg.GasLimit,
		GasPrice: s.cfg.GasPrice,
		Data:     calldata,
	})

	return types.SignTx(tx, s.signer, s.cfg.PrivateKey)
}

// watchLoop polls for receipts of the pending transaction at the front of
// the queue, waits out max_reorg_depth past inclusion, and requeues
// transactions that sat too long without a receipt.
func (s *ConfirmationSender) watchLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pending, ok := s.pending.peekFront()
		if !ok {
			continue
		}

		head, err := s.cfg.Client.BlockNumber(ctx)
		if err != nil {
			log.Warn("confirmation sender: failed to fetch head block number", "error", err)
			continue
		}

		receipt, err := s.cfg.Client.TransactionReceipt(ctx, pending.TxHash)
		if err != nil || receipt == nil {
			gracePeriod := confirmationGracePeriodSteps * s.cfg.MaxReorgDepth
			if pending.SubmittedHeight > 0 && head > pending.SubmittedHeight+gracePeriod {
				log.Warn("confirmation sender: no receipt within grace period, resubmitting",
					"hash", pending.TxHash, "nonce", pending.Nonce)
				s.pending.popFront(pending.Nonce)
				pendingTransactionQueueDepth.Update(int64(s.pending.len()))
				confirmationsResubmitted.Inc(1)
				select {
				case s.retry <- pending:
				case <-ctx.Done():
					return nil
				}
			}
			continue
		}

		if head < receipt.BlockNumber.Uint64()+s.cfg.MaxReorgDepth {
			continue
		}

		log.Info("Transaction confirmed: " + receipt.TxHash.String())
		s.pending.popFront(pending.Nonce)
		pendingTransactionQueueDepth.Update(int64(s.pending.len()))
		confirmationsConfirmed.Inc(1)
	}
}

func isKnownTransaction(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "known transaction")
}
