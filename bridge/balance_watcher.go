// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"math/big"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/chainclient"
)

// ValidatorBalanceWatcherConfig configures the balance watcher.
type ValidatorBalanceWatcherConfig struct {
	Client               chainclient.Client
	ValidatorAddress     common.Address
	PollInterval         time.Duration
	BalanceWarnThreshold *big.Int
}

// ValidatorBalanceWatcher polls the validator's home-chain balance and logs
// a WARN whenever it drops below BalanceWarnThreshold, suppressing repeat
// warnings within the same low-balance episode.
type ValidatorBalanceWatcher struct {
	cfg    ValidatorBalanceWatcherConfig
	warned bool
}

func NewValidatorBalanceWatcher(cfg ValidatorBalanceWatcherConfig) *ValidatorBalanceWatcher {
	return &ValidatorBalanceWatcher{cfg: cfg}
}

// Run polls the balance every PollInterval until ctx is cancelled. It never
// returns a non-nil error: balance monitoring is purely advisory and never
// blocks or stops the pipeline.
func (w *ValidatorBalanceWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		w.tick(ctx)
	}
}

// tick fetches the current balance once and updates the warn state. Split
// out of Run so a test can drive it synchronously instead of racing a
// background goroutine.
func (w *ValidatorBalanceWatcher) tick(ctx context.Context) {
	balance, err := w.cfg.Client.BalanceAt(ctx, w.cfg.ValidatorAddress, nil)
	if err != nil {
		log.Warn("validator balance watcher: failed to fetch balance", "error", err)
		return
	}

	validatorBalanceWei.Update(balance.Int64())

	low := balance.Cmp(w.cfg.BalanceWarnThreshold) < 0
	switch {
	case low && !w.warned:
		w.warned = true
		log.Warn("validator balance is below warning threshold",
			"validator", w.cfg.ValidatorAddress, "balance", balance, "threshold", w.cfg.BalanceWarnThreshold)
	case !low && w.warned:
		w.warned = false
	}
}
