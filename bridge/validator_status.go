// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/chainclient"
)

// validatorStatus is the watcher's three-state machine.
type validatorStatus uint8

const (
	statusUnknown validatorStatus = iota
	statusActive
	statusInactive
)

// ValidatorStatusWatcherConfig wires the watcher to the validator-proxy
// contract and the two callbacks it drives.
type ValidatorStatusWatcherConfig struct {
	Client                  chainclient.Client
	ValidatorProxyAddress   common.Address
	ValidatorAddress        common.Address
	PollInterval            time.Duration
	StartValidatingCallback func()
	StopValidatingCallback  func()
}

// ValidatorStatusWatcher polls validator-set membership: the first
// observed "is validator" starts the confirmation pipeline, and losing
// membership afterwards is treated as fatal and stops it.
type ValidatorStatusWatcher struct {
	cfg    ValidatorStatusWatcherConfig
	status validatorStatus
}

func NewValidatorStatusWatcher(cfg ValidatorStatusWatcherConfig) *ValidatorStatusWatcher {
	return &ValidatorStatusWatcher{cfg: cfg, status: statusUnknown}
}

// Run polls is_validator(address) every PollInterval until ctx is cancelled
// or the validator is observed to have lost membership, in which case it
// invokes StopValidatingCallback and returns.
func (w *ValidatorStatusWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		stopped, err := w.tick(ctx)
		if err != nil {
			log.Warn("validator status watcher: transient error, retrying next tick", "error", err)
			continue
		}
		if stopped {
			return nil
		}
	}
}

// tick fetches validator-set membership once and advances the state
// machine, reporting whether the watcher should now stop. Split out of
// Run so a test can drive it synchronously instead of racing a
// background goroutine.
func (w *ValidatorStatusWatcher) tick(ctx context.Context) (stopped bool, err error) {
	isValidator, err := w.isValidator(ctx)
	if err != nil {
		return false, err
	}

	switch {
	case isValidator && w.status == statusUnknown:
		w.status = statusActive
		log.Info("validator status watcher: activated", "validator", w.cfg.ValidatorAddress)
		w.cfg.StartValidatingCallback()
	case !isValidator && w.status == statusActive:
		w.status = statusInactive
		log.Error("validator status watcher: lost validator status, stopping", "validator", w.cfg.ValidatorAddress)
		w.cfg.StopValidatingCallback()
		return true, nil
	}
	return false, nil
}

func (w *ValidatorStatusWatcher) isValidator(ctx context.Context) (bool, error) {
	calldata, err := validatorProxyABIObj.Pack("isValidator", w.cfg.ValidatorAddress)
	if err != nil {
		return false, fmt.Errorf("packing isValidator calldata: %w", err)
	}

	result, err := w.cfg.Client.CallContract(ctx, callMsg(w.cfg.ValidatorProxyAddress, calldata), nil)
	if err != nil {
		return false, fmt.Errorf("calling isValidator: %w", err)
	}

	values, err := validatorProxyABIObj.Unpack("isValidator", result)
	if err != nil {
		return false, fmt.Errorf("unpacking isValidator result: %w", err)
	}
	isValidator, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unpacking isValidator result: unexpected type %T", values[0])
	}
	return isValidator, nil
}
