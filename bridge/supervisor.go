// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/bridge/chainclient"
)

// queueCapacity sizes the three inter-component channels. It is generous
// rather than tight: back-pressure here only ever slows a fetcher down, it
// never loses an event (sends block until the consumer drains).
const queueCapacity = 256

// SupervisorConfig carries everything the supervisor needs to validate
// setup and wire the six components together. It is built by cmd/bridge
// from config.Config plus dialed chain clients.
type SupervisorConfig struct {
	HomeClient    chainclient.Client
	ForeignClient chainclient.Client

	HomeBridgeContractAddress        common.Address
	ForeignBridgeContractAddress     common.Address
	ForeignChainTokenContractAddress common.Address

	ValidatorPrivateKey *ecdsa.PrivateKey

	HomeChainMaxReorgDepth    uint64
	ForeignChainMaxReorgDepth uint64

	HomeChainStartBlock    uint64
	ForeignChainStartBlock uint64

	HomeChainPollInterval    time.Duration
	ForeignChainPollInterval time.Duration

	HomeChainGasPrice *big.Int
	HomeChainGasLimit uint64

	BalanceWarnThreshold    *big.Int
	BalanceWarnPollInterval time.Duration

	// MetricsAddr is the listen address for the Prometheus exposition
	// endpoint. Empty disables it.
	MetricsAddr string
}

// Supervisor owns the shared stop signal, validates setup, and wires the
// fetcher, planner, sender, and watcher components into one pipeline.
type Supervisor struct {
	cfg              SupervisorConfig
	validatorAddress common.Address
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	return &Supervisor{
		cfg:              cfg,
		validatorAddress: crypto.PubkeyToAddress(cfg.ValidatorPrivateKey.PublicKey),
	}
}

// Run validates the setup, spawns all six components, and blocks until the
// process is stopped by a loss of validator status, an OS signal, or a
// fatal component error -- returning only once teardown (bounded by
// ApplicationCleanupTimeout) has completed.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.checkSetup(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("supervisor: received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	transferQueue := make(chan TransferEvent, queueCapacity)
	homeEventQueue := make(chan HomeEvent, queueCapacity)
	confirmationTaskQueue := make(chan TransferEvent, queueCapacity)

	foreignFetcher := NewEventFetcher(EventFetcherConfig[TransferEvent]{
		Client:           s.cfg.ForeignClient,
		ContractAddress:  s.cfg.ForeignChainTokenContractAddress,
		EventDescriptors: TransferEventDescriptors(s.cfg.ForeignBridgeContractAddress),
		StartBlock:       s.cfg.ForeignChainStartBlock,
		MaxReorgDepth:    s.cfg.ForeignChainMaxReorgDepth,
		PollInterval:     s.cfg.ForeignChainPollInterval,
		OutputQueue:      transferQueue,
		Name:             "foreign",
	})

	homeFetcher := NewEventFetcher(EventFetcherConfig[HomeEvent]{
		Client:           s.cfg.HomeClient,
		ContractAddress:  s.cfg.HomeBridgeContractAddress,
		EventDescriptors: HomeEventDescriptors(s.validatorAddress),
		StartBlock:       s.cfg.HomeChainStartBlock,
		MaxReorgDepth:    s.cfg.HomeChainMaxReorgDepth,
		PollInterval:     s.cfg.HomeChainPollInterval,
		OutputQueue:      homeEventQueue,
		Name:             "home",
	})

	planner := NewConfirmationTaskPlanner(ConfirmationTaskPlannerConfig{
		SyncPersistenceTime:   HomeChainStepDuration,
		TransferEventQueue:    transferQueue,
		HomeBridgeEventQueue:  homeEventQueue,
		ConfirmationTaskQueue: confirmationTaskQueue,
	})

	sender := NewConfirmationSender(ConfirmationSenderConfig{
		Client:                s.cfg.HomeClient,
		HomeBridgeAddress:     s.cfg.HomeBridgeContractAddress,
		PrivateKey:            s.cfg.ValidatorPrivateKey,
		GasPrice:              s.cfg.HomeChainGasPrice,
		GasLimit:              s.cfg.HomeChainGasLimit,
		MaxReorgDepth:         s.cfg.HomeChainMaxReorgDepth,
		PollInterval:          HomeChainStepDuration,
		SanityCheckTransfer: MakeSanityCheckTransfer(
			s.cfg.ForeignChainTokenContractAddress,
			s.cfg.ForeignBridgeContractAddress,
		),
		ConfirmationTaskQueue: confirmationTaskQueue,
	})

	validatorProxyAddress, err := s.resolveValidatorProxy(ctx)
	if err != nil {
		return err
	}

	statusWatcher := NewValidatorStatusWatcher(ValidatorStatusWatcherConfig{
		Client:                  s.cfg.HomeClient,
		ValidatorProxyAddress:   validatorProxyAddress,
		ValidatorAddress:        s.validatorAddress,
		PollInterval:            HomeChainStepDuration,
		StartValidatingCallback: planner.StartValidating,
		StopValidatingCallback:  cancel,
	})

	balanceWatcher := NewValidatorBalanceWatcher(ValidatorBalanceWatcherConfig{
		Client:               s.cfg.HomeClient,
		ValidatorAddress:     s.validatorAddress,
		PollInterval:         s.cfg.BalanceWarnPollInterval,
		BalanceWarnThreshold: s.cfg.BalanceWarnThreshold,
	})

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return foreignFetcher.Run(gctx) })
	group.Go(func() error { return homeFetcher.Run(gctx) })
	group.Go(func() error { return planner.Run(gctx) })
	group.Go(func() error { return sender.Run(gctx) })
	group.Go(func() error { return statusWatcher.Run(gctx) })
	group.Go(func() error { return balanceWatcher.Run(gctx) })
	if s.cfg.MetricsAddr != "" {
		group.Go(func() error { return ServeMetrics(gctx, s.cfg.MetricsAddr) })
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- group.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			log.Error("supervisor: component failed, stopping", "error", err)
			cancel()
		}
		return err
	case <-ctx.Done():
		select {
		case err := <-waitErr:
			return err
		case <-time.After(ApplicationCleanupTimeout):
			log.Error("supervisor: cleanup timeout exceeded, forcing exit")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// checkSetup validates contract existence and the starting balance before
// any component is spawned, so a misconfiguration fails fast instead of
// surfacing as a confusing error deep in a fetcher or sender loop.
func (s *Supervisor) checkSetup(ctx context.Context) error {
	if err := s.validateContractDeployed(ctx, s.cfg.HomeClient, "home bridge", s.cfg.HomeBridgeContractAddress); err != nil {
		return err
	}
	if err := s.validateContractDeployed(ctx, s.cfg.ForeignClient, "foreign bridge token", s.cfg.ForeignChainTokenContractAddress); err != nil {
		return err
	}

	validatorProxyAddress, err := s.resolveValidatorProxy(ctx)
	if err != nil {
		return err
	}
	if err := s.validateContractDeployed(ctx, s.cfg.HomeClient, "validator proxy", validatorProxyAddress); err != nil {
		return fmt.Errorf("serious bridge setup error: the validator proxy contract the home bridge points to does not exist or is not intact: %w", err)
	}

	balance, err := s.cfg.HomeClient.BalanceAt(ctx, s.validatorAddress, nil)
	if err != nil {
		return fmt.Errorf("checking validator balance: %w", err)
	}
	if balance.Cmp(s.cfg.BalanceWarnThreshold) < 0 {
		return fmt.Errorf(
			"the balance of the validator account at address %s on the home chain is only %s wei, "+
				"but at least %s wei are required; either fund this address or configure a lower balance_warn_threshold",
			s.validatorAddress, balance, s.cfg.BalanceWarnThreshold,
		)
	}

	return nil
}

func (s *Supervisor) validateContractDeployed(ctx context.Context, client chainclient.Client, name string, address common.Address) error {
	code, err := client.CodeAt(ctx, address, nil)
	if err != nil {
		return fmt.Errorf("checking %s contract at %s: %w", name, address, err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%s contract at %s has no code: not deployed", name, address)
	}
	return nil
}

// resolveValidatorProxy calls validatorProxy() on the home bridge to find
// the validator-set contract the status watcher polls, rather than taking
// a separate config key.
func (s *Supervisor) resolveValidatorProxy(ctx context.Context) (common.Address, error) {
	calldata, err := homeBridgeABIObj.Pack("validatorProxy")
	if err != nil {
		return common.Address{}, fmt.Errorf("packing validatorProxy calldata: %w", err)
	}
	result, err := s.cfg.HomeClient.CallContract(ctx, callMsg(s.cfg.HomeBridgeContractAddress, calldata), nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("calling validatorProxy: %w", err)
	}
	values, err := homeBridgeABIObj.Unpack("validatorProxy", result)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpacking validatorProxy result: %w", err)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpacking validatorProxy result: unexpected type %T", values[0])
	}
	return addr, nil
}
