// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// bridge-validator watches a foreign chain for token transfers and
// confirms them on a home-chain bridge contract.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/luxfi/geth/common"
	gethlog "github.com/luxfi/geth/log"
	"github.com/luxfi/log"
	"github.com/urfave/cli/v2"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/luxfi/bridge/bridge"
	"github.com/luxfi/bridge/chainclient"
	"github.com/luxfi/bridge/config"
)

const clientIdentifier = "bridge-validator"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "Lux cross-chain bridge validator",
	Version: "1.0.0",
}

func init() {
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to a TOML configuration file (optional; env-only configuration is accepted)",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		gethlog.SetDefault(gethlog.NewLogger(gethlog.NewTerminalHandlerWithLevel(os.Stderr, gethlog.LevelInfo, true)))
		return nil
	}
	app.Action = run
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging)

	ctx := cliCtx.Context

	homeClient, err := chainclient.Dial(ctx, cfg.HomeRPCURL, cfg.HomeRPCTimeout)
	if err != nil {
		return fmt.Errorf("dialing home chain %s: %w", cfg.HomeRPCURL, err)
	}
	foreignClient, err := chainclient.Dial(ctx, cfg.ForeignRPCURL, cfg.ForeignRPCTimeout)
	if err != nil {
		return fmt.Errorf("dialing foreign chain %s: %w", cfg.ForeignRPCURL, err)
	}

	keySource := chainclient.KeySource{
		RawHex:               cfg.ValidatorPrivateKey,
		KeystorePath:         cfg.ValidatorKeystore.KeystorePath,
		KeystorePasswordPath: cfg.ValidatorKeystore.KeystorePasswordPath,
	}
	privateKey, err := chainclient.LoadPrivateKey(keySource)
	if err != nil {
		return err
	}

	gasPrice, _ := cfg.GasPriceWei()
	balanceWarnThreshold, _ := cfg.BalanceWarnThresholdWei()

	supervisor := bridge.NewSupervisor(bridge.SupervisorConfig{
		HomeClient:    homeClient,
		ForeignClient: foreignClient,

		HomeBridgeContractAddress:        common.HexToAddress(cfg.HomeBridgeContractAddress),
		ForeignBridgeContractAddress:     common.HexToAddress(cfg.ForeignBridgeContractAddress),
		ForeignChainTokenContractAddress: common.HexToAddress(cfg.ForeignChainTokenContractAddress),

		ValidatorPrivateKey: privateKey,

		HomeChainMaxReorgDepth:    cfg.HomeChainMaxReorgDepth,
		ForeignChainMaxReorgDepth: cfg.ForeignChainMaxReorgDepth,

		HomeChainStartBlock:    cfg.HomeChainEventFetchStartBlockNumber,
		ForeignChainStartBlock: cfg.ForeignChainEventFetchStartBlockNumber,

		HomeChainPollInterval:    cfg.HomeChainEventPollInterval,
		ForeignChainPollInterval: cfg.ForeignChainEventPollInterval,

		HomeChainGasPrice: gasPrice,
		HomeChainGasLimit: cfg.HomeChainGasLimit,

		BalanceWarnThreshold:    balanceWarnThreshold,
		BalanceWarnPollInterval: cfg.BalanceWarnPollInterval,

		MetricsAddr: cfg.MetricsAddr,
	})

	log.Info("bridge-validator: starting",
		"home_rpc", cfg.HomeRPCURL, "foreign_rpc", cfg.ForeignRPCURL)

	return supervisor.Run(ctx)
}

// setupLogging reconfigures the default logger to also write to a rotating
// file when logging.file_path is set, leaving the terminal handler
// installed in app.Before as the sole backend otherwise.
func setupLogging(cfg config.LoggingConfig) {
	if cfg.FilePath == "" {
		return
	}

	rotatingFile := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}

	var w io.Writer = io.MultiWriter(os.Stderr, rotatingFile)
	gethlog.SetDefault(gethlog.NewLogger(gethlog.NewTerminalHandlerWithLevel(w, gethlog.LevelInfo, false)))
}
