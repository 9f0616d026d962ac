// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads and validates the bridge validator's TOML
// configuration, with environment-variable overrides, using
// github.com/spf13/viper the way the rest of the ecosystem does.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/viper"
)

const envPrefix = "BRIDGE"

// KeystoreKey names an encrypted keystore file and its password file, the
// alternative to supplying validator_private_key as raw hex.
type KeystoreKey struct {
	KeystorePath         string `mapstructure:"keystore_path"`
	KeystorePasswordPath string `mapstructure:"keystore_password_path"`
}

// Config mirrors every recognized TOML key 1:1.
type Config struct {
	HomeRPCURL       string        `mapstructure:"home_rpc_url"`
	HomeRPCTimeout   time.Duration `mapstructure:"home_rpc_timeout"`
	ForeignRPCURL    string        `mapstructure:"foreign_rpc_url"`
	ForeignRPCTimeout time.Duration `mapstructure:"foreign_rpc_timeout"`

	HomeBridgeContractAddress       string `mapstructure:"home_bridge_contract_address"`
	ForeignBridgeContractAddress    string `mapstructure:"foreign_bridge_contract_address"`
	ForeignChainTokenContractAddress string `mapstructure:"foreign_chain_token_contract_address"`

	ValidatorPrivateKey string      `mapstructure:"validator_private_key"`
	ValidatorKeystore   KeystoreKey `mapstructure:"validator_keystore"`

	HomeChainMaxReorgDepth    uint64 `mapstructure:"home_chain_max_reorg_depth"`
	ForeignChainMaxReorgDepth uint64 `mapstructure:"foreign_chain_max_reorg_depth"`

	HomeChainEventFetchStartBlockNumber    uint64 `mapstructure:"home_chain_event_fetch_start_block_number"`
	ForeignChainEventFetchStartBlockNumber uint64 `mapstructure:"foreign_chain_event_fetch_start_block_number"`

	HomeChainEventPollInterval    time.Duration `mapstructure:"home_chain_event_poll_interval"`
	ForeignChainEventPollInterval time.Duration `mapstructure:"foreign_chain_event_poll_interval"`

	HomeChainGasPrice string `mapstructure:"home_chain_gas_price"`
	HomeChainGasLimit uint64 `mapstructure:"home_chain_gas_limit"`

	BalanceWarnThreshold    string        `mapstructure:"balance_warn_threshold"`
	BalanceWarnPollInterval time.Duration `mapstructure:"balance_warn_poll_interval"`

	MetricsAddr string `mapstructure:"metrics_addr"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig is the "logging" sub-table; opaque to the rest of the
// core pipeline, consumed only at startup to set up the log backend.
type LoggingConfig struct {
	// FilePath, if set, tees logs into a rotating file via lumberjack in
	// addition to the terminal.
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// setDefaults applies sensible defaults for keys that may be omitted from
// the TOML file and have no environment override set.
func setDefaults(v *viper.Viper) {
	v.SetDefault("home_rpc_timeout", 180*time.Second)
	v.SetDefault("foreign_rpc_timeout", 180*time.Second)
	v.SetDefault("home_chain_event_poll_interval", 15*time.Second)
	v.SetDefault("foreign_chain_event_poll_interval", 15*time.Second)
	v.SetDefault("home_chain_gas_limit", uint64(200_000))
	v.SetDefault("balance_warn_poll_interval", 60*time.Second)
	v.SetDefault("metrics_addr", ":6060")
}

// Load reads path (if non-empty) as TOML, applies defaults, and overlays
// environment variables of the form BRIDGE_<UPPERCASED_KEY> -- any key may
// be overridden this way. path may be empty to support env-only
// configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// AutomaticEnv only consults the environment for keys viper already
	// knows, so keys without a default are bound explicitly.
	for _, key := range []string{
		"home_rpc_url", "foreign_rpc_url", "home_bridge_contract_address",
		"foreign_bridge_contract_address", "foreign_chain_token_contract_address",
		"validator_private_key", "validator_keystore.keystore_path", "validator_keystore.keystore_password_path",
		"home_chain_max_reorg_depth", "foreign_chain_max_reorg_depth",
		"home_chain_event_fetch_start_block_number", "foreign_chain_event_fetch_start_block_number",
		"home_chain_gas_price", "balance_warn_threshold",
		"logging.file_path", "logging.max_size_mb", "logging.max_backups", "logging.max_age_days",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for missing/invalid keys, bad addresses, and negative
// thresholds. It does not attempt any network I/O; reachability of the
// configured RPC URLs is checked by chainclient.Dial at startup.
func (c *Config) Validate() error {
	if c.HomeRPCURL == "" {
		return fmt.Errorf("config: home_rpc_url is required")
	}
	if c.ForeignRPCURL == "" {
		return fmt.Errorf("config: foreign_rpc_url is required")
	}

	for name, addr := range map[string]string{
		"home_bridge_contract_address":         c.HomeBridgeContractAddress,
		"foreign_bridge_contract_address":      c.ForeignBridgeContractAddress,
		"foreign_chain_token_contract_address": c.ForeignChainTokenContractAddress,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: %s is not a valid address: %q", name, addr)
		}
	}

	if c.ValidatorPrivateKey == "" && (c.ValidatorKeystore.KeystorePath == "" || c.ValidatorKeystore.KeystorePasswordPath == "") {
		return fmt.Errorf("config: either validator_private_key or validator_keystore.{keystore_path,keystore_password_path} must be set")
	}
	if c.ValidatorPrivateKey != "" && (c.ValidatorKeystore.KeystorePath != "" || c.ValidatorKeystore.KeystorePasswordPath != "") {
		return fmt.Errorf("config: set only one of validator_private_key and validator_keystore")
	}

	if c.HomeChainMaxReorgDepth == 0 {
		return fmt.Errorf("config: home_chain_max_reorg_depth must be positive")
	}
	if c.ForeignChainMaxReorgDepth == 0 {
		return fmt.Errorf("config: foreign_chain_max_reorg_depth must be positive")
	}

	gasPrice, ok := c.GasPriceWei()
	if !ok || gasPrice.Sign() <= 0 {
		return fmt.Errorf("config: home_chain_gas_price must be a positive integer in wei, got %q", c.HomeChainGasPrice)
	}

	threshold, ok := c.BalanceWarnThresholdWei()
	if !ok || threshold.Sign() < 0 {
		return fmt.Errorf("config: balance_warn_threshold must be a non-negative integer in wei, got %q", c.BalanceWarnThreshold)
	}

	return nil
}

// GasPriceWei parses HomeChainGasPrice as a base-10 wei amount.
func (c *Config) GasPriceWei() (*big.Int, bool) {
	return new(big.Int).SetString(c.HomeChainGasPrice, 10)
}

// BalanceWarnThresholdWei parses BalanceWarnThreshold as a base-10 wei amount.
func (c *Config) BalanceWarnThresholdWei() (*big.Int, bool) {
	return new(big.Int).SetString(c.BalanceWarnThreshold, 10)
}
