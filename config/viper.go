// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/luxfi/veil/crypto/fhe"
	"github.com/luxfi/veil/vms/evm"
	"github.com/luxfi/veil/wallet"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultLogLevel       = "info"
	defaultRelayerNetwork = "sepolia"
	defaultEnvFile        = ".env"
	defaultMetricsPort    = 0
)

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// AddFlags registers every configuration key on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Path to a JSON or YAML config file")
	fs.String(EnvFileKey, defaultEnvFile, "Path to a .env file loaded before reading the environment")
	fs.String(LogLevelKey, defaultLogLevel, "Log level (debug, info, warn, error)")
	fs.String(RPCURLKey, wallet.SepoliaRPCURL, "Read-only JSON-RPC endpoint of the required network")
	fs.String(WSURLKey, "", "Websocket endpoint used to follow new heads")
	fs.String(WalletURLKey, "", "JSON-RPC endpoint of the wallet session")
	fs.String(RelayerURLKey, "", "JSON-RPC endpoint of the encryption relayer")
	fs.String(RelayerNetworkKey, defaultRelayerNetwork, "Relayer network configuration name")
	fs.String(ContractAddressKey, "", "Address of the ledger contract")
	fs.Uint64(ChainIDKey, wallet.SepoliaChainID, "Chain ID of the required network")
	fs.String(ChainNameKey, "", "Display name of the required network")
	fs.String(ExplorerURLKey, "", "Block explorer of the required network")
	fs.String(AccountPrivateKeyKey, "", "Hex private key; signs transactions locally instead of through a wallet")
	fs.String(AccountAddressKey, "", "Account to act as when using a wallet")
	fs.Duration(EncryptionTimeoutKey, fhe.DefaultEncryptionTimeout, "Maximum wait for the relayer to encrypt a message")
	fs.Duration(OracleInitTimeoutKey, fhe.DefaultInitTimeout, "Maximum wait for the relayer SDK to initialize")
	fs.Duration(SettleDelayKey, wallet.DefaultSettleDelay, "Wait after a network switch before continuing")
	fs.Duration(ReceiptTimeoutKey, evm.DefaultReceiptTimeout, "Maximum wait for a transaction receipt")
	fs.Uint64(MaxBaseFeeKey, 0, "Maximum base fee in wei; defaults to 3x the current base fee")
	fs.Uint64(MaxPriorityFeePerGasKey, 0, "Maximum priority fee per gas in wei")
	fs.Uint16(MetricsPortKey, defaultMetricsPort, "Port serving Prometheus metrics; 0 disables")
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables already set. A missing default file is not an
// error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) && path == defaultEnvFile {
		return nil
	}
	return err
}

// BuildViper builds the viper instance. All config keys may be provided via
// flag, environment variable or config file.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if err := LoadEnvFile(v.GetString(EnvFileKey)); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	if filename := v.GetString(ConfigFileKey); filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType(configType(filename))
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func configType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(RPCURLKey, wallet.SepoliaRPCURL)
	v.SetDefault(RelayerNetworkKey, defaultRelayerNetwork)
	v.SetDefault(ChainIDKey, wallet.SepoliaChainID)
	v.SetDefault(EncryptionTimeoutKey, fhe.DefaultEncryptionTimeout)
	v.SetDefault(OracleInitTimeoutKey, fhe.DefaultInitTimeout)
	v.SetDefault(SettleDelayKey, wallet.DefaultSettleDelay)
	v.SetDefault(ReceiptTimeoutKey, evm.DefaultReceiptTimeout)
	v.SetDefault(MetricsPortKey, defaultMetricsPort)
}

// BuildConfig constructs the config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment variables
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}
