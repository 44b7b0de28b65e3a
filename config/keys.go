// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	EnvFileKey    = "env-file"

	// Environment variable prefix; VEIL_RPC_URL sets rpc-url
	EnvPrefix = "VEIL"

	// Top-level configuration keys
	LogLevelKey             = "log-level"
	RPCURLKey               = "rpc-url"
	WSURLKey                = "ws-url"
	WalletURLKey            = "wallet-url"
	RelayerURLKey           = "relayer-url"
	RelayerNetworkKey       = "relayer-network"
	ContractAddressKey      = "contract-address"
	ChainIDKey              = "chain-id"
	ChainNameKey            = "chain-name"
	ExplorerURLKey          = "explorer-url"
	AccountPrivateKeyKey    = "account-private-key"
	AccountAddressKey       = "account-address"
	EncryptionTimeoutKey    = "encryption-timeout"
	OracleInitTimeoutKey    = "oracle-init-timeout"
	SettleDelayKey          = "settle-delay"
	ReceiptTimeoutKey       = "receipt-timeout"
	MaxBaseFeeKey           = "max-base-fee"
	MaxPriorityFeePerGasKey = "max-priority-fee-per-gas"
	MetricsPortKey          = "metrics-port"
)
