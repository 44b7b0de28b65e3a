// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/veil/vms/evm"
	"github.com/luxfi/veil/vms/evm/signer"
	"github.com/luxfi/veil/wallet"
	"go.uber.org/zap/zapcore"
)

var (
	errNoContract      = errors.New("contract address not configured")
	errInvalidContract = errors.New("invalid contract address")
	errInvalidAccount  = errors.New("invalid account address")
	errNoRPCURL        = errors.New("rpc-url not set")
	errNoChainID       = errors.New("chain-id not set")
	errNoRelayerURL    = errors.New("relayer-url not set")
	errNoSigner        = errors.New("either wallet-url or account-private-key must be set")
	errNoWSURL         = errors.New("ws-url not set")
)

// Config is the process configuration. Keys match the constants in keys.go.
type Config struct {
	LogLevel             string        `mapstructure:"log-level" json:"log-level"`
	RPCURL               string        `mapstructure:"rpc-url" json:"rpc-url"`
	WSURL                string        `mapstructure:"ws-url" json:"ws-url"`
	WalletURL            string        `mapstructure:"wallet-url" json:"wallet-url"`
	RelayerURL           string        `mapstructure:"relayer-url" json:"relayer-url"`
	RelayerNetwork       string        `mapstructure:"relayer-network" json:"relayer-network"`
	ContractAddress      string        `mapstructure:"contract-address" json:"contract-address"`
	ChainID              uint64        `mapstructure:"chain-id" json:"chain-id"`
	ChainName            string        `mapstructure:"chain-name" json:"chain-name"`
	ExplorerURL          string        `mapstructure:"explorer-url" json:"explorer-url"`
	AccountPrivateKey    string        `mapstructure:"account-private-key" json:"account-private-key"`
	AccountAddress       string        `mapstructure:"account-address" json:"account-address"`
	EncryptionTimeout    time.Duration `mapstructure:"encryption-timeout" json:"encryption-timeout"`
	OracleInitTimeout    time.Duration `mapstructure:"oracle-init-timeout" json:"oracle-init-timeout"`
	SettleDelay          time.Duration `mapstructure:"settle-delay" json:"settle-delay"`
	ReceiptTimeout       time.Duration `mapstructure:"receipt-timeout" json:"receipt-timeout"`
	MaxBaseFee           uint64        `mapstructure:"max-base-fee" json:"max-base-fee"`
	MaxPriorityFeePerGas uint64        `mapstructure:"max-priority-fee-per-gas" json:"max-priority-fee-per-gas"`
	MetricsPort          uint16        `mapstructure:"metrics-port" json:"metrics-port"`
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.RPCURL == "" {
		return errNoRPCURL
	}
	if c.ChainID == 0 {
		return errNoChainID
	}
	if _, err := c.Contract(); err != nil {
		return err
	}
	if c.AccountAddress != "" && !common.IsHexAddress(c.AccountAddress) {
		return fmt.Errorf("%w: %q", errInvalidAccount, c.AccountAddress)
	}
	if c.AccountPrivateKey != "" {
		if _, err := signer.NewTxSigner(c.AccountPrivateKey); err != nil {
			return fmt.Errorf("invalid account-private-key: %w", err)
		}
	}
	return nil
}

// ValidateWriter additionally checks the settings needed to submit
// transactions.
func (c *Config) ValidateWriter() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.WalletURL == "" && c.AccountPrivateKey == "" {
		return errNoSigner
	}
	return nil
}

// ValidateEncryption checks the settings needed to send messages.
func (c *Config) ValidateEncryption() error {
	if err := c.ValidateWriter(); err != nil {
		return err
	}
	if c.RelayerURL == "" {
		return errNoRelayerURL
	}
	return nil
}

// ValidateWatcher checks the settings needed to follow new heads.
func (c *Config) ValidateWatcher() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.WSURL == "" {
		return errNoWSURL
	}
	return nil
}

// Contract returns the configured ledger contract address.
func (c *Config) Contract() (common.Address, error) {
	if c.ContractAddress == "" {
		return common.Address{}, errNoContract
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return common.Address{}, fmt.Errorf("%w: %q", errInvalidContract, c.ContractAddress)
	}
	address := common.HexToAddress(c.ContractAddress)
	if address == (common.Address{}) {
		return common.Address{}, errNoContract
	}
	return address, nil
}

// Network describes the required network. Unset metadata falls back to
// Sepolia's when the chain is Sepolia.
func (c *Config) Network() wallet.Network {
	network := wallet.Sepolia()
	if c.ChainID != wallet.SepoliaChainID {
		network = wallet.Network{
			ChainID:  c.ChainID,
			Currency: network.Currency,
		}
	}
	if c.ChainName != "" {
		network.Name = c.ChainName
	}
	if c.RPCURL != "" {
		network.RPCURLs = []string{c.RPCURL}
	}
	if c.ExplorerURL != "" {
		network.ExplorerURLs = []string{c.ExplorerURL}
	}
	return network
}

func (c *Config) KeySubmitterConfig() evm.KeySubmitterConfig {
	cfg := evm.KeySubmitterConfig{ReceiptTimeout: c.ReceiptTimeout}
	if c.MaxBaseFee > 0 {
		cfg.MaxBaseFee = new(big.Int).SetUint64(c.MaxBaseFee)
	}
	if c.MaxPriorityFeePerGas > 0 {
		cfg.MaxPriorityFeePerGas = new(big.Int).SetUint64(c.MaxPriorityFeePerGas)
	}
	return cfg
}
