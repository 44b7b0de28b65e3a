// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/veil/wallet"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const (
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testKey      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

func buildConfig(t *testing.T, args ...string) (Config, error) {
	fs := pflag.NewFlagSet("veil", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(append([]string{"--" + EnvFileKey, ""}, args...)))
	v, err := BuildViper(fs)
	require.NoError(t, err)
	return NewConfig(v)
}

func TestDefaults(t *testing.T) {
	require := require.New(t)
	cfg, err := buildConfig(t, "--"+ContractAddressKey, testContract)
	require.NoError(err)

	require.Equal("info", cfg.LogLevel)
	require.Equal(wallet.SepoliaRPCURL, cfg.RPCURL)
	require.Equal(uint64(wallet.SepoliaChainID), cfg.ChainID)
	require.Equal(30*time.Second, cfg.EncryptionTimeout)
	require.Equal(30*time.Second, cfg.OracleInitTimeout)
	require.Equal(2*time.Second, cfg.SettleDelay)
	require.Equal(2*time.Minute, cfg.ReceiptTimeout)
	require.Equal("sepolia", cfg.RelayerNetwork)

	contract, err := cfg.Contract()
	require.NoError(err)
	require.Equal(common.HexToAddress(testContract), contract)
	require.Equal(wallet.Sepolia(), cfg.Network())
}

func TestEnvironmentAndFlags(t *testing.T) {
	require := require.New(t)
	t.Setenv("VEIL_CONTRACT_ADDRESS", testContract)
	t.Setenv("VEIL_SETTLE_DELAY", "1s")
	t.Setenv("VEIL_LOG_LEVEL", "warn")

	cfg, err := buildConfig(t, "--"+LogLevelKey, "debug")
	require.NoError(err)
	require.Equal(time.Second, cfg.SettleDelay)
	// flags win over the environment
	require.Equal("debug", cfg.LogLevel)
}

func TestConfigFile(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "veil.yaml")
	require.NoError(os.WriteFile(path, []byte(
		"contract-address: "+testContract+"\n"+
			"chain-id: 31337\n"+
			"chain-name: Local\n"+
			"rpc-url: http://127.0.0.1:8545\n"+
			"max-base-fee: 100\n",
	), 0o600))

	cfg, err := buildConfig(t, "--"+ConfigFileKey, path)
	require.NoError(err)
	require.Equal(uint64(31337), cfg.ChainID)

	network := cfg.Network()
	require.Equal(uint64(31337), network.ChainID)
	require.Equal("Local", network.Name)
	require.Equal([]string{"http://127.0.0.1:8545"}, network.RPCURLs)
	require.Empty(network.ExplorerURLs)

	require.Equal(big.NewInt(100), cfg.KeySubmitterConfig().MaxBaseFee)
	require.Nil(cfg.KeySubmitterConfig().MaxPriorityFeePerGas)
}

func TestEnvFile(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(os.WriteFile(path, []byte("VEIL_RELAYER_URL=http://relayer.local\n"), 0o600))
	t.Setenv("VEIL_RELAYER_URL", "")
	os.Unsetenv("VEIL_RELAYER_URL")

	require.NoError(LoadEnvFile(path))
	require.Equal("http://relayer.local", os.Getenv("VEIL_RELAYER_URL"))

	require.Error(LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			LogLevel:        "info",
			RPCURL:          wallet.SepoliaRPCURL,
			ChainID:         wallet.SepoliaChainID,
			ContractAddress: testContract,
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing contract",
			mutate:  func(c *Config) { c.ContractAddress = "" },
			wantErr: errNoContract,
		},
		{
			name:    "zero contract",
			mutate:  func(c *Config) { c.ContractAddress = "0x0000000000000000000000000000000000000000" },
			wantErr: errNoContract,
		},
		{
			name:    "malformed contract",
			mutate:  func(c *Config) { c.ContractAddress = "0x1234" },
			wantErr: errInvalidContract,
		},
		{
			name:    "malformed account",
			mutate:  func(c *Config) { c.AccountAddress = "alice" },
			wantErr: errInvalidAccount,
		},
		{
			name:    "missing rpc",
			mutate:  func(c *Config) { c.RPCURL = "" },
			wantErr: errNoRPCURL,
		},
		{
			name:    "missing chain",
			mutate:  func(c *Config) { c.ChainID = 0 },
			wantErr: errNoChainID,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(&cfg)
			err := cfg.Validate()
			if test.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, test.wantErr)
		})
	}

	t.Run("bad log level", func(t *testing.T) {
		cfg := valid()
		cfg.LogLevel = "loud"
		require.Error(t, cfg.Validate())
	})

	t.Run("bad private key", func(t *testing.T) {
		cfg := valid()
		cfg.AccountPrivateKey = "0xzz"
		require.ErrorContains(t, cfg.Validate(), "invalid account-private-key")
	})
}

func TestValidateModes(t *testing.T) {
	require := require.New(t)
	cfg := Config{
		LogLevel:        "info",
		RPCURL:          wallet.SepoliaRPCURL,
		ChainID:         wallet.SepoliaChainID,
		ContractAddress: testContract,
	}
	require.ErrorIs(cfg.ValidateWriter(), errNoSigner)
	require.ErrorIs(cfg.ValidateWatcher(), errNoWSURL)

	cfg.AccountPrivateKey = testKey
	require.NoError(cfg.ValidateWriter())
	require.ErrorIs(cfg.ValidateEncryption(), errNoRelayerURL)

	cfg.RelayerURL = "http://relayer.local"
	require.NoError(cfg.ValidateEncryption())
}
