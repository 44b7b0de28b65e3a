// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"math/big"

	"github.com/luxfi/geth/common/hexutil"
)

const (
	SepoliaChainID     = 11155111
	SepoliaName        = "Sepolia"
	SepoliaRPCURL      = "https://sepolia.drpc.org"
	SepoliaExplorerURL = "https://sepolia.etherscan.io"
)

// NativeCurrency describes the gas token of a network.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Network is the chain every state-changing call must target.
type Network struct {
	ChainID      uint64
	Name         string
	RPCURLs      []string
	ExplorerURLs []string
	Currency     NativeCurrency
}

// Sepolia returns the default required network.
func Sepolia() Network {
	return Network{
		ChainID:      SepoliaChainID,
		Name:         SepoliaName,
		RPCURLs:      []string{SepoliaRPCURL},
		ExplorerURLs: []string{SepoliaExplorerURL},
		Currency: NativeCurrency{
			Name:     "ETH",
			Symbol:   "ETH",
			Decimals: 18,
		},
	}
}

// HexChainID returns the chain ID in the 0x-prefixed form wallets expect.
func (n Network) HexChainID() string {
	return hexutil.EncodeBig(new(big.Int).SetUint64(n.ChainID))
}

// addChainParams is the EIP-3085 parameter object.
type addChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

func (n Network) addChainParams() addChainParams {
	return addChainParams{
		ChainID:           n.HexChainID(),
		ChainName:         n.Name,
		NativeCurrency:    n.Currency,
		RPCURLs:           n.RPCURLs,
		BlockExplorerURLs: n.ExplorerURLs,
	}
}
