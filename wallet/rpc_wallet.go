// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/rpc"
)

// unrecognizedChainCode is the EIP-3326 error code for an unknown chain.
const unrecognizedChainCode = 4902

var (
	_ NetworkSwitcher = (*RPCWallet)(nil)

	ErrNoAccounts = errors.New("wallet exposes no accounts")
)

// Caller issues JSON-RPC calls. *rpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// TransactionArgs are the eth_sendTransaction parameters.
type TransactionArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data"`
}

// RPCWallet is a wallet session reached over JSON-RPC. The wallet holds the
// keys and the notion of the active chain.
type RPCWallet struct {
	client Caller
}

// Dial connects to the wallet endpoint at url.
func Dial(ctx context.Context, url string) (*RPCWallet, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet: %w", err)
	}
	return NewRPCWallet(client), nil
}

func NewRPCWallet(client Caller) *RPCWallet {
	return &RPCWallet{client: client}
}

func (w *RPCWallet) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := w.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (w *RPCWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	params := map[string]string{
		"chainId": hexutil.EncodeUint64(chainID),
	}
	var result interface{}
	err := w.client.CallContext(ctx, &result, "wallet_switchEthereumChain", params)
	if err != nil && isUnrecognizedChain(err) {
		return fmt.Errorf("%w: %w", ErrUnrecognizedChain, err)
	}
	return err
}

func (w *RPCWallet) AddChain(ctx context.Context, network Network) error {
	var result interface{}
	return w.client.CallContext(ctx, &result, "wallet_addEthereumChain", network.addChainParams())
}

// Account returns the first account the wallet exposes.
func (w *RPCWallet) Account(ctx context.Context) (common.Address, error) {
	var accounts []common.Address
	if err := w.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	return accounts[0], nil
}

// SendTransaction asks the wallet to sign and broadcast a transaction.
func (w *RPCWallet) SendTransaction(ctx context.Context, args TransactionArgs) (common.Hash, error) {
	var hash common.Hash
	if err := w.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// isUnrecognizedChain detects EIP-3326 code 4902. Some wallets wrap it in an
// internal error and carry the original code in the error data.
func isUnrecognizedChain(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == unrecognizedChainCode {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(map[string]interface{}); ok {
			if original, ok := data["originalError"].(map[string]interface{}); ok {
				if code, ok := original["code"].(float64); ok && int(code) == unrecognizedChainCode {
					return true
				}
			}
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unrecognized chain id")
}
