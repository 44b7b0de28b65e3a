// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

var (
	_ NetworkSwitcher = (*FixedChain)(nil)

	ErrFixedChain = errors.New("endpoint is bound to a single chain")
)

// ChainIDReader reports the chain served by an endpoint.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// FixedChain is the NetworkSwitcher of a key-signed session: the chain is
// whatever the RPC endpoint serves and can never be switched.
type FixedChain struct {
	reader ChainIDReader
}

func NewFixedChain(reader ChainIDReader) *FixedChain {
	return &FixedChain{reader: reader}
}

func (f *FixedChain) ChainID(ctx context.Context) (uint64, error) {
	id, err := f.reader.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain ID %s out of range", id)
	}
	return id.Uint64(), nil
}

func (f *FixedChain) SwitchChain(_ context.Context, chainID uint64) error {
	return fmt.Errorf("%w: cannot switch to chain %d", ErrFixedChain, chainID)
}

func (f *FixedChain) AddChain(_ context.Context, network Network) error {
	return fmt.Errorf("%w: cannot add %s", ErrFixedChain, network.Name)
}
