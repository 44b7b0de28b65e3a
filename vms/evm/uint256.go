// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var errOutOfRange = errors.New("value does not fit in uint64")

// toUint64 narrows an on-chain uint256.
func toUint64(b *big.Int) (uint64, error) {
	if b == nil {
		return 0, nil
	}
	v, overflow := uint256.FromBig(b)
	if overflow || !v.IsUint64() {
		return 0, errOutOfRange
	}
	return v.Uint64(), nil
}

// withHeadroom scales a gas estimate by (100+percent)/100, saturating at
// the uint64 maximum.
func withHeadroom(gas uint64, percent uint64) uint64 {
	v := uint256.NewInt(gas)
	v.Mul(v, uint256.NewInt(100+percent))
	v.Div(v, uint256.NewInt(100))
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}
