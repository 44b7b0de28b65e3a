// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"math/big"

	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/veil"
	"go.uber.org/zap"
)

// ContractCaller performs read-only contract calls. *ethclient.Client
// satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader serves the read side of the ledger contract. It is independent of
// the wallet session and always targets its own endpoint.
type Reader struct {
	contract *Contract
	caller   ContractCaller
	logger   *zap.Logger
}

func NewReader(logger *zap.Logger, contract *Contract, caller ContractCaller) *Reader {
	return &Reader{
		contract: contract,
		caller:   caller,
		logger:   logger.With(zap.Stringer("contract", contract.Address())),
	}
}

func (r *Reader) GetAllUsers(ctx context.Context) ([]common.Address, error) {
	data, err := r.call(ctx, r.contract.PackGetAllUsers)
	if err != nil {
		return nil, err
	}
	return r.contract.UnpackGetAllUsers(data)
}

func (r *Reader) GetProfile(ctx context.Context, user common.Address) (*veil.Profile, error) {
	data, err := r.call(ctx, func() ([]byte, error) { return r.contract.PackGetProfile(user) })
	if err != nil {
		return nil, err
	}
	return r.contract.UnpackGetProfile(data)
}

func (r *Reader) GetSentMessages(ctx context.Context, user common.Address) ([]veil.EncryptedMessage, error) {
	data, err := r.call(ctx, func() ([]byte, error) { return r.contract.PackGetSentMessages(user) })
	if err != nil {
		return nil, err
	}
	return r.contract.UnpackGetSentMessages(user, data)
}

func (r *Reader) GetReceivedMessages(ctx context.Context, user common.Address) ([]veil.EncryptedMessage, error) {
	data, err := r.call(ctx, func() ([]byte, error) { return r.contract.PackGetReceivedMessages(user) })
	if err != nil {
		return nil, err
	}
	return r.contract.UnpackGetReceivedMessages(user, data)
}

func (r *Reader) call(ctx context.Context, pack func() ([]byte, error)) ([]byte, error) {
	input, err := pack()
	if err != nil {
		return nil, err
	}
	to := r.contract.Address()
	callCtx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer cancel()
	return r.caller.CallContract(callCtx, ethereum.CallMsg{
		To:   &to,
		Data: input,
	}, nil)
}
