// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/rpc"
	"github.com/luxfi/veil"
)

const (
	initMethod           = "relayer_initSDK"
	createInstanceMethod = "relayer_createInstance"
	encryptInputMethod   = "relayer_encryptInput"

	uint32Type = "euint32"
)

var (
	_ Oracle       = (*RPCOracle)(nil)
	_ Instance     = (*rpcInstance)(nil)
	_ InputBuilder = (*rpcInputBuilder)(nil)
)

// Caller issues JSON-RPC calls. *rpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// RPCOracle talks to a relayer sidecar over JSON-RPC.
type RPCOracle struct {
	client Caller
}

// DialOracle connects to the relayer at url.
func DialOracle(ctx context.Context, url string) (*RPCOracle, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relayer: %w", err)
	}
	return NewRPCOracle(client), nil
}

func NewRPCOracle(client Caller) *RPCOracle {
	return &RPCOracle{client: client}
}

func (o *RPCOracle) Init(ctx context.Context) error {
	var ok bool
	if err := o.client.CallContext(ctx, &ok, initMethod); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	if !ok {
		return ErrInitFailed
	}
	return nil
}

func (o *RPCOracle) CreateInstance(ctx context.Context, network string) (Instance, error) {
	var id string
	if err := o.client.CallContext(ctx, &id, createInstanceMethod, network); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New("relayer returned an empty instance id")
	}
	return &rpcInstance{client: o.client, id: id}, nil
}

type rpcInstance struct {
	client Caller
	id     string
}

func (i *rpcInstance) CreateEncryptedInput(contract, user common.Address) InputBuilder {
	return &rpcInputBuilder{
		client: i.client,
		request: encryptRequest{
			Instance:        i.id,
			ContractAddress: contract,
			UserAddress:     user,
		},
	}
}

type encryptValue struct {
	Type  string         `json:"type"`
	Value hexutil.Uint64 `json:"value"`
}

type encryptRequest struct {
	Instance        string         `json:"instance"`
	ContractAddress common.Address `json:"contractAddress"`
	UserAddress     common.Address `json:"userAddress"`
	Values          []encryptValue `json:"values"`
}

type encryptResponse struct {
	Handles    []hexutil.Bytes `json:"handles"`
	InputProof hexutil.Bytes   `json:"inputProof"`
}

type rpcInputBuilder struct {
	client  Caller
	request encryptRequest
}

func (b *rpcInputBuilder) Add32(value uint32) InputBuilder {
	b.request.Values = append(b.request.Values, encryptValue{
		Type:  uint32Type,
		Value: hexutil.Uint64(value),
	})
	return b
}

func (b *rpcInputBuilder) Encrypt(ctx context.Context) (*EncryptedInput, error) {
	var resp encryptResponse
	if err := b.client.CallContext(ctx, &resp, encryptInputMethod, b.request); err != nil {
		return nil, err
	}
	input := &EncryptedInput{
		Handles:    make([]veil.Handle, 0, len(resp.Handles)),
		InputProof: resp.InputProof,
	}
	for _, raw := range resp.Handles {
		h, err := veil.HandleFromBytes(raw)
		if err != nil {
			return nil, err
		}
		input.Handles = append(input.Handles, h)
	}
	return input, nil
}
