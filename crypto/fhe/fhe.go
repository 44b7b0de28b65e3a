// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe wraps the confidential-computing oracle (relayer) that turns a
// plaintext value into a ciphertext handle plus an attestation bound to a
// (contract, sender) pair. Only the client side of the exchange lives here;
// the cryptosystem itself belongs to the oracle.
package fhe

import (
	"context"
	"errors"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/veil"
)

var (
	ErrInitFailed = errors.New("oracle SDK initialization failed")
	ErrNoHandles  = errors.New("oracle returned no handles")
)

// Oracle is the SDK entry point of the relayer.
type Oracle interface {
	// Init performs the one-time SDK initialization.
	Init(ctx context.Context) error

	// CreateInstance returns an instance scoped to a named network
	// configuration.
	CreateInstance(ctx context.Context, network string) (Instance, error)
}

// Instance creates encryption requests.
type Instance interface {
	// CreateEncryptedInput starts a request whose output is only valid for
	// the given contract and user.
	CreateEncryptedInput(contract, user common.Address) InputBuilder
}

// InputBuilder accumulates plaintext values for a single request.
type InputBuilder interface {
	Add32(value uint32) InputBuilder
	Encrypt(ctx context.Context) (*EncryptedInput, error)
}

// EncryptedInput is the raw oracle output.
type EncryptedInput struct {
	Handles    []veil.Handle
	InputProof []byte
}

// Encryptor produces ciphertext bundles for the submission pipeline.
type Encryptor interface {
	Encrypt(ctx context.Context, value uint32, contract, sender common.Address) (*veil.CiphertextBundle, error)
}
