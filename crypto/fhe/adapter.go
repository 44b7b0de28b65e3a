// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"
	"errors"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/veil"
	"go.uber.org/zap"
)

const DefaultEncryptionTimeout = 30 * time.Second

var _ Encryptor = (*Adapter)(nil)

type encryptResult struct {
	input *EncryptedInput
	err   error
}

// Adapter implements Encryptor on top of a Runtime.
type Adapter struct {
	runtime *Runtime
	timeout time.Duration
	logger  *zap.Logger
}

func NewAdapter(logger *zap.Logger, runtime *Runtime, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultEncryptionTimeout
	}
	return &Adapter{
		runtime: runtime,
		timeout: timeout,
		logger:  logger,
	}
}

// Encrypt encrypts value for the (contract, sender) pair. The oracle call is
// abandoned, not awaited, once the timeout elapses. There are no retries.
func (a *Adapter) Encrypt(
	ctx context.Context,
	value uint32,
	contract common.Address,
	sender common.Address,
) (*veil.CiphertextBundle, error) {
	instance, err := a.runtime.Instance(ctx)
	if err != nil {
		return nil, err
	}

	builder := instance.CreateEncryptedInput(contract, sender).Add32(value)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// buffered so an abandoned call can still complete
	results := make(chan encryptResult, 1)
	go func() {
		input, err := builder.Encrypt(callCtx)
		results <- encryptResult{input: input, err: err}
	}()

	var res encryptResult
	select {
	case res = <-results:
	case <-callCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, veil.NewError(veil.KindEncryptionFailed, "encryption canceled", ctx.Err())
		}
		a.logger.Warn(
			"Encryption timed out",
			zap.Stringer("contract", contract),
			zap.Stringer("sender", sender),
			zap.Duration("timeout", a.timeout),
		)
		return nil, veil.NewError(veil.KindEncryptionTimeout, "encryption timeout", callCtx.Err())
	}

	if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, veil.NewError(veil.KindEncryptionTimeout, "encryption timeout", res.err)
	}
	if res.err != nil {
		a.logger.Error(
			"Failed to encrypt input",
			zap.Stringer("contract", contract),
			zap.Stringer("sender", sender),
			zap.Error(res.err),
		)
		return nil, veil.NewError(veil.KindEncryptionFailed, "", res.err)
	}
	if res.input == nil || len(res.input.Handles) == 0 {
		return nil, veil.NewError(veil.KindEncryptionFailed, "", ErrNoHandles)
	}

	bundle := &veil.CiphertextBundle{
		Handle:      res.input.Handles[0],
		Attestation: res.input.InputProof,
		Contract:    contract,
		Sender:      sender,
	}
	if err := bundle.Verify(); err != nil {
		return nil, veil.NewError(veil.KindEncryptionFailed, "", err)
	}
	return bundle, nil
}
