// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package pipeline sequences state-changing ledger calls: encoding,
// encryption, network targeting, gas pre-checks, submission and
// confirmation. Every submission ends in Confirmed or Failed.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/veil"
	"github.com/luxfi/veil/crypto/fhe"
	"github.com/luxfi/veil/vms/evm"
	"go.uber.org/zap"
)

// TransactionSubmitter estimates, sends and tracks transactions for a single
// sender. *evm.KeySubmitter and *evm.WalletSubmitter satisfy it.
type TransactionSubmitter interface {
	Sender() common.Address
	EstimateGas(ctx context.Context, call evm.Call) (uint64, error)
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
	SendTransaction(ctx context.Context, call evm.Call) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// NetworkGuard puts the session on the required chain. *wallet.Guard
// satisfies it.
type NetworkGuard interface {
	EnsureNetwork(ctx context.Context) error
}

// Refresher rebuilds the read side after a confirmed submission.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Orchestrator struct {
	contract  *evm.Contract
	encryptor fhe.Encryptor
	guard     NetworkGuard
	submitter TransactionSubmitter
	refresher Refresher
	observer  Observer
	metrics   *Metrics
	validate  *validator.Validate
	logger    *zap.Logger
}

type Option func(*Orchestrator)

// WithRefresher triggers r after every confirmed submission.
func WithRefresher(r Refresher) Option {
	return func(o *Orchestrator) {
		o.refresher = r
	}
}

func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

func NewOrchestrator(
	logger *zap.Logger,
	contract *evm.Contract,
	encryptor fhe.Encryptor,
	guard NetworkGuard,
	submitter TransactionSubmitter,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		contract:  contract,
		encryptor: encryptor,
		guard:     guard,
		submitter: submitter,
		validate:  validator.New(),
		logger: logger.With(
			zap.Stringer("contract", contract.Address()),
			zap.Stringer("sender", submitter.Sender()),
		),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sender is the account submissions are made from.
func (o *Orchestrator) Sender() common.Address {
	return o.submitter.Sender()
}

// SubmitMessage encrypts text for the (contract, from) pair and records it
// for to.
func (o *Orchestrator) SubmitMessage(ctx context.Context, from, to common.Address, text string) (*Result, error) {
	s := o.begin(messageKind, zap.Stringer("to", to))

	switch {
	case strings.TrimSpace(text) == "":
		return nil, s.fail(veil.Errorf(veil.KindValidation, "enter a message"))
	case to == (common.Address{}):
		return nil, s.fail(veil.Errorf(veil.KindValidation, "recipient address is required"))
	case from != o.submitter.Sender():
		return nil, s.fail(veil.Errorf(veil.KindValidation,
			"sender %s is not the active account %s", from, o.submitter.Sender(),
		))
	}

	s.enter(Encoding{Text: text})
	payload := veil.Encode(text)

	s.enter(Encrypting{Payload: payload})
	bundle, err := o.encryptor.Encrypt(ctx, payload.NumericValue, o.contract.Address(), from)
	if err != nil {
		return nil, s.fail(classify(err, veil.KindEncryptionFailed))
	}

	s.enter(NetworkCheck{Bundle: bundle})
	if err := o.guard.EnsureNetwork(ctx); err != nil {
		return nil, s.fail(classify(err, veil.KindNetworkSwitchFailed))
	}

	data, err := o.contract.PackSendMessage(to, bundle.Handle, bundle.Attestation)
	if err != nil {
		return nil, s.fail(veil.NewError(veil.KindEncryptionFailed, "failed to encode message call", err))
	}
	return o.submit(ctx, s, evm.Call{
		From: from,
		To:   o.contract.Address(),
		Data: data,
	})
}

// SubmitProfile creates or updates the sender's profile. Size guards run
// before any network interaction.
func (o *Orchestrator) SubmitProfile(ctx context.Context, fields ProfileFields) (*Result, error) {
	s := o.begin(profileKind)

	fields, err := fields.normalize(o.validate)
	if err != nil {
		return nil, s.fail(err)
	}

	s.enter(NetworkCheck{})
	if err := o.guard.EnsureNetwork(ctx); err != nil {
		return nil, s.fail(classify(err, veil.KindNetworkSwitchFailed))
	}

	data, err := o.contract.PackCreateProfile(fields.Avatar, fields.SocialLinks, fields.Description)
	if err != nil {
		return nil, s.fail(veil.NewError(veil.KindValidation, "", err))
	}
	call := evm.Call{
		From: o.submitter.Sender(),
		To:   o.contract.Address(),
		Data: data,
	}

	s.enter(Estimating{Call: call})
	code, err := o.submitter.CodeAt(ctx, call.To)
	if err != nil {
		return nil, s.fail(veil.NewError(veil.KindWillRevert, "", err))
	}
	if len(code) == 0 {
		return nil, s.fail(veil.Errorf(veil.KindWillRevert, "contract not found at this address"))
	}
	return o.submit(ctx, s, call)
}

// submit runs Estimating, Submitted and Confirmed for call.
func (o *Orchestrator) submit(ctx context.Context, s *submission, call evm.Call) (*Result, error) {
	if s.state.Stage() != StageEstimating {
		s.enter(Estimating{Call: call})
	}
	gas, err := o.submitter.EstimateGas(ctx, call)
	if err != nil {
		return nil, s.fail(veil.NewError(veil.KindWillRevert, evm.RevertReason(err), err))
	}
	call.Gas = gas

	txHash, err := o.submitter.SendTransaction(ctx, call)
	if err != nil {
		return nil, s.fail(veil.NewError(veil.KindTransactionFailed, evm.RevertReason(err), err))
	}
	s.enter(Submitted{TxHash: txHash, Gas: gas})

	receipt, err := o.submitter.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, s.fail(veil.NewError(veil.KindTransactionFailed, "", err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, s.fail(veil.Errorf(veil.KindTransactionFailed, "transaction %s reverted", txHash))
	}
	s.enter(Confirmed{TxHash: txHash, Receipt: receipt})

	if o.refresher != nil {
		if err := o.refresher.Refresh(ctx); err != nil {
			s.logger.Warn(
				"Failed to refresh after confirmation",
				zap.Error(err),
			)
		}
	}

	result := &Result{
		ID:      s.id,
		TxHash:  txHash,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}

// classify keeps the kind of a classified error and wraps anything else as
// fallback.
func classify(err error, fallback veil.Kind) error {
	var e *veil.Error
	if errors.As(err, &e) {
		return err
	}
	return veil.NewError(fallback, "", err)
}

// submission tracks one run through the state machine.
type submission struct {
	id      uuid.UUID
	kind    string
	state   State
	entered time.Time
	o       *Orchestrator
	logger  *zap.Logger
}

func (o *Orchestrator) begin(kind string, fields ...zap.Field) *submission {
	id := uuid.New()
	s := &submission{
		id:      id,
		kind:    kind,
		entered: time.Now(),
		o:       o,
		logger: o.logger.With(append(fields,
			zap.Stringer("submissionID", id),
			zap.String("kind", kind),
		)...),
	}
	if o.metrics != nil {
		o.metrics.started(kind)
	}
	s.enter(Idle{})
	return s
}

func (s *submission) enter(next State) {
	now := time.Now()
	if s.state != nil {
		if s.o.metrics != nil {
			s.o.metrics.observeStage(s.state.Stage(), now.Sub(s.entered))
		}
		s.logger.Debug(
			"Submission stage complete",
			zap.Stringer("stage", s.state.Stage()),
			zap.Duration("elapsed", now.Sub(s.entered)),
		)
	}
	s.state = next
	s.entered = now

	switch st := next.(type) {
	case Submitted:
		s.logger.Info(
			"Submitted transaction",
			zap.Stringer("txID", st.TxHash),
			zap.Uint64("gas", st.Gas),
		)
	case Confirmed:
		if s.o.metrics != nil {
			s.o.metrics.confirmed(s.kind)
		}
		s.logger.Info(
			"Transaction confirmed",
			zap.Stringer("txID", st.TxHash),
			zap.Uint64("gasUsed", st.Receipt.GasUsed),
		)
	}
	if s.o.observer != nil {
		s.o.observer(s.id, next)
	}
}

// fail moves the submission to Failed and returns err for the caller.
func (s *submission) fail(err error) error {
	in := s.state.Stage()
	kind := veil.KindOf(err)
	if s.o.metrics != nil {
		s.o.metrics.failed(s.kind, kind.String())
	}
	s.logger.Error(
		"Submission failed",
		zap.Stringer("stage", in),
		zap.Stringer("errorKind", kind),
		zap.String("reason", veil.Reason(err)),
		zap.Error(err),
	)
	s.enter(Failed{In: in, Err: err})
	return err
}
