// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package pipeline

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/veil"
	"github.com/luxfi/veil/vms/evm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	sender       = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	recipient    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	testTxHash   = common.HexToHash("0x1234")
)

type fakeEncryptor struct {
	err   error
	calls int
	value uint32
	pair  [2]common.Address
}

func (e *fakeEncryptor) Encrypt(_ context.Context, value uint32, contract, user common.Address) (*veil.CiphertextBundle, error) {
	e.calls++
	e.value = value
	e.pair = [2]common.Address{contract, user}
	if e.err != nil {
		return nil, e.err
	}
	return &veil.CiphertextBundle{
		Handle:      veil.Handle{0xab},
		Attestation: []byte{0x01, 0x02},
		Contract:    contract,
		Sender:      user,
	}, nil
}

type fakeGuard struct {
	err   error
	calls int
}

func (g *fakeGuard) EnsureNetwork(context.Context) error {
	g.calls++
	return g.err
}

type fakeSubmitter struct {
	sender      common.Address
	code        []byte
	codeErr     error
	estimate    uint64
	estimateErr error
	sendErr     error
	receipt     *types.Receipt
	receiptErr  error

	estimates []evm.Call
	sent      []evm.Call
	codeCalls int
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{
		sender:   sender,
		code:     []byte{0x60, 0x80},
		estimate: 21000,
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(7),
			GasUsed:     20000,
		},
	}
}

func (s *fakeSubmitter) Sender() common.Address { return s.sender }

func (s *fakeSubmitter) EstimateGas(_ context.Context, call evm.Call) (uint64, error) {
	s.estimates = append(s.estimates, call)
	return s.estimate, s.estimateErr
}

func (s *fakeSubmitter) CodeAt(context.Context, common.Address) ([]byte, error) {
	s.codeCalls++
	return s.code, s.codeErr
}

func (s *fakeSubmitter) SendTransaction(_ context.Context, call evm.Call) (common.Hash, error) {
	if s.sendErr != nil {
		return common.Hash{}, s.sendErr
	}
	s.sent = append(s.sent, call)
	return testTxHash, nil
}

func (s *fakeSubmitter) WaitForReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return s.receipt, s.receiptErr
}

func (s *fakeSubmitter) rpcCalls() int {
	return len(s.estimates) + len(s.sent) + s.codeCalls
}

type fakeRefresher struct {
	calls int
	err   error
}

func (r *fakeRefresher) Refresh(context.Context) error {
	r.calls++
	return r.err
}

type harness struct {
	encryptor *fakeEncryptor
	guard     *fakeGuard
	submitter *fakeSubmitter
	refresher *fakeRefresher
	metrics   *Metrics
	stages    []Stage
	states    []State
	o         *Orchestrator
}

func newHarness(t *testing.T) *harness {
	contract, err := evm.NewContract(contractAddr)
	require.NoError(t, err)
	h := &harness{
		encryptor: &fakeEncryptor{},
		guard:     &fakeGuard{},
		submitter: newFakeSubmitter(),
		refresher: &fakeRefresher{},
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}
	h.o = NewOrchestrator(
		zap.NewNop(),
		contract,
		h.encryptor,
		h.guard,
		h.submitter,
		WithRefresher(h.refresher),
		WithMetrics(h.metrics),
		WithObserver(func(_ uuid.UUID, state State) {
			h.stages = append(h.stages, state.Stage())
			h.states = append(h.states, state)
		}),
	)
	return h
}

func (h *harness) failedState(t *testing.T) Failed {
	require.NotEmpty(t, h.states)
	failed, ok := h.states[len(h.states)-1].(Failed)
	require.True(t, ok, "last state is %T", h.states[len(h.states)-1])
	return failed
}

func TestSubmitMessage(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)

	result, err := h.o.SubmitMessage(context.Background(), sender, recipient, "hello")
	require.NoError(err)
	require.Equal(testTxHash, result.TxHash)
	require.Equal(uint64(7), result.BlockNumber)
	require.Equal(uint64(20000), result.GasUsed)

	require.Equal([]Stage{
		StageIdle,
		StageEncoding,
		StageEncrypting,
		StageNetworkCheck,
		StageEstimating,
		StageSubmitted,
		StageConfirmed,
	}, h.stages)

	// the oracle request is scoped to (contract, sender)
	require.Equal([2]common.Address{contractAddr, sender}, h.encryptor.pair)
	require.Equal(veil.Encode("hello").NumericValue, h.encryptor.value)

	// estimate and submission use the same final call
	require.Len(h.submitter.estimates, 1)
	require.Len(h.submitter.sent, 1)
	require.Equal(h.submitter.estimates[0].Data, h.submitter.sent[0].Data)
	require.Equal(uint64(21000), h.submitter.sent[0].Gas)
	require.Equal(contractAddr, h.submitter.sent[0].To)

	require.Equal(1, h.refresher.calls)
	require.InDelta(1, testutil.ToFloat64(h.metrics.submissionCount.WithLabelValues(messageKind)), 0)
	require.InDelta(1, testutil.ToFloat64(h.metrics.confirmedSubmissionCount.WithLabelValues(messageKind)), 0)
}

func TestSubmitMessageLongText(t *testing.T) {
	h := newHarness(t)
	text := "hello world this text is way too long"

	_, err := h.o.SubmitMessage(context.Background(), sender, recipient, text)
	require.NoError(t, err)
	require.Equal(t, veil.Encode(text[:4]).NumericValue, h.encryptor.value)
}

func TestSubmitMessageOracleUnavailable(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	h.encryptor.err = veil.Errorf(veil.KindOracleUnavailable, "relayer init failed")

	_, err := h.o.SubmitMessage(context.Background(), sender, recipient, "hello")
	require.ErrorIs(err, veil.ErrOracleUnavailable)
	require.Zero(h.guard.calls)
	require.Zero(h.submitter.rpcCalls())

	failed := h.failedState(t)
	require.Equal(StageEncrypting, failed.In)
	require.InDelta(1, testutil.ToFloat64(
		h.metrics.failedSubmissionCount.WithLabelValues(messageKind, veil.KindOracleUnavailable.String()),
	), 0)
}

func TestSubmitMessageFailures(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name        string
		setup       func(h *harness)
		text        string
		from        common.Address
		noRecipient bool
		wantErr     error
		wantStage   Stage
		wantReason  string
		wantSent    int
	}{
		{
			name:       "blank text",
			text:       "   ",
			wantErr:    veil.ErrValidation,
			wantStage:  StageIdle,
			wantReason: "enter a message",
		},
		{
			name:        "missing recipient",
			noRecipient: true,
			wantErr:     veil.ErrValidation,
			wantStage:   StageIdle,
		},
		{
			name:      "sender is not the active account",
			from:      recipient,
			wantErr:   veil.ErrValidation,
			wantStage: StageIdle,
		},
		{
			name: "encryption timeout",
			setup: func(h *harness) {
				h.encryptor.err = veil.Errorf(veil.KindEncryptionTimeout, "encryption timed out after 30s")
			},
			wantErr:   veil.ErrEncryptionTimeout,
			wantStage: StageEncrypting,
		},
		{
			name: "unclassified encryption error",
			setup: func(h *harness) {
				h.encryptor.err = errBoom
			},
			wantErr:    veil.ErrEncryptionFailed,
			wantStage:  StageEncrypting,
			wantReason: "boom",
		},
		{
			name: "network switch refused",
			setup: func(h *harness) {
				h.guard.err = veil.Errorf(veil.KindNetworkSwitchFailed, "failed to switch network: user rejected")
			},
			wantErr:    veil.ErrNetworkSwitchFailed,
			wantStage:  StageNetworkCheck,
			wantReason: "failed to switch network: user rejected",
		},
		{
			name: "bundle rejected for another sender",
			setup: func(h *harness) {
				h.submitter.estimateErr = errors.New("execution reverted: invalid input proof")
			},
			wantErr:    veil.ErrWillRevert,
			wantStage:  StageEstimating,
			wantReason: "invalid input proof",
		},
		{
			name: "revert without data",
			setup: func(h *harness) {
				h.submitter.estimateErr = errors.New("execution reverted")
			},
			wantErr:    veil.ErrWillRevert,
			wantStage:  StageEstimating,
			wantReason: evm.MissingRevertDataHint,
		},
		{
			// never reached Submitted
			name: "send rejected",
			setup: func(h *harness) {
				h.submitter.sendErr = errors.New("insufficient funds for gas * price + value")
			},
			wantErr:    veil.ErrTransactionFailed,
			wantStage:  StageEstimating,
			wantReason: "insufficient funds for gas * price + value",
		},
		{
			name: "still pending",
			setup: func(h *harness) {
				h.submitter.receiptErr = errors.New("transaction 0x12 still pending: not found")
			},
			wantErr:   veil.ErrTransactionFailed,
			wantStage: StageSubmitted,
			wantSent:  1,
		},
		{
			name: "reverted on chain",
			setup: func(h *harness) {
				h.submitter.receipt = &types.Receipt{Status: types.ReceiptStatusFailed}
			},
			wantErr:   veil.ErrTransactionFailed,
			wantStage: StageSubmitted,
			wantSent:  1,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			h := newHarness(t)
			if test.setup != nil {
				test.setup(h)
			}
			text := test.text
			if text == "" {
				text = "hello"
			}
			from := test.from
			if from == (common.Address{}) {
				from = sender
			}
			to := recipient
			if test.noRecipient {
				to = common.Address{}
			}

			_, err := h.o.SubmitMessage(context.Background(), from, to, text)
			require.ErrorIs(err, test.wantErr)
			if test.wantReason != "" {
				require.Equal(test.wantReason, veil.Reason(err))
			}

			failed := h.failedState(t)
			require.Equal(test.wantStage, failed.In)
			require.Equal(err, failed.Err)
			require.Len(h.submitter.sent, test.wantSent)
			require.Zero(h.refresher.calls)
		})
	}
}

func TestSubmitMessageRefreshFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.refresher.err = errors.New("node down")

	_, err := h.o.SubmitMessage(context.Background(), sender, recipient, "hi")
	require.NoError(t, err)
	require.Equal(t, StageConfirmed, h.stages[len(h.stages)-1])
}

func TestSubmitProfile(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)

	_, err := h.o.SubmitProfile(context.Background(), ProfileFields{
		Avatar:      "https://example.com/a.png",
		Description: "hello",
	})
	require.NoError(err)
	require.Equal([]Stage{
		StageIdle,
		StageNetworkCheck,
		StageEstimating,
		StageSubmitted,
		StageConfirmed,
	}, h.stages)
	require.Zero(h.encryptor.calls)
	require.Equal(1, h.submitter.codeCalls)
	require.Equal(sender, h.submitter.sent[0].From)

	contract, err := evm.NewContract(contractAddr)
	require.NoError(err)
	want, err := contract.PackCreateProfile("https://example.com/a.png", "{}", "hello")
	require.NoError(err)
	require.Equal(want, h.submitter.sent[0].Data)
}

func TestSubmitProfileGuards(t *testing.T) {
	tests := []struct {
		name       string
		fields     ProfileFields
		wantReason string
	}{
		{
			name: "inline avatar over the inline cap",
			fields: ProfileFields{
				Avatar: "data:image/png;base64," + strings.Repeat("A", 6000-len("data:image/png;base64,")),
			},
			wantReason: "avatar data too large, use a URL or a smaller image",
		},
		{
			name:       "plain avatar over the inline cap",
			fields:     ProfileFields{Avatar: strings.Repeat("a", 6000)},
			wantReason: "avatar must be at most 5000 characters",
		},
		{
			name:       "avatar over the hard cap",
			fields:     ProfileFields{Avatar: "https://example.com/" + strings.Repeat("a", MaxAvatarLength)},
			wantReason: "avatar must be at most 10000 characters",
		},
		{
			name:       "description too long",
			fields:     ProfileFields{Description: strings.Repeat("d", MaxDescriptionLength+1)},
			wantReason: "description must be at most 1000 characters",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			h := newHarness(t)

			_, err := h.o.SubmitProfile(context.Background(), test.fields)
			require.ErrorIs(err, veil.ErrValidation)
			require.Equal(test.wantReason, veil.Reason(err))
			require.Zero(h.guard.calls)
			require.Zero(h.submitter.rpcCalls())
			require.Equal(StageIdle, h.failedState(t).In)
		})
	}
}

func TestSubmitProfileAvatarAtInlineCap(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)

	_, err := h.o.SubmitProfile(context.Background(), ProfileFields{
		Avatar: strings.Repeat("a", MaxInlineAvatarLength),
	})
	require.NoError(err)
	require.Equal(1, h.guard.calls)
}

func TestSubmitProfileAcceptsMalformedSocialLinks(t *testing.T) {
	h := newHarness(t)
	_, err := h.o.SubmitProfile(context.Background(), ProfileFields{SocialLinks: "not json"})
	require.NoError(t, err)
}

func TestSubmitProfileContractMissing(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	h.submitter.code = nil

	_, err := h.o.SubmitProfile(context.Background(), ProfileFields{})
	require.ErrorIs(err, veil.ErrWillRevert)
	require.Equal("contract not found at this address", veil.Reason(err))
	require.Empty(h.submitter.estimates)
	require.Equal(StageEstimating, h.failedState(t).In)
}

func TestSubmitProfileNetworkFailure(t *testing.T) {
	h := newHarness(t)
	h.guard.err = errors.New("wallet disconnected")

	_, err := h.o.SubmitProfile(context.Background(), ProfileFields{})
	require.ErrorIs(t, err, veil.ErrNetworkSwitchFailed)
	require.Zero(t, h.submitter.rpcCalls())
}
