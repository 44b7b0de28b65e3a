// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/ethclient"
	"github.com/luxfi/veil/utils"
	"github.com/luxfi/veil/vms/evm/signer"
	"github.com/luxfi/veil/wallet"
	"go.uber.org/zap"
)

const (
	// If the max base fee is not explicitly set, use 3x the current base fee
	defaultBaseFeeFactor  = 3
	gasHeadroomPercent    = 20
	DefaultRPCTimeout     = 30 * time.Second
	DefaultReceiptTimeout = 2 * time.Minute
)

var (
	_ Client = (*ethclient.Client)(nil)

	ErrNoBaseFee = errors.New("chain does not report a base fee")
)

// Call is a state-changing contract call.
type Call struct {
	From common.Address
	To   common.Address
	Data []byte
	// Gas is the estimated gas; zero lets the submitter estimate.
	Gas uint64
}

func (c Call) msg() ethereum.CallMsg {
	to := c.To
	return ethereum.CallMsg{
		From: c.From,
		To:   &to,
		Data: c.Data,
	}
}

// Client interface wraps the subset of ethclient.Client used for submission.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Dial connects to the read endpoint.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	return ethclient.DialContext(ctx, url)
}

// chainClient holds the behavior shared by all submitters: dry runs, code
// lookups and confirmation tracking, all against the read endpoint.
type chainClient struct {
	client         Client
	receiptTimeout time.Duration
	logger         *zap.Logger
}

func (c *chainClient) EstimateGas(ctx context.Context, call Call) (uint64, error) {
	estimateCtx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer cancel()
	return c.client.EstimateGas(estimateCtx, call.msg())
}

func (c *chainClient) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	codeCtx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer cancel()
	return c.client.CodeAt(codeCtx, account, nil)
}

// WaitForReceipt polls for the receipt of txHash until it is found, the
// receipt timeout elapses or ctx is done.
func (c *chainClient) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	operation := func() (err error) {
		callCtx, callCtxCancel := context.WithTimeout(ctx, DefaultRPCTimeout)
		defer callCtxCancel()
		receipt, err = c.client.TransactionReceipt(callCtx, txHash)
		return err
	}
	err := utils.WithRetriesTimeout(ctx, c.logger, operation, c.receiptTimeout, "waitForReceipt")
	if err != nil {
		c.logger.Error(
			"Failed to get transaction receipt",
			zap.Stringer("txID", txHash),
			zap.Error(err),
		)
		return nil, fmt.Errorf("transaction %s still pending: %w", txHash, err)
	}
	return receipt, nil
}

// KeySubmitterConfig bounds the fees of key-signed transactions. Zero values
// fall back to network suggestions.
type KeySubmitterConfig struct {
	MaxBaseFee           *big.Int
	MaxPriorityFeePerGas *big.Int
	ReceiptTimeout       time.Duration
}

// KeySubmitter signs transactions locally and broadcasts them through the
// RPC endpoint. The endpoint's chain is the active chain.
type KeySubmitter struct {
	chainClient
	signer               signer.Signer
	evmChainID           *big.Int
	nonceLock            sync.Mutex
	maxBaseFee           *big.Int
	maxPriorityFeePerGas *big.Int
}

func NewKeySubmitter(
	ctx context.Context,
	logger *zap.Logger,
	client Client,
	sgnr signer.Signer,
	cfg KeySubmitterConfig,
) (*KeySubmitter, error) {
	logger = logger.With(zap.Stringer("sender", sgnr.Address()))

	evmChainID, err := client.ChainID(ctx)
	if err != nil {
		logger.Error(
			"Failed to get chain ID from endpoint",
			zap.Error(err),
		)
		return nil, err
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = DefaultReceiptTimeout
	}

	logger.Info(
		"Initialized key submitter",
		zap.String("evmChainID", evmChainID.String()),
	)
	return &KeySubmitter{
		chainClient: chainClient{
			client:         client,
			receiptTimeout: cfg.ReceiptTimeout,
			logger:         logger,
		},
		signer:               sgnr,
		evmChainID:           evmChainID,
		maxBaseFee:           cfg.MaxBaseFee,
		maxPriorityFeePerGas: cfg.MaxPriorityFeePerGas,
	}, nil
}

func (s *KeySubmitter) Sender() common.Address {
	return s.signer.Address()
}

// SendTransaction constructs, signs, and broadcasts a dynamic fee
// transaction for call. If the maximum base fee is not configured, it is the
// current base fee multiplied by the default base fee factor. The tip is the
// suggested tip capped by the configured maximum priority fee.
func (s *KeySubmitter) SendTransaction(ctx context.Context, call Call) (common.Hash, error) {
	maxBaseFee, err := s.maxBaseFeeFor(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	gasTipCapCtx, gasTipCapCtxCancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer gasTipCapCtxCancel()
	gasTipCap, err := s.client.SuggestGasTipCap(gasTipCapCtx)
	if err != nil {
		s.logger.Error(
			"Failed to get gas tip cap",
			zap.Error(err),
		)
		return common.Hash{}, err
	}
	if s.maxPriorityFeePerGas != nil && s.maxPriorityFeePerGas.Sign() > 0 && gasTipCap.Cmp(s.maxPriorityFeePerGas) > 0 {
		gasTipCap = s.maxPriorityFeePerGas
	}
	gasFeeCap := new(big.Int).Add(maxBaseFee, gasTipCap)

	gas := call.Gas
	if gas == 0 {
		if gas, err = s.EstimateGas(ctx, call); err != nil {
			return common.Hash{}, err
		}
	}

	// Hold the lock until the transaction is sent so nonces go out in order.
	s.nonceLock.Lock()
	defer s.nonceLock.Unlock()

	nonceCtx, nonceCtxCancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer nonceCtxCancel()
	nonce, err := s.client.PendingNonceAt(nonceCtx, s.signer.Address())
	if err != nil {
		s.logger.Error(
			"Failed to get pending nonce",
			zap.Error(err),
		)
		return common.Hash{}, err
	}

	to := call.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.evmChainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       withHeadroom(gas, gasHeadroomPercent),
		To:        &to,
		Value:     big.NewInt(0),
		Data:      call.Data,
	})
	signedTx, err := s.signer.SignTx(tx, s.evmChainID)
	if err != nil {
		s.logger.Error(
			"Failed to sign transaction",
			zap.Error(err),
		)
		return common.Hash{}, err
	}

	sendTxCtx, sendTxCtxCancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer sendTxCtxCancel()
	if err := s.client.SendTransaction(sendTxCtx, signedTx); err != nil {
		s.logger.Error(
			"Failed to send transaction",
			zap.Error(err),
		)
		return common.Hash{}, err
	}
	s.logger.Info(
		"Sent transaction",
		zap.Stringer("txID", signedTx.Hash()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", signedTx.Gas()),
	)
	return signedTx.Hash(), nil
}

func (s *KeySubmitter) maxBaseFeeFor(ctx context.Context) (*big.Int, error) {
	if s.maxBaseFee != nil && s.maxBaseFee.Sign() > 0 {
		return s.maxBaseFee, nil
	}
	headerCtx, headerCtxCancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer headerCtxCancel()
	header, err := s.client.HeaderByNumber(headerCtx, nil)
	if err != nil {
		s.logger.Error(
			"Failed to get base fee",
			zap.Error(err),
		)
		return nil, err
	}
	if header.BaseFee == nil {
		return nil, ErrNoBaseFee
	}
	return new(big.Int).Mul(header.BaseFee, big.NewInt(defaultBaseFeeFactor)), nil
}

// TransactionSender is the wallet capability that signs and broadcasts.
type TransactionSender interface {
	SendTransaction(ctx context.Context, args wallet.TransactionArgs) (common.Hash, error)
}

// WalletSubmitter hands transactions to a wallet for signing and broadcast,
// and tracks them through the read endpoint.
type WalletSubmitter struct {
	chainClient
	wallet  TransactionSender
	account common.Address
}

func NewWalletSubmitter(
	logger *zap.Logger,
	client Client,
	sender TransactionSender,
	account common.Address,
	receiptTimeout time.Duration,
) *WalletSubmitter {
	if receiptTimeout <= 0 {
		receiptTimeout = DefaultReceiptTimeout
	}
	return &WalletSubmitter{
		chainClient: chainClient{
			client:         client,
			receiptTimeout: receiptTimeout,
			logger:         logger.With(zap.Stringer("sender", account)),
		},
		wallet:  sender,
		account: account,
	}
}

func (s *WalletSubmitter) Sender() common.Address {
	return s.account
}

func (s *WalletSubmitter) SendTransaction(ctx context.Context, call Call) (common.Hash, error) {
	to := call.To
	args := wallet.TransactionArgs{
		From: s.account,
		To:   &to,
		Data: call.Data,
	}
	if call.Gas > 0 {
		gas := hexutil.Uint64(withHeadroom(call.Gas, gasHeadroomPercent))
		args.Gas = &gas
	}
	hash, err := s.wallet.SendTransaction(ctx, args)
	if err != nil {
		s.logger.Error(
			"Wallet failed to send transaction",
			zap.Error(err),
		)
		return common.Hash{}, err
	}
	s.logger.Info(
		"Sent transaction",
		zap.Stringer("txID", hash),
	)
	return hash, nil
}
