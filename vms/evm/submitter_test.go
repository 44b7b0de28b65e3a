// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/veil/vms/evm/signer"
	"github.com/luxfi/veil/wallet"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeClient struct {
	mu          sync.Mutex
	chainID     *big.Int
	baseFee     *big.Int
	tip         *big.Int
	nonce       uint64
	estimate    uint64
	estimateErr error
	code        []byte
	sendErr     error
	sent        []*types.Transaction
	// pending is the number of receipt polls answered with NotFound.
	pending  int
	receipts map[common.Hash]*types.Receipt
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		chainID:  big.NewInt(11155111),
		baseFee:  big.NewInt(10),
		tip:      big.NewInt(2),
		nonce:    4,
		estimate: 50000,
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (c *fakeClient) ChainID(context.Context) (*big.Int, error) {
	return c.chainID, nil
}

func (*fakeClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (c *fakeClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return c.estimate, c.estimateErr
}

func (c *fakeClient) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return c.code, nil
}

func (c *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return c.nonce, nil
}

func (c *fakeClient) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return c.tip, nil
}

func (c *fakeClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: c.baseFee}, nil
}

func (c *fakeClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	return nil
}

func (c *fakeClient) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending > 0 {
		c.pending--
		return nil, ethereum.NotFound
	}
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func newTestKeySubmitter(t *testing.T, client *fakeClient, cfg KeySubmitterConfig) *KeySubmitter {
	sgnr, err := signer.NewTxSigner(testKey)
	require.NoError(t, err)
	s, err := NewKeySubmitter(context.Background(), zap.NewNop(), client, sgnr, cfg)
	require.NoError(t, err)
	return s
}

func TestKeySubmitterSendTransaction(t *testing.T) {
	client := newFakeClient()
	s := newTestKeySubmitter(t, client, KeySubmitterConfig{})

	hash, err := s.SendTransaction(context.Background(), Call{
		From: s.Sender(),
		To:   testContract,
		Data: []byte{0xde, 0xad},
		Gas:  1000,
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	tx := client.sent[0]
	require.Equal(t, hash, tx.Hash())
	require.Equal(t, uint64(4), tx.Nonce())
	require.Equal(t, uint64(1200), tx.Gas())
	require.Equal(t, big.NewInt(2), tx.GasTipCap())
	// 3x base fee plus tip
	require.Equal(t, big.NewInt(32), tx.GasFeeCap())
	require.Equal(t, testContract, *tx.To())
	require.Equal(t, []byte{0xde, 0xad}, tx.Data())

	from, err := types.Sender(types.LatestSignerForChainID(client.chainID), tx)
	require.NoError(t, err)
	require.Equal(t, s.Sender(), from)
}

func TestKeySubmitterFeeCaps(t *testing.T) {
	client := newFakeClient()
	client.tip = big.NewInt(100)
	s := newTestKeySubmitter(t, client, KeySubmitterConfig{
		MaxBaseFee:           big.NewInt(50),
		MaxPriorityFeePerGas: big.NewInt(5),
	})

	_, err := s.SendTransaction(context.Background(), Call{To: testContract})
	require.NoError(t, err)
	tx := client.sent[0]
	require.Equal(t, big.NewInt(5), tx.GasTipCap())
	require.Equal(t, big.NewInt(55), tx.GasFeeCap())
	// no gas supplied: estimated then padded
	require.Equal(t, uint64(60000), tx.Gas())
}

func TestKeySubmitterSendError(t *testing.T) {
	client := newFakeClient()
	client.sendErr = errors.New("nonce too low")
	s := newTestKeySubmitter(t, client, KeySubmitterConfig{})

	_, err := s.SendTransaction(context.Background(), Call{To: testContract, Gas: 1})
	require.ErrorIs(t, err, client.sendErr)
}

func TestKeySubmitterNoBaseFee(t *testing.T) {
	client := newFakeClient()
	client.baseFee = nil
	s := newTestKeySubmitter(t, client, KeySubmitterConfig{})

	_, err := s.SendTransaction(context.Background(), Call{To: testContract, Gas: 1})
	require.ErrorIs(t, err, ErrNoBaseFee)
}

func TestWaitForReceipt(t *testing.T) {
	hash := common.HexToHash("0x01")

	t.Run("found after polling", func(t *testing.T) {
		client := newFakeClient()
		client.pending = 2
		client.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful}
		s := newTestKeySubmitter(t, client, KeySubmitterConfig{ReceiptTimeout: 10 * time.Second})

		receipt, err := s.WaitForReceipt(context.Background(), hash)
		require.NoError(t, err)
		require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	})

	t.Run("still pending", func(t *testing.T) {
		client := newFakeClient()
		s := newTestKeySubmitter(t, client, KeySubmitterConfig{ReceiptTimeout: 100 * time.Millisecond})

		_, err := s.WaitForReceipt(context.Background(), hash)
		require.ErrorContains(t, err, "still pending")
		require.ErrorIs(t, err, ethereum.NotFound)
	})
}

type fakeTxSender struct {
	args []wallet.TransactionArgs
	hash common.Hash
	err  error
}

func (f *fakeTxSender) SendTransaction(_ context.Context, args wallet.TransactionArgs) (common.Hash, error) {
	f.args = append(f.args, args)
	return f.hash, f.err
}

func TestWalletSubmitter(t *testing.T) {
	client := newFakeClient()
	client.code = []byte{0x60}
	sender := &fakeTxSender{hash: common.HexToHash("0xbeef")}
	s := NewWalletSubmitter(zap.NewNop(), client, sender, alice, 0)
	ctx := context.Background()

	require.Equal(t, alice, s.Sender())

	code, err := s.CodeAt(ctx, testContract)
	require.NoError(t, err)
	require.Equal(t, []byte{0x60}, code)

	gas, err := s.EstimateGas(ctx, Call{From: alice, To: testContract})
	require.NoError(t, err)
	require.Equal(t, uint64(50000), gas)

	hash, err := s.SendTransaction(ctx, Call{From: alice, To: testContract, Data: []byte{1}, Gas: gas})
	require.NoError(t, err)
	require.Equal(t, sender.hash, hash)
	require.Len(t, sender.args, 1)
	require.Equal(t, alice, sender.args[0].From)
	require.Equal(t, testContract, *sender.args[0].To)
	require.Equal(t, uint64(60000), uint64(*sender.args[0].Gas))
}
