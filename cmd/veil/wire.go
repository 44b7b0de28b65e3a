// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/ethclient"
	"github.com/luxfi/veil/crypto/fhe"
	"github.com/luxfi/veil/pipeline"
	"github.com/luxfi/veil/projection"
	"github.com/luxfi/veil/vms/evm"
	"github.com/luxfi/veil/vms/evm/signer"
	"github.com/luxfi/veil/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const metricsShutdownTimeout = 5 * time.Second

// app holds the read side, which every command needs.
type app struct {
	client     *ethclient.Client
	contract   *evm.Contract
	projection *projection.Projection
	board      *projection.Board
	registry   *prometheus.Registry
}

func newApp(ctx context.Context) (*app, error) {
	address, err := cfg.Contract()
	if err != nil {
		return nil, err
	}
	contract, err := evm.NewContract(address)
	if err != nil {
		return nil, err
	}
	client, err := evm.Dial(ctx, cfg.RPCURL)
	if err != nil {
		logger.Error(
			"Failed to dial RPC endpoint",
			zap.String("url", cfg.RPCURL),
			zap.Error(err),
		)
		return nil, err
	}
	proj := projection.New(logger, evm.NewReader(logger, contract, client))
	return &app{
		client:     client,
		contract:   contract,
		projection: proj,
		board:      projection.NewBoard(proj),
		registry:   prometheus.NewRegistry(),
	}, nil
}

func (a *app) Close() {
	a.client.Close()
}

// orchestrator wires the write side. Messages additionally need the relayer;
// the returned runtime is nil without it.
func (a *app) orchestrator(ctx context.Context, withEncryption bool) (*pipeline.Orchestrator, *fhe.Runtime, error) {
	validate := cfg.ValidateWriter
	if withEncryption {
		validate = cfg.ValidateEncryption
	}
	if err := validate(); err != nil {
		return nil, nil, err
	}

	submitter, guard, err := a.session(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		encryptor fhe.Encryptor
		runtime   *fhe.Runtime
	)
	if withEncryption {
		oracle, err := fhe.DialOracle(ctx, cfg.RelayerURL)
		if err != nil {
			return nil, nil, err
		}
		runtime = fhe.NewRuntime(logger, oracle, cfg.RelayerNetwork, cfg.OracleInitTimeout)
		encryptor = fhe.NewAdapter(logger, runtime, cfg.EncryptionTimeout)
	}

	o := pipeline.NewOrchestrator(
		logger,
		a.contract,
		encryptor,
		guard,
		submitter,
		pipeline.WithRefresher(a.board),
		pipeline.WithMetrics(pipeline.NewMetrics(a.registry)),
		pipeline.WithObserver(func(id uuid.UUID, state pipeline.State) {
			logger.Debug(
				"Entered stage",
				zap.Stringer("submissionID", id),
				zap.Stringer("stage", state.Stage()),
			)
		}),
	)
	return o, runtime, nil
}

// session picks key-signed submission when a private key is configured and
// wallet-signed submission otherwise.
func (a *app) session(ctx context.Context) (pipeline.TransactionSubmitter, *wallet.Guard, error) {
	network := cfg.Network()
	if cfg.AccountPrivateKey != "" {
		sgnr, err := signer.NewTxSigner(cfg.AccountPrivateKey)
		if err != nil {
			return nil, nil, err
		}
		submitter, err := evm.NewKeySubmitter(ctx, logger, a.client, sgnr, cfg.KeySubmitterConfig())
		if err != nil {
			return nil, nil, err
		}
		guard := wallet.NewGuard(logger, wallet.NewFixedChain(a.client), network, cfg.SettleDelay)
		return submitter, guard, nil
	}

	w, err := wallet.Dial(ctx, cfg.WalletURL)
	if err != nil {
		return nil, nil, err
	}
	var account common.Address
	if cfg.AccountAddress != "" {
		account = common.HexToAddress(cfg.AccountAddress)
	} else if account, err = w.Account(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to read wallet account: %w", err)
	}
	submitter := evm.NewWalletSubmitter(logger, a.client, w, account, cfg.ReceiptTimeout)
	return submitter, wallet.NewGuard(logger, w, network, cfg.SettleDelay), nil
}

// serveMetrics exposes the registry until ctx is done. A zero port disables
// it.
func (a *app) serveMetrics(ctx context.Context) {
	if cfg.MetricsPort == 0 {
		return
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server exited with error", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	logger.Info("Serving metrics", zap.Uint16("port", cfg.MetricsPort))
}
