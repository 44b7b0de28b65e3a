// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/veil"
	"go.uber.org/zap"
)

const DefaultInitTimeout = 30 * time.Second

// Runtime owns the process-scoped oracle instance. The instance is created
// lazily on first use and reused afterwards. A failed initialization is
// remembered: every later call fails fast with KindOracleUnavailable until
// Reset is called. Initialization abandoned because the caller's context
// ended is not remembered.
type Runtime struct {
	oracle      Oracle
	network     string
	initTimeout time.Duration
	logger      *zap.Logger

	lock     sync.Mutex
	done     bool
	instance Instance
	err      error
}

func NewRuntime(logger *zap.Logger, oracle Oracle, network string, initTimeout time.Duration) *Runtime {
	if initTimeout <= 0 {
		initTimeout = DefaultInitTimeout
	}
	return &Runtime{
		oracle:      oracle,
		network:     network,
		initTimeout: initTimeout,
		logger:      logger.With(zap.String("network", network)),
	}
}

// Instance returns the shared instance, initializing it on first use.
func (r *Runtime) Instance(ctx context.Context) (Instance, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.done {
		instance, err := r.initialize(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, veil.NewError(veil.KindOracleUnavailable, "initialization interrupted", err)
		}
		r.instance, r.err = instance, err
		r.done = true
	}
	if r.err != nil {
		return nil, veil.NewError(veil.KindOracleUnavailable, "", r.err)
	}
	return r.instance, nil
}

// Ready reports whether the runtime initialized successfully. It does not
// trigger initialization.
func (r *Runtime) Ready() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.done && r.err == nil
}

// Reset discards the remembered outcome so the next call re-initializes.
func (r *Runtime) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.done = false
	r.instance = nil
	r.err = nil
	r.logger.Info("Oracle runtime reset")
}

func (r *Runtime) initialize(ctx context.Context) (Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, r.initTimeout)
	defer cancel()

	r.logger.Info("Initializing oracle")
	if err := r.oracle.Init(ctx); err != nil {
		r.logger.Error(
			"Failed to initialize oracle SDK",
			zap.Error(err),
		)
		return nil, err
	}
	instance, err := r.oracle.CreateInstance(ctx, r.network)
	if err != nil {
		r.logger.Error(
			"Failed to create oracle instance",
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}
	r.logger.Info("Initialized oracle")
	return instance, nil
}
