// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/veil"
	"go.uber.org/zap"
)

const DefaultSettleDelay = 2 * time.Second

// ErrUnrecognizedChain is returned by a NetworkSwitcher when the wallet does
// not know the requested chain and it has to be added first.
var ErrUnrecognizedChain = errors.New("unrecognized chain")

// NetworkSwitcher is the slice of a wallet session the guard needs.
type NetworkSwitcher interface {
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, network Network) error
}

// Guard makes sure the wallet targets the required network. The active chain
// is owned by the wallet and may change underneath at any time; the guard
// only reads it, then conditionally writes it.
type Guard struct {
	switcher NetworkSwitcher
	network  Network
	settle   time.Duration
	logger   *zap.Logger
}

func NewGuard(logger *zap.Logger, switcher NetworkSwitcher, network Network, settle time.Duration) *Guard {
	return &Guard{
		switcher: switcher,
		network:  network,
		settle:   settle,
		logger:   logger.With(zap.Uint64("requiredChainID", network.ChainID)),
	}
}

// Network returns the required network.
func (g *Guard) Network() Network {
	return g.network
}

// EnsureNetwork switches the wallet to the required network if needed. It is
// a no-op when the wallet is already there. Failures are reported as
// KindNetworkSwitchFailed.
func (g *Guard) EnsureNetwork(ctx context.Context) error {
	current, err := g.switcher.ChainID(ctx)
	if err != nil {
		g.logger.Error(
			"Failed to read wallet chain ID",
			zap.Error(err),
		)
		return veil.NewError(veil.KindNetworkSwitchFailed, fmt.Sprintf("failed to read chain: %s", err), err)
	}
	if current == g.network.ChainID {
		return nil
	}

	g.logger.Info(
		"Switching wallet network",
		zap.Uint64("currentChainID", current),
	)
	err = g.switcher.SwitchChain(ctx, g.network.ChainID)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnrecognizedChain):
		g.logger.Info(
			"Adding network to wallet",
			zap.String("name", g.network.Name),
		)
		if err := g.switcher.AddChain(ctx, g.network); err != nil {
			g.logger.Error(
				"Failed to add network",
				zap.Error(err),
			)
			return veil.NewError(veil.KindNetworkSwitchFailed, fmt.Sprintf("failed to add network: %s", err), err)
		}
	default:
		g.logger.Error(
			"Failed to switch network",
			zap.Error(err),
		)
		return veil.NewError(veil.KindNetworkSwitchFailed, fmt.Sprintf("failed to switch network: %s", err), err)
	}

	// the switch acknowledgment arrives before the wallet state propagates
	if err := sleepContext(ctx, g.settle); err != nil {
		return veil.NewError(veil.KindNetworkSwitchFailed, "interrupted while waiting for network switch", err)
	}
	return nil
}

// CheckNetwork is the informational variant used by read-only flows: errors
// are logged and swallowed. It reports whether EnsureNetwork succeeded.
func (g *Guard) CheckNetwork(ctx context.Context) bool {
	if err := g.EnsureNetwork(ctx); err != nil {
		g.logger.Warn(
			"Ignoring network check failure",
			zap.Error(err),
		)
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
