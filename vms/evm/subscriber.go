// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"context"
	"errors"
	"time"

	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/veil/utils"
	"go.uber.org/zap"
)

// Max buffer size for the header subscription channel
const maxHeaderBuffer = 64

var ErrSubscribe = errors.New("failed to subscribe to node")

// HeadSource delivers new chain heads. A websocket *ethclient.Client
// satisfies it.
type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// Subscriber follows new heads so read models can be rebuilt as the chain
// advances. Heads are only a trigger; nothing is cached from them.
type Subscriber struct {
	source  HeadSource
	headers chan *types.Header
	sub     ethereum.Subscription
	logger  *zap.Logger
}

func NewSubscriber(logger *zap.Logger, source HeadSource) *Subscriber {
	return &Subscriber{
		source:  source,
		headers: make(chan *types.Header, maxHeaderBuffer),
		logger:  logger,
	}
}

// Subscribe until it succeeds or retryTimeout elapses. Any previous
// subscription is dropped first.
func (s *Subscriber) Subscribe(ctx context.Context, retryTimeout time.Duration) error {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	var sub ethereum.Subscription
	operation := func() (err error) {
		cctx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
		defer cancel()
		sub, err = s.source.SubscribeNewHead(cctx, s.headers)
		return err
	}
	if err := utils.WithRetriesTimeout(ctx, s.logger, operation, retryTimeout, "subscribe"); err != nil {
		s.logger.Error("Failed to subscribe to node", zap.Error(err))
		return ErrSubscribe
	}
	s.sub = sub
	return nil
}

func (s *Subscriber) Headers() <-chan *types.Header {
	return s.headers
}

func (s *Subscriber) Err() <-chan error {
	return s.sub.Err()
}

func (s *Subscriber) Cancel() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
}
