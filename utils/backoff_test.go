// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithRetriesTimeout(t *testing.T) {
	t.Run("NotEnoughRetry", func(t *testing.T) {
		retryable := newMockRetryableFn(3)
		err := WithRetriesTimeout(
			context.Background(),
			zap.NewNop(),
			func() (err error) {
				_, err = retryable.Run()
				return err
			},
			// shorter than the first default interval: a single try
			100*time.Millisecond,
			"test",
		)
		require.Error(t, err)
	})
	t.Run("EnoughRetry", func(t *testing.T) {
		retryable := newMockRetryableFn(2)
		var res bool
		err := WithRetriesTimeout(
			context.Background(),
			zap.NewNop(),
			func() (err error) {
				res, err = retryable.Run()
				return err
			},
			// default intervals: room for at least 3 tries
			5*time.Second,
			"test",
		)
		require.NoError(t, err)
		require.True(t, res)
	})
	t.Run("Permanent", func(t *testing.T) {
		calls := 0
		cause := errors.New("reverted")
		err := WithRetriesTimeout(
			context.Background(),
			zap.NewNop(),
			func() error {
				calls++
				return backoff.Permanent(cause)
			},
			time.Minute,
			"test",
		)
		require.ErrorIs(t, err, cause)
		require.Equal(t, 1, calls)
	})
	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetriesTimeout(
			ctx,
			zap.NewNop(),
			func() error { return errors.New("pending") },
			time.Minute,
			"test",
		)
		require.Error(t, err)
	})
}

type mockRetryableFn struct {
	counter uint64
	trigger uint64
}

func newMockRetryableFn(trigger uint64) mockRetryableFn {
	return mockRetryableFn{
		counter: 0,
		trigger: trigger,
	}
}

func (m *mockRetryableFn) Run() (bool, error) {
	if m.counter >= m.trigger {
		return true, nil
	}
	m.counter++
	return false, errors.New("error")
}
