// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package projection builds the read side of the ledger: the profile listing
// and per-account mailboxes. Every call re-reads the contract; nothing is
// cached between calls.
package projection

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/math/set"
	"github.com/luxfi/veil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ledger is the read surface of the ledger contract. *evm.Reader satisfies it.
type Ledger interface {
	GetAllUsers(ctx context.Context) ([]common.Address, error)
	GetProfile(ctx context.Context, user common.Address) (*veil.Profile, error)
	GetSentMessages(ctx context.Context, user common.Address) ([]veil.EncryptedMessage, error)
	GetReceivedMessages(ctx context.Context, user common.Address) ([]veil.EncryptedMessage, error)
}

type Projection struct {
	ledger Ledger
	logger *zap.Logger
}

func New(logger *zap.Logger, ledger Ledger) *Projection {
	return &Projection{
		ledger: ledger,
		logger: logger,
	}
}

// Profiles enumerates the known accounts and yields each existing profile as
// it is fetched. An account whose profile cannot be fetched is logged and
// skipped. Only a failure to enumerate is yielded as an error, after which the
// sequence ends. Ranging again re-reads everything.
func (p *Projection) Profiles(ctx context.Context) iter.Seq2[*veil.Profile, error] {
	return func(yield func(*veil.Profile, error) bool) {
		users, err := p.ledger.GetAllUsers(ctx)
		if err != nil {
			p.logger.Error(
				"Failed to enumerate accounts",
				zap.Error(err),
			)
			yield(nil, err)
			return
		}

		seen := set.NewSet[common.Address](len(users))
		for _, user := range users {
			if seen.Contains(user) {
				continue
			}
			seen.Add(user)

			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			profile, err := p.ledger.GetProfile(ctx, user)
			if err != nil {
				p.logger.Warn(
					"Skipping account",
					zap.Stringer("account", user),
					zap.Error(err),
				)
				continue
			}
			if profile == nil || !profile.Exists {
				continue
			}
			if !yield(profile, nil) {
				return
			}
		}
	}
}

// ListProfiles collects Profiles.
func (p *Projection) ListProfiles(ctx context.Context) ([]*veil.Profile, error) {
	var profiles []*veil.Profile
	for profile, err := range p.Profiles(ctx) {
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// GetProfile returns the profile of owner. A record with exists=false is
// reported as absent.
func (p *Projection) GetProfile(ctx context.Context, owner common.Address) (*veil.Profile, bool, error) {
	profile, err := p.ledger.GetProfile(ctx, owner)
	if err != nil {
		return nil, false, err
	}
	if profile == nil || !profile.Exists {
		return nil, false, nil
	}
	return profile, true, nil
}

func (p *Projection) Sent(ctx context.Context, owner common.Address) ([]veil.EncryptedMessage, error) {
	return p.ledger.GetSentMessages(ctx, owner)
}

func (p *Projection) Received(ctx context.Context, owner common.Address) ([]veil.EncryptedMessage, error) {
	return p.ledger.GetReceivedMessages(ctx, owner)
}

// Mailbox holds both directions of an account's messages.
type Mailbox struct {
	Owner    common.Address
	Sent     []veil.EncryptedMessage
	Received []veil.EncryptedMessage
}

// Mailbox fetches the sent and received messages of owner concurrently.
func (p *Projection) Mailbox(ctx context.Context, owner common.Address) (*Mailbox, error) {
	box := &Mailbox{Owner: owner}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		box.Sent, err = p.ledger.GetSentMessages(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		box.Received, err = p.ledger.GetReceivedMessages(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return box, nil
}

// With returns the messages exchanged with peer, oldest first.
func (m *Mailbox) With(peer common.Address) []veil.EncryptedMessage {
	var thread []veil.EncryptedMessage
	for _, msg := range m.Sent {
		if msg.To == peer {
			thread = append(thread, msg)
		}
	}
	for _, msg := range m.Received {
		if msg.From == peer {
			thread = append(thread, msg)
		}
	}
	slices.SortStableFunc(thread, func(a, b veil.EncryptedMessage) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return thread
}

// Board is the latest profile listing. Refresh replaces it with a full
// re-read; a failed refresh keeps the previous listing.
type Board struct {
	projection *Projection

	lock     sync.RWMutex
	profiles []*veil.Profile
}

func NewBoard(projection *Projection) *Board {
	return &Board{projection: projection}
}

func (b *Board) Refresh(ctx context.Context) error {
	profiles, err := b.projection.ListProfiles(ctx)
	if err != nil {
		return err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.profiles = profiles
	return nil
}

func (b *Board) Profiles() []*veil.Profile {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return slices.Clone(b.profiles)
}
