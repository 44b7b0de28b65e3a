// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package veil

import (
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"
	"github.com/luxfi/ids"
)

// HandleLen is the size of a ciphertext handle in bytes.
const HandleLen = 32

var (
	ErrEmptyHandle        = errors.New("empty ciphertext handle")
	ErrInvalidHandle      = errors.New("invalid ciphertext handle")
	ErrMissingAttestation = errors.New("ciphertext bundle has no attestation")
)

// Handle is an opaque reference into the confidential-computing backend's
// ciphertext store. It never carries plaintext.
type Handle [HandleLen]byte

// HandleFromBytes copies b into a Handle. b must be exactly HandleLen bytes.
func HandleFromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleLen {
		return h, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHandle, len(b), HandleLen)
	}
	copy(h[:], b)
	return h, nil
}

func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) String() string {
	return common.Hash(h).Hex()
}

// CiphertextBundle is an encrypted value plus the attestation binding it to a
// single (contract, sender) pair. The consuming contract rejects it under any
// other pair; the pipeline only forwards what the oracle issued.
type CiphertextBundle struct {
	Handle      Handle
	Attestation []byte
	Contract    common.Address
	Sender      common.Address
}

// Verify checks the bundle is structurally usable.
func (b *CiphertextBundle) Verify() error {
	if b.Handle.IsZero() {
		return ErrEmptyHandle
	}
	if len(b.Attestation) == 0 {
		return ErrMissingAttestation
	}
	return nil
}

// EncryptedMessage is an on-chain message record.
type EncryptedMessage struct {
	From      common.Address
	To        common.Address
	Payload   Handle
	Timestamp uint64
}

type messageRecord struct {
	From      common.Address
	To        common.Address
	Payload   []byte
	Timestamp uint64
}

// ID returns a content-derived identifier for the record.
func (m *EncryptedMessage) ID() ids.ID {
	b, err := rlp.EncodeToBytes(&messageRecord{
		From:      m.From,
		To:        m.To,
		Payload:   m.Payload[:],
		Timestamp: m.Timestamp,
	})
	if err != nil {
		// only fixed-size fields; encoding cannot fail
		panic(err)
	}
	return ids.ID(crypto.Keccak256Hash(b))
}
