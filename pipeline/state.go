// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package pipeline

import (
	"github.com/google/uuid"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/veil"
	"github.com/luxfi/veil/vms/evm"
)

type Stage uint8

const (
	StageIdle Stage = iota
	StageEncoding
	StageEncrypting
	StageNetworkCheck
	StageEstimating
	StageSubmitted
	StageConfirmed
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageEncoding:
		return "encoding"
	case StageEncrypting:
		return "encrypting"
	case StageNetworkCheck:
		return "network_check"
	case StageEstimating:
		return "estimating"
	case StageSubmitted:
		return "submitted"
	case StageConfirmed:
		return "confirmed"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Stage) Terminal() bool {
	return s == StageConfirmed || s == StageFailed
}

// State is one step of a submission. Each state carries the data produced
// on the way into it.
type State interface {
	Stage() Stage
}

type Idle struct{}

type Encoding struct {
	Text string
}

type Encrypting struct {
	Payload veil.EncodedPayload
}

// NetworkCheck carries the bundle for message submissions; it is nil for
// profile submissions.
type NetworkCheck struct {
	Bundle *veil.CiphertextBundle
}

type Estimating struct {
	Call evm.Call
}

type Submitted struct {
	TxHash common.Hash
	Gas    uint64
}

type Confirmed struct {
	TxHash  common.Hash
	Receipt *types.Receipt
}

// Failed is terminal and records the stage the submission failed in.
// Submitted is entered only once the transaction has a hash, so a send the
// node or wallet rejects fails in StageEstimating with KindTransactionFailed.
type Failed struct {
	In  Stage
	Err error
}

func (Idle) Stage() Stage         { return StageIdle }
func (Encoding) Stage() Stage     { return StageEncoding }
func (Encrypting) Stage() Stage   { return StageEncrypting }
func (NetworkCheck) Stage() Stage { return StageNetworkCheck }
func (Estimating) Stage() Stage   { return StageEstimating }
func (Submitted) Stage() Stage    { return StageSubmitted }
func (Confirmed) Stage() Stage    { return StageConfirmed }
func (Failed) Stage() Stage       { return StageFailed }

// Observer sees every state a submission enters, in order.
type Observer func(id uuid.UUID, state State)

// Result describes a confirmed submission.
type Result struct {
	ID          uuid.UUID
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}
