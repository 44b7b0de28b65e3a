// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"errors"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/rpc"
)

const (
	revertPrefix = "execution reverted"

	// MissingRevertDataHint replaces failures that carry no reason at all.
	MissingRevertDataHint = "transaction failed without a reason; check the contract address, the network, and the gas balance"
)

// RevertReason extracts the most specific reason from a failed call or gas
// estimate: the decoded Error(string) payload first, then the node's message.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil && reason != "" {
					return reason
				}
			}
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, revertPrefix+": "); idx >= 0 {
		if reason := strings.TrimSpace(msg[idx+len(revertPrefix)+2:]); reason != "" {
			return reason
		}
	}
	if isMissingRevertData(msg) {
		return MissingRevertDataHint
	}
	return msg
}

func isMissingRevertData(msg string) bool {
	return strings.TrimSpace(msg) == revertPrefix ||
		strings.Contains(msg, "missing revert data") ||
		strings.Contains(msg, "CALL_EXCEPTION")
}
