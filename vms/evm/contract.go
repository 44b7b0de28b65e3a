// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/veil"
)

const (
	getAllUsersMethod         = "getAllUsers"
	getProfileMethod          = "getProfile"
	getSentMessagesMethod     = "getSentMessages"
	getReceivedMessagesMethod = "getReceivedMessages"
	createProfileMethod       = "createProfile"
	sendMessageMethod         = "sendMessage"
)

// LedgerABI is the interface of the profile and message contract.
const LedgerABI = `[
  {"type":"function","name":"getAllUsers","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"getProfile","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"owner","type":"address"},{"name":"avatar","type":"string"},
              {"name":"socialLinks","type":"string"},{"name":"description","type":"string"},
              {"name":"exists","type":"bool"},{"name":"createdAt","type":"uint256"}]},
  {"type":"function","name":"getSentMessages","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"to","type":"address[]"},{"name":"messages","type":"bytes32[]"},
              {"name":"timestamps","type":"uint256[]"}]},
  {"type":"function","name":"getReceivedMessages","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"from","type":"address[]"},{"name":"messages","type":"bytes32[]"},
              {"name":"timestamps","type":"uint256[]"}]},
  {"type":"function","name":"createProfile","stateMutability":"nonpayable",
   "inputs":[{"name":"avatar","type":"string"},{"name":"socialLinks","type":"string"},
             {"name":"description","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"sendMessage","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"encryptedMessage","type":"bytes32"},
             {"name":"attestation","type":"bytes"}],
   "outputs":[]}
]`

var (
	ErrZeroContract   = errors.New("contract address not configured")
	ErrLengthMismatch = errors.New("message arrays differ in length")
)

// Contract packs calls to and unpacks results from the ledger contract.
type Contract struct {
	abi     abi.ABI
	address common.Address
}

func NewContract(address common.Address) (*Contract, error) {
	if address == (common.Address{}) {
		return nil, ErrZeroContract
	}
	parsed, err := abi.JSON(strings.NewReader(LedgerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger ABI: %w", err)
	}
	return &Contract{
		abi:     parsed,
		address: address,
	}, nil
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) PackCreateProfile(avatar, socialLinks, description string) ([]byte, error) {
	return c.abi.Pack(createProfileMethod, avatar, socialLinks, description)
}

func (c *Contract) PackSendMessage(to common.Address, handle veil.Handle, attestation []byte) ([]byte, error) {
	return c.abi.Pack(sendMessageMethod, to, [32]byte(handle), attestation)
}

func (c *Contract) PackGetAllUsers() ([]byte, error) {
	return c.abi.Pack(getAllUsersMethod)
}

func (c *Contract) PackGetProfile(user common.Address) ([]byte, error) {
	return c.abi.Pack(getProfileMethod, user)
}

func (c *Contract) PackGetSentMessages(user common.Address) ([]byte, error) {
	return c.abi.Pack(getSentMessagesMethod, user)
}

func (c *Contract) PackGetReceivedMessages(user common.Address) ([]byte, error) {
	return c.abi.Pack(getReceivedMessagesMethod, user)
}

func (c *Contract) UnpackGetAllUsers(data []byte) ([]common.Address, error) {
	out, err := c.abi.Unpack(getAllUsersMethod, data)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

func (c *Contract) UnpackGetProfile(data []byte) (*veil.Profile, error) {
	out, err := c.abi.Unpack(getProfileMethod, data)
	if err != nil {
		return nil, err
	}
	createdAt, err := toUint64(*abi.ConvertType(out[5], new(*big.Int)).(**big.Int))
	if err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	return &veil.Profile{
		Owner:       *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Avatar:      *abi.ConvertType(out[1], new(string)).(*string),
		SocialLinks: *abi.ConvertType(out[2], new(string)).(*string),
		Description: *abi.ConvertType(out[3], new(string)).(*string),
		Exists:      *abi.ConvertType(out[4], new(bool)).(*bool),
		CreatedAt:   createdAt,
	}, nil
}

// UnpackGetSentMessages builds records from the (to[], payload[], timestamp[])
// result of getSentMessages(owner).
func (c *Contract) UnpackGetSentMessages(owner common.Address, data []byte) ([]veil.EncryptedMessage, error) {
	counterparties, payloads, timestamps, err := c.unpackMessages(getSentMessagesMethod, data)
	if err != nil {
		return nil, err
	}
	msgs := make([]veil.EncryptedMessage, len(counterparties))
	for i := range counterparties {
		msgs[i] = veil.EncryptedMessage{
			From:      owner,
			To:        counterparties[i],
			Payload:   veil.Handle(payloads[i]),
			Timestamp: timestamps[i],
		}
	}
	return msgs, nil
}

// UnpackGetReceivedMessages builds records from the (from[], payload[],
// timestamp[]) result of getReceivedMessages(owner).
func (c *Contract) UnpackGetReceivedMessages(owner common.Address, data []byte) ([]veil.EncryptedMessage, error) {
	counterparties, payloads, timestamps, err := c.unpackMessages(getReceivedMessagesMethod, data)
	if err != nil {
		return nil, err
	}
	msgs := make([]veil.EncryptedMessage, len(counterparties))
	for i := range counterparties {
		msgs[i] = veil.EncryptedMessage{
			From:      counterparties[i],
			To:        owner,
			Payload:   veil.Handle(payloads[i]),
			Timestamp: timestamps[i],
		}
	}
	return msgs, nil
}

func (c *Contract) unpackMessages(method string, data []byte) ([]common.Address, [][32]byte, []uint64, error) {
	out, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, nil, nil, err
	}
	counterparties := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	payloads := *abi.ConvertType(out[1], new([][32]byte)).(*[][32]byte)
	rawTimestamps := *abi.ConvertType(out[2], new([]*big.Int)).(*[]*big.Int)
	if len(payloads) != len(counterparties) || len(rawTimestamps) != len(counterparties) {
		return nil, nil, nil, fmt.Errorf(
			"%w: %d addresses, %d payloads, %d timestamps",
			ErrLengthMismatch, len(counterparties), len(payloads), len(rawTimestamps),
		)
	}
	timestamps := make([]uint64, len(rawTimestamps))
	for i, ts := range rawTimestamps {
		if timestamps[i], err = toUint64(ts); err != nil {
			return nil, nil, nil, fmt.Errorf("timestamp %d: %w", i, err)
		}
	}
	return counterparties, payloads, timestamps, nil
}
