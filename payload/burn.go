// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package payload defines the message bodies carried inside cctp envelopes.
// The only body format currently defined is the burn/mint payload.
package payload

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

const (
	// BurnMessageVersion is the burn body format version emitted by this
	// package.
	BurnMessageVersion = 0

	// BurnMessageLen is the exact burn body size:
	// version(4) | burnToken(32) | mintRecipient(32) | amount(32) |
	// messageSender(32)
	BurnMessageLen = 4 + 32 + 32 + 32 + 32
)

var (
	ErrMalformedBurnMessage = errors.New("malformed burn message")
	ErrUnsupportedVersion   = errors.New("unsupported burn message version")
)

// BurnMessage instructs the destination domain to mint Amount of the token
// paired with BurnToken to MintRecipient. MessageSender records the identity
// that initiated the deposit on the source domain.
type BurnMessage struct {
	Version       uint32
	BurnToken     ids.ID
	MintRecipient ids.ID
	Amount        *uint256.Int
	MessageSender ids.ID
}

// NewBurnMessage builds a burn body at the current version.
func NewBurnMessage(burnToken, mintRecipient ids.ID, amount *uint256.Int, messageSender ids.ID) *BurnMessage {
	return &BurnMessage{
		Version:       BurnMessageVersion,
		BurnToken:     burnToken,
		MintRecipient: mintRecipient,
		Amount:        amount,
		MessageSender: messageSender,
	}
}

// Bytes returns the fixed-width wire encoding of the burn body. The amount
// occupies 32 bytes, big-endian, with no padding ambiguity.
func (m *BurnMessage) Bytes() []byte {
	buf := make([]byte, BurnMessageLen)
	binary.BigEndian.PutUint32(buf[0:], m.Version)
	copy(buf[4:], m.BurnToken[:])
	copy(buf[36:], m.MintRecipient[:])
	amount := m.Amount.Bytes32()
	copy(buf[68:], amount[:])
	copy(buf[100:], m.MessageSender[:])
	return buf
}

// ParseBurnMessage decodes a burn body. The length must exactly match the
// fixed width for the version; unknown versions fail closed.
func ParseBurnMessage(b []byte) (*BurnMessage, error) {
	if len(b) != BurnMessageLen {
		return nil, fmt.Errorf("%w: length %d, expected %d", ErrMalformedBurnMessage, len(b), BurnMessageLen)
	}
	version := binary.BigEndian.Uint32(b[0:])
	if version != BurnMessageVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	msg := &BurnMessage{
		Version: version,
		Amount:  new(uint256.Int).SetBytes(b[68:100]),
	}
	copy(msg.BurnToken[:], b[4:36])
	copy(msg.MintRecipient[:], b[36:68])
	copy(msg.MessageSender[:], b[100:132])
	return msg, nil
}
