// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/crypto/common"
	"github.com/luxfi/ids"
)

const (
	// MessageVersion is the envelope format version emitted by this package.
	MessageVersion = 0

	// HeaderLen is the fixed envelope header size:
	// version(4) | sourceDomain(4) | destinationDomain(4) | nonce(8) |
	// sender(32) | recipient(32) | destinationCaller(32)
	HeaderLen = 4 + 4 + 4 + 8 + 32 + 32 + 32

	// MaxBodySize is the default limit on envelope body length.
	MaxBodySize = 8192
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrBodyTooLarge     = errors.New("message body too large")
)

// Message is the transport envelope carried between domains. The body is
// opaque to the transmitter; only the recipient interprets it. A zero
// DestinationCaller means any caller may submit the message at the
// destination.
type Message struct {
	Version           uint32
	SourceDomain      uint32
	DestinationDomain uint32
	Nonce             uint64
	Sender            ids.ID
	Recipient         ids.ID
	DestinationCaller ids.ID
	Body              []byte
}

// Bytes returns the wire encoding of the message: fixed-width big-endian
// header fields followed by the raw body.
func (m *Message) Bytes() []byte {
	buf := make([]byte, HeaderLen+len(m.Body))
	binary.BigEndian.PutUint32(buf[0:], m.Version)
	binary.BigEndian.PutUint32(buf[4:], m.SourceDomain)
	binary.BigEndian.PutUint32(buf[8:], m.DestinationDomain)
	binary.BigEndian.PutUint64(buf[12:], m.Nonce)
	copy(buf[20:], m.Sender[:])
	copy(buf[52:], m.Recipient[:])
	copy(buf[84:], m.DestinationCaller[:])
	copy(buf[HeaderLen:], m.Body)
	return buf
}

// Hash returns the Keccak-256 digest of the wire encoding. This is the
// payload attesters sign.
func (m *Message) Hash() common.Hash {
	return MessageHash(m.Bytes())
}

// MessageHash returns the Keccak-256 digest of raw envelope bytes.
func MessageHash(messageBytes []byte) common.Hash {
	return common.BytesToHash(crypto.Keccak256(messageBytes))
}

// ParseMessage decodes an envelope from bytes. Only structural
// well-formedness is checked; field values are not interpreted. The returned
// message's Body aliases b rather than copying it.
func ParseMessage(b []byte) (*Message, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("%w: length %d below header size %d", ErrMalformedMessage, len(b), HeaderLen)
	}
	msg := &Message{
		Version:           binary.BigEndian.Uint32(b[0:]),
		SourceDomain:      binary.BigEndian.Uint32(b[4:]),
		DestinationDomain: binary.BigEndian.Uint32(b[8:]),
		Nonce:             binary.BigEndian.Uint64(b[12:]),
		Body:              b[HeaderLen:],
	}
	copy(msg.Sender[:], b[20:52])
	copy(msg.Recipient[:], b[52:84])
	copy(msg.DestinationCaller[:], b[84:116])
	return msg, nil
}
