// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// Event is implemented by every observable event emitted by the protocol
// components.
type Event interface {
	event()
}

// Sink receives emitted events. Attesters observe MessageSent through a sink;
// everything else is operational visibility.
type Sink interface {
	Emit(ev Event)
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) Emit(Event) {}

// MessageSent carries the wire bytes of an outbound envelope. Its hash is
// what attesters sign.
type MessageSent struct {
	Message []byte
}

// MessageReceived is emitted after an envelope has been accepted and
// dispatched on the destination domain.
type MessageReceived struct {
	Caller       ids.ID
	SourceDomain uint32
	Nonce        uint64
	Sender       ids.ID
	Body         []byte
}

// MaxBodySizeUpdated is emitted when the transmitter's body size limit
// changes.
type MaxBodySizeUpdated struct {
	NewMaxBodySize int
}

// DepositForBurn is emitted on the source domain when a deposit has been
// burned and its bridge message sent.
type DepositForBurn struct {
	Nonce                     uint64
	BurnToken                 ids.ID
	Amount                    *uint256.Int
	Depositor                 ids.ID
	MintRecipient             ids.ID
	DestinationDomain         uint32
	DestinationTokenMessenger ids.ID
	DestinationCaller         ids.ID
}

// MintAndWithdraw is emitted on the destination domain when a bridge message
// has been minted out.
type MintAndWithdraw struct {
	MintRecipient ids.ID
	Amount        *uint256.Int
	MintToken     ids.ID
}

// RemoteTokenMessengerAdded and RemoteTokenMessengerRemoved track the remote
// messenger registry.
type RemoteTokenMessengerAdded struct {
	Domain    uint32
	Messenger ids.ID
}

type RemoteTokenMessengerRemoved struct {
	Domain    uint32
	Messenger ids.ID
}

// LocalMinterAdded and LocalMinterRemoved track the messenger's minter
// binding.
type LocalMinterAdded struct {
	Minter ids.ID
}

type LocalMinterRemoved struct {
	Minter ids.ID
}

// TokenPairLinked and TokenPairUnlinked track the minter's token registry.
type TokenPairLinked struct {
	LocalToken   ids.ID
	RemoteDomain uint32
	RemoteToken  ids.ID
}

type TokenPairUnlinked struct {
	LocalToken   ids.ID
	RemoteDomain uint32
	RemoteToken  ids.ID
}

// LocalTokenEnabledStatusSet tracks the minter's local token allow-list.
type LocalTokenEnabledStatusSet struct {
	LocalToken ids.ID
	Enabled    bool
}

// LocalTokenMessengerAdded and LocalTokenMessengerRemoved track the minter's
// messenger binding.
type LocalTokenMessengerAdded struct {
	Messenger ids.ID
}

type LocalTokenMessengerRemoved struct {
	Messenger ids.ID
}

func (MessageSent) event()                 {}
func (MessageReceived) event()             {}
func (MaxBodySizeUpdated) event()          {}
func (DepositForBurn) event()              {}
func (MintAndWithdraw) event()             {}
func (RemoteTokenMessengerAdded) event()   {}
func (RemoteTokenMessengerRemoved) event() {}
func (LocalMinterAdded) event()            {}
func (LocalMinterRemoved) event()          {}
func (TokenPairLinked) event()             {}
func (TokenPairUnlinked) event()           {}
func (LocalTokenEnabledStatusSet) event()  {}
func (LocalTokenMessengerAdded) event()    {}
func (LocalTokenMessengerRemoved) event()  {}
