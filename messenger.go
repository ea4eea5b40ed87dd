// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/cctp/payload"
	"github.com/luxfi/cctp/token"
)

var (
	ErrZeroAmount                 = errors.New("amount must be nonzero")
	ErrNoRemoteMessenger          = errors.New("no remote token messenger for domain")
	ErrLocalMinterNotSet          = errors.New("local minter not set")
	ErrLocalMinterAlreadySet      = errors.New("local minter already set")
	ErrTransferFailed             = errors.New("token transfer failed")
	ErrInvalidTransmitter         = errors.New("caller is not the local message transmitter")
	ErrRemoteMessengerUnsupported = errors.New("sender is not the remote token messenger for domain")
	ErrRemoteMessengerSet         = errors.New("remote token messenger already set for domain")
	ErrRemoteMessengerNotSet      = errors.New("no remote token messenger set for domain")
)

var _ MessageHandler = (*TokenMessenger)(nil)

// MessengerConfig configures a TokenMessenger.
type MessengerConfig struct {
	// Addr is the messenger's own identity. It is the envelope sender on
	// outbound bridge messages and the holding address deposits are
	// transferred to before burning.
	Addr ids.ID

	// Owner gates registry and binding mutators.
	Owner ids.ID

	// Transmitter is the local message transmitter bridge messages are sent
	// through and received from.
	Transmitter *MessageTransmitter

	// Tokens resolves burn tokens for the deposit-side transfer.
	Tokens *token.Registry

	// Pauser optionally gates the deposit and receive paths.
	Pauser Pauser

	// Sink receives observable events. Defaults to NoopSink.
	Sink Sink

	Log log.Logger
}

// TokenMessenger orchestrates the burn/mint bridge on top of the message
// transport: deposits burn locally and send a burn message; received burn
// messages mint through the bound local minter.
type TokenMessenger struct {
	addr        ids.ID
	owner       ids.ID
	transmitter *MessageTransmitter
	tokens      *token.Registry
	pauser      Pauser
	sink        Sink
	log         log.Logger

	mu               sync.Mutex
	localMinter      *TokenMinter
	remoteMessengers map[uint32]ids.ID
}

// NewTokenMessenger creates a messenger bound to its local transmitter and
// registers itself as the handler for messages addressed to cfg.Addr.
func NewTokenMessenger(cfg MessengerConfig) (*TokenMessenger, error) {
	sink := cfg.Sink
	if sink == nil {
		sink = NoopSink{}
	}
	m := &TokenMessenger{
		addr:             cfg.Addr,
		owner:            cfg.Owner,
		transmitter:      cfg.Transmitter,
		tokens:           cfg.Tokens,
		pauser:           cfg.Pauser,
		sink:             sink,
		log:              cfg.Log,
		remoteMessengers: make(map[uint32]ids.ID),
	}
	if err := cfg.Transmitter.RegisterHandler(cfg.Addr, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Addr returns the messenger's identity.
func (m *TokenMessenger) Addr() ids.ID {
	return m.addr
}

// DepositForBurn burns amount of burnToken from the caller and sends an
// unrestricted burn message instructing destinationDomain to mint to
// mintRecipient. Returns the transport nonce.
func (m *TokenMessenger) DepositForBurn(caller ids.ID, amount *uint256.Int, destinationDomain uint32, mintRecipient, burnToken ids.ID) (uint64, error) {
	return m.depositForBurn(caller, amount, destinationDomain, mintRecipient, burnToken, ids.Empty)
}

// DepositForBurnWithCaller is DepositForBurn restricted so that only
// destinationCaller may submit the receive on the destination domain. This
// path requires a restriction; use DepositForBurn for unrestricted delivery.
func (m *TokenMessenger) DepositForBurnWithCaller(caller ids.ID, amount *uint256.Int, destinationDomain uint32, mintRecipient, burnToken, destinationCaller ids.ID) (uint64, error) {
	if destinationCaller == ids.Empty {
		return 0, ErrInvalidDestinationCaller
	}
	return m.depositForBurn(caller, amount, destinationDomain, mintRecipient, burnToken, destinationCaller)
}

func (m *TokenMessenger) depositForBurn(caller ids.ID, amount *uint256.Int, destinationDomain uint32, mintRecipient, burnToken, destinationCaller ids.ID) (uint64, error) {
	if err := notPaused(m.pauser); err != nil {
		return 0, err
	}
	if amount == nil || amount.IsZero() {
		return 0, ErrZeroAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	remoteMessenger, ok := m.remoteMessengers[destinationDomain]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoRemoteMessenger, destinationDomain)
	}
	minter := m.localMinter
	if minter == nil {
		return 0, ErrLocalMinterNotSet
	}
	if _, ok := m.tokens.Get(burnToken); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, burnToken)
	}

	burnMessage := payload.NewBurnMessage(burnToken, mintRecipient, amount, caller)

	// The burn runs inside the transmitter's send critical section, after its
	// own preconditions have passed: a send-side rejection cannot strand
	// burned value, and a completed burn is always followed by the message.
	nonce, err := m.transmitter.sendWith(m.addr, destinationDomain, remoteMessenger, destinationCaller, burnMessage.Bytes(), func() error {
		return minter.BurnFrom(m.addr, caller, burnToken, amount)
	})
	if err != nil {
		return 0, err
	}

	m.sink.Emit(DepositForBurn{
		Nonce:                     nonce,
		BurnToken:                 burnToken,
		Amount:                    amount.Clone(),
		Depositor:                 caller,
		MintRecipient:             mintRecipient,
		DestinationDomain:         destinationDomain,
		DestinationTokenMessenger: remoteMessenger,
		DestinationCaller:         destinationCaller,
	})
	if m.log != nil {
		m.log.Debug("deposit for burn",
			log.Uint64("nonce", nonce),
			log.Uint32("destinationDomain", destinationDomain),
			log.Stringer("burnToken", burnToken),
		)
	}
	return nonce, nil
}

// ReplaceDepositForBurn re-targets a previously sent burn message to a new
// mint recipient and destination caller, keeping the original burn token,
// amount, and message sender. The caller must be the original message
// sender.
func (m *TokenMessenger) ReplaceDepositForBurn(caller ids.ID, originalMessage, originalAttestation []byte, newDestinationCaller, newMintRecipient ids.ID) error {
	original, err := ParseMessage(originalMessage)
	if err != nil {
		return err
	}
	originalBurn, err := payload.ParseBurnMessage(original.Body)
	if err != nil {
		return err
	}
	if originalBurn.MessageSender != caller {
		return fmt.Errorf("%w: message sender %s, caller %s", ErrInvalidSender, originalBurn.MessageSender, caller)
	}

	replacementBurn := payload.NewBurnMessage(
		originalBurn.BurnToken,
		newMintRecipient,
		originalBurn.Amount,
		originalBurn.MessageSender,
	)
	// The transmitter checks the envelope sender, which is this messenger.
	if _, err := m.transmitter.ReplaceMessage(m.addr, originalMessage, originalAttestation, newDestinationCaller, replacementBurn.Bytes()); err != nil {
		return err
	}

	m.sink.Emit(DepositForBurn{
		Nonce:                     original.Nonce,
		BurnToken:                 originalBurn.BurnToken,
		Amount:                    originalBurn.Amount.Clone(),
		Depositor:                 caller,
		MintRecipient:             newMintRecipient,
		DestinationDomain:         original.DestinationDomain,
		DestinationTokenMessenger: original.Recipient,
		DestinationCaller:         newDestinationCaller,
	})
	return nil
}

// HandleReceiveMessage implements MessageHandler. It is the mint side of the
// bridge: the envelope sender must be the registered remote messenger for
// sourceDomain and the body a supported burn message.
func (m *TokenMessenger) HandleReceiveMessage(caller ids.ID, sourceDomain uint32, sender ids.ID, body []byte) error {
	if err := notPaused(m.pauser); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.transmitter.Addr() {
		return fmt.Errorf("%w: %s", ErrInvalidTransmitter, caller)
	}
	remoteMessenger, ok := m.remoteMessengers[sourceDomain]
	if !ok || sender != remoteMessenger {
		return fmt.Errorf("%w: domain %d sender %s", ErrRemoteMessengerUnsupported, sourceDomain, sender)
	}

	burnMessage, err := payload.ParseBurnMessage(body)
	if err != nil {
		return err
	}
	minter := m.localMinter
	if minter == nil {
		return ErrLocalMinterNotSet
	}
	localToken, err := minter.GetEnabledLocalToken(sourceDomain, burnMessage.BurnToken)
	if err != nil {
		return err
	}
	if err := minter.Mint(m.addr, localToken, burnMessage.MintRecipient, burnMessage.Amount); err != nil {
		return err
	}

	m.sink.Emit(MintAndWithdraw{
		MintRecipient: burnMessage.MintRecipient,
		Amount:        burnMessage.Amount.Clone(),
		MintToken:     localToken,
	})
	if m.log != nil {
		m.log.Debug("mint and withdraw",
			log.Uint32("sourceDomain", sourceDomain),
			log.Stringer("mintToken", localToken),
			log.Stringer("mintRecipient", burnMessage.MintRecipient),
		)
	}
	return nil
}

// AddRemoteTokenMessenger registers the messenger identity for a remote
// domain. The slot must be empty; repointing requires an explicit removal
// first.
func (m *TokenMessenger) AddRemoteTokenMessenger(caller ids.ID, domain uint32, messenger ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	if messenger == ids.Empty {
		return ErrZeroIdentity
	}
	if _, ok := m.remoteMessengers[domain]; ok {
		return fmt.Errorf("%w: %d", ErrRemoteMessengerSet, domain)
	}
	m.remoteMessengers[domain] = messenger
	m.sink.Emit(RemoteTokenMessengerAdded{Domain: domain, Messenger: messenger})
	return nil
}

// RemoveRemoteTokenMessenger clears the messenger identity for a remote
// domain.
func (m *TokenMessenger) RemoveRemoteTokenMessenger(caller ids.ID, domain uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	removed, ok := m.remoteMessengers[domain]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRemoteMessengerNotSet, domain)
	}
	delete(m.remoteMessengers, domain)
	m.sink.Emit(RemoteTokenMessengerRemoved{Domain: domain, Messenger: removed})
	return nil
}

// AddLocalMinter binds the minter deposits burn through and receipts mint
// through.
func (m *TokenMessenger) AddLocalMinter(caller ids.ID, minter *TokenMinter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	if minter == nil {
		return ErrZeroIdentity
	}
	if m.localMinter != nil {
		return ErrLocalMinterAlreadySet
	}
	m.localMinter = minter
	m.sink.Emit(LocalMinterAdded{Minter: minter.Addr()})
	return nil
}

// RemoveLocalMinter clears the minter binding.
func (m *TokenMessenger) RemoveLocalMinter(caller ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	if m.localMinter == nil {
		return ErrLocalMinterNotSet
	}
	removed := m.localMinter.Addr()
	m.localMinter = nil
	m.sink.Emit(LocalMinterRemoved{Minter: removed})
	return nil
}
