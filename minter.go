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

	"github.com/luxfi/cctp/token"
)

var (
	ErrMintTokenNotSupported = errors.New("mint token not supported")
	ErrBurnTokenNotSupported = errors.New("burn token not supported")
	ErrMintFailed            = errors.New("mint failed")
	ErrAlreadyLinked         = errors.New("token pair already linked")
	ErrNotLinked             = errors.New("token pair not linked")
	ErrLocalTokenNotEnabled  = errors.New("local token not enabled")
	ErrMessengerAlreadySet   = errors.New("local token messenger already set")
	ErrMessengerNotSet       = errors.New("local token messenger not set")
	ErrUnknownToken          = errors.New("token not registered")
)

type remoteTokenKey struct {
	domain uint32
	token  ids.ID
}

// MinterConfig configures a TokenMinter.
type MinterConfig struct {
	// Addr is the minter's own identity; it is the holding address burned
	// tokens must be transferred to before Burn.
	Addr ids.ID

	// Owner gates registry and binding mutators.
	Owner ids.ID

	// Tokens resolves token identities to their primitives.
	Tokens *token.Registry

	// Pauser optionally gates mint and burn.
	Pauser Pauser

	// Sink receives observable events. Defaults to NoopSink.
	Sink Sink

	Log log.Logger
}

// TokenMinter owns the local-token allow-list and the remote-token to
// local-token registry. Mint and burn are gated to exactly one registered
// local messenger.
type TokenMinter struct {
	addr   ids.ID
	owner  ids.ID
	tokens *token.Registry
	pauser Pauser
	sink   Sink
	log    log.Logger

	mu             sync.Mutex
	localMessenger ids.ID
	localTokens    map[ids.ID]bool
	remoteTokens   map[remoteTokenKey]ids.ID
}

// NewTokenMinter creates a minter with empty registries and no messenger
// bound.
func NewTokenMinter(cfg MinterConfig) *TokenMinter {
	sink := cfg.Sink
	if sink == nil {
		sink = NoopSink{}
	}
	return &TokenMinter{
		addr:         cfg.Addr,
		owner:        cfg.Owner,
		tokens:       cfg.Tokens,
		pauser:       cfg.Pauser,
		sink:         sink,
		log:          cfg.Log,
		localTokens:  make(map[ids.ID]bool),
		remoteTokens: make(map[remoteTokenKey]ids.ID),
	}
}

// Addr returns the minter's identity.
func (m *TokenMinter) Addr() ids.ID {
	return m.addr
}

// Mint credits amount of localToken to the recipient. Only the bound local
// messenger may call, and only for enabled tokens.
func (m *TokenMinter) Mint(caller, localToken, to ids.ID, amount *uint256.Int) error {
	if err := notPaused(m.pauser); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.localMessenger == ids.Empty || caller != m.localMessenger {
		return ErrUnauthorized
	}
	if !m.localTokens[localToken] {
		return fmt.Errorf("%w: %s", ErrMintTokenNotSupported, localToken)
	}
	primitive, ok := m.tokens.Get(localToken)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, localToken)
	}
	if !primitive.Mint(to, amount) {
		return fmt.Errorf("%w: token %s", ErrMintFailed, localToken)
	}
	if m.log != nil {
		m.log.Debug("minted",
			log.Stringer("token", localToken),
			log.Stringer("to", to),
		)
	}
	return nil
}

// Burn destroys amount of localToken from the minter's own held balance. The
// caller is responsible for having transferred the tokens to the minter
// beforehand.
func (m *TokenMinter) Burn(caller, localToken ids.ID, amount *uint256.Int) error {
	if err := notPaused(m.pauser); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.localMessenger == ids.Empty || caller != m.localMessenger {
		return ErrUnauthorized
	}
	if !m.localTokens[localToken] {
		return fmt.Errorf("%w: %s", ErrBurnTokenNotSupported, localToken)
	}
	primitive, ok := m.tokens.Get(localToken)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, localToken)
	}
	primitive.Burn(m.addr, amount)
	return nil
}

// BurnFrom pulls amount of localToken from holder into the minter's holding
// address and burns it in one step. The holder's allowance must have been
// granted to the calling messenger. Every precondition is checked before the
// transfer, and the burn itself cannot fail, so value moves only when the
// whole operation succeeds.
func (m *TokenMinter) BurnFrom(caller, holder, localToken ids.ID, amount *uint256.Int) error {
	if err := notPaused(m.pauser); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.localMessenger == ids.Empty || caller != m.localMessenger {
		return ErrUnauthorized
	}
	if !m.localTokens[localToken] {
		return fmt.Errorf("%w: %s", ErrBurnTokenNotSupported, localToken)
	}
	primitive, ok := m.tokens.Get(localToken)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, localToken)
	}
	if !primitive.TransferFrom(caller, holder, m.addr, amount) {
		return fmt.Errorf("%w: token %s", ErrTransferFailed, localToken)
	}
	primitive.Burn(m.addr, amount)
	return nil
}

// LinkTokenPair maps (remoteDomain, remoteToken) to localToken. The slot must
// be empty; repointing a pair requires an explicit unlink first.
func (m *TokenMinter) LinkTokenPair(caller, localToken ids.ID, remoteDomain uint32, remoteToken ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	key := remoteTokenKey{domain: remoteDomain, token: remoteToken}
	if _, linked := m.remoteTokens[key]; linked {
		return fmt.Errorf("%w: domain %d token %s", ErrAlreadyLinked, remoteDomain, remoteToken)
	}
	m.remoteTokens[key] = localToken
	m.sink.Emit(TokenPairLinked{LocalToken: localToken, RemoteDomain: remoteDomain, RemoteToken: remoteToken})
	return nil
}

// UnlinkTokenPair clears the (remoteDomain, remoteToken) slot.
func (m *TokenMinter) UnlinkTokenPair(caller, localToken ids.ID, remoteDomain uint32, remoteToken ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	key := remoteTokenKey{domain: remoteDomain, token: remoteToken}
	if _, linked := m.remoteTokens[key]; !linked {
		return fmt.Errorf("%w: domain %d token %s", ErrNotLinked, remoteDomain, remoteToken)
	}
	delete(m.remoteTokens, key)
	m.sink.Emit(TokenPairUnlinked{LocalToken: localToken, RemoteDomain: remoteDomain, RemoteToken: remoteToken})
	return nil
}

// SetLocalTokenEnabledStatus flips the allow-list flag for localToken.
// Enabling is independent of linking; a linked-but-disabled token is not
// mintable.
func (m *TokenMinter) SetLocalTokenEnabledStatus(caller, localToken ids.ID, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	m.localTokens[localToken] = enabled
	m.sink.Emit(LocalTokenEnabledStatusSet{LocalToken: localToken, Enabled: enabled})
	return nil
}

// GetEnabledLocalToken resolves the local token for (remoteDomain,
// remoteToken). Both the link and the enabled flag are required; disabling a
// token breaks lookups without touching the link.
func (m *TokenMinter) GetEnabledLocalToken(remoteDomain uint32, remoteToken ids.ID) (ids.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	localToken, linked := m.remoteTokens[remoteTokenKey{domain: remoteDomain, token: remoteToken}]
	if !linked || !m.localTokens[localToken] {
		return ids.Empty, fmt.Errorf("%w: domain %d token %s", ErrLocalTokenNotEnabled, remoteDomain, remoteToken)
	}
	return localToken, nil
}

// AddLocalTokenMessenger binds the one identity authorized to mint and burn.
func (m *TokenMinter) AddLocalTokenMessenger(caller, messenger ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	if messenger == ids.Empty {
		return ErrZeroIdentity
	}
	if m.localMessenger != ids.Empty {
		return ErrMessengerAlreadySet
	}
	m.localMessenger = messenger
	m.sink.Emit(LocalTokenMessengerAdded{Messenger: messenger})
	return nil
}

// RemoveLocalTokenMessenger clears the messenger binding.
func (m *TokenMinter) RemoveLocalTokenMessenger(caller ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	if m.localMessenger == ids.Empty {
		return ErrMessengerNotSet
	}
	removed := m.localMessenger
	m.localMessenger = ids.Empty
	m.sink.Emit(LocalTokenMessengerRemoved{Messenger: removed})
	return nil
}
