// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/cctp/token"
)

type minterFixture struct {
	minter    *TokenMinter
	tokens    *token.Registry
	primitive *token.FakeToken
	owner     ids.ID
	messenger ids.ID
	localT    ids.ID
	remoteT   ids.ID
}

func newMinterFixture(t *testing.T) *minterFixture {
	t.Helper()
	f := &minterFixture{
		tokens:    token.NewRegistry(),
		primitive: token.NewFakeToken(),
		owner:     ids.GenerateTestID(),
		messenger: ids.GenerateTestID(),
		localT:    ids.GenerateTestID(),
		remoteT:   ids.GenerateTestID(),
	}
	f.tokens.Register(f.localT, f.primitive)
	f.minter = NewTokenMinter(MinterConfig{
		Addr:   ids.GenerateTestID(),
		Owner:  f.owner,
		Tokens: f.tokens,
	})
	require.NoError(t, f.minter.AddLocalTokenMessenger(f.owner, f.messenger))
	require.NoError(t, f.minter.SetLocalTokenEnabledStatus(f.owner, f.localT, true))
	return f
}

func TestMint(t *testing.T) {
	f := newMinterFixture(t)
	recipient := ids.GenerateTestID()
	amount := uint256.NewInt(25)

	require.NoError(t, f.minter.Mint(f.messenger, f.localT, recipient, amount))
	require.True(t, f.primitive.BalanceOf(recipient).Eq(amount))

	t.Run("unauthorized caller", func(t *testing.T) {
		err := f.minter.Mint(ids.GenerateTestID(), f.localT, recipient, amount)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("disabled token", func(t *testing.T) {
		require.NoError(t, f.minter.SetLocalTokenEnabledStatus(f.owner, f.localT, false))
		err := f.minter.Mint(f.messenger, f.localT, recipient, amount)
		require.ErrorIs(t, err, ErrMintTokenNotSupported)
		require.NoError(t, f.minter.SetLocalTokenEnabledStatus(f.owner, f.localT, true))
	})

	t.Run("unknown token", func(t *testing.T) {
		unknown := ids.GenerateTestID()
		require.NoError(t, f.minter.SetLocalTokenEnabledStatus(f.owner, unknown, true))
		err := f.minter.Mint(f.messenger, unknown, recipient, amount)
		require.ErrorIs(t, err, ErrUnknownToken)
	})
}

func TestBurn(t *testing.T) {
	f := newMinterFixture(t)

	// Tokens must already sit at the minter's holding address.
	f.primitive.Mint(f.minter.Addr(), uint256.NewInt(100))

	require.NoError(t, f.minter.Burn(f.messenger, f.localT, uint256.NewInt(40)))
	require.True(t, f.primitive.BalanceOf(f.minter.Addr()).Eq(uint256.NewInt(60)))

	err := f.minter.Burn(ids.GenerateTestID(), f.localT, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.minter.SetLocalTokenEnabledStatus(f.owner, f.localT, false))
	err = f.minter.Burn(f.messenger, f.localT, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrBurnTokenNotSupported)
}

func TestBurnFrom(t *testing.T) {
	f := newMinterFixture(t)
	holder := ids.GenerateTestID()

	f.primitive.Mint(holder, uint256.NewInt(100))
	f.primitive.Approve(holder, f.messenger, uint256.NewInt(50))

	require.NoError(t, f.minter.BurnFrom(f.messenger, holder, f.localT, uint256.NewInt(30)))
	require.True(t, f.primitive.BalanceOf(holder).Eq(uint256.NewInt(70)))
	require.True(t, f.primitive.BalanceOf(f.minter.Addr()).IsZero())

	t.Run("insufficient allowance", func(t *testing.T) {
		err := f.minter.BurnFrom(f.messenger, holder, f.localT, uint256.NewInt(40))
		require.ErrorIs(t, err, ErrTransferFailed)
		require.True(t, f.primitive.BalanceOf(holder).Eq(uint256.NewInt(70)))
	})

	t.Run("unauthorized caller", func(t *testing.T) {
		err := f.minter.BurnFrom(ids.GenerateTestID(), holder, f.localT, uint256.NewInt(1))
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("disabled token moves nothing", func(t *testing.T) {
		require.NoError(t, f.minter.SetLocalTokenEnabledStatus(f.owner, f.localT, false))
		err := f.minter.BurnFrom(f.messenger, holder, f.localT, uint256.NewInt(1))
		require.ErrorIs(t, err, ErrBurnTokenNotSupported)
		require.True(t, f.primitive.BalanceOf(holder).Eq(uint256.NewInt(70)))
	})
}

func TestLinkTokenPair(t *testing.T) {
	f := newMinterFixture(t)
	remoteDomain := uint32(3)

	require.NoError(t, f.minter.LinkTokenPair(f.owner, f.localT, remoteDomain, f.remoteT))

	// The slot must be explicitly freed before repointing.
	err := f.minter.LinkTokenPair(f.owner, f.localT, remoteDomain, f.remoteT)
	require.ErrorIs(t, err, ErrAlreadyLinked)
	err = f.minter.LinkTokenPair(f.owner, ids.GenerateTestID(), remoteDomain, f.remoteT)
	require.ErrorIs(t, err, ErrAlreadyLinked)

	require.NoError(t, f.minter.UnlinkTokenPair(f.owner, f.localT, remoteDomain, f.remoteT))
	err = f.minter.UnlinkTokenPair(f.owner, f.localT, remoteDomain, f.remoteT)
	require.ErrorIs(t, err, ErrNotLinked)

	require.NoError(t, f.minter.LinkTokenPair(f.owner, f.localT, remoteDomain, f.remoteT))

	t.Run("unauthorized", func(t *testing.T) {
		intruder := ids.GenerateTestID()
		require.ErrorIs(t, f.minter.LinkTokenPair(intruder, f.localT, 9, f.remoteT), ErrUnauthorized)
		require.ErrorIs(t, f.minter.UnlinkTokenPair(intruder, f.localT, remoteDomain, f.remoteT), ErrUnauthorized)
	})
}

func TestGetEnabledLocalToken(t *testing.T) {
	f := newMinterFixture(t)
	remoteDomain := uint32(3)

	// Not linked yet.
	_, err := f.minter.GetEnabledLocalToken(remoteDomain, f.remoteT)
	require.ErrorIs(t, err, ErrLocalTokenNotEnabled)

	require.NoError(t, f.minter.LinkTokenPair(f.owner, f.localT, remoteDomain, f.remoteT))

	localToken, err := f.minter.GetEnabledLocalToken(remoteDomain, f.remoteT)
	require.NoError(t, err)
	require.Equal(t, f.localT, localToken)

	// The same remote token id on another domain is a distinct slot.
	_, err = f.minter.GetEnabledLocalToken(remoteDomain+1, f.remoteT)
	require.ErrorIs(t, err, ErrLocalTokenNotEnabled)

	// Disabling breaks lookups without touching the link.
	require.NoError(t, f.minter.SetLocalTokenEnabledStatus(f.owner, f.localT, false))
	_, err = f.minter.GetEnabledLocalToken(remoteDomain, f.remoteT)
	require.ErrorIs(t, err, ErrLocalTokenNotEnabled)

	require.NoError(t, f.minter.SetLocalTokenEnabledStatus(f.owner, f.localT, true))
	localToken, err = f.minter.GetEnabledLocalToken(remoteDomain, f.remoteT)
	require.NoError(t, err)
	require.Equal(t, f.localT, localToken)
}

func TestLocalTokenMessengerBinding(t *testing.T) {
	owner := ids.GenerateTestID()
	minter := NewTokenMinter(MinterConfig{
		Addr:   ids.GenerateTestID(),
		Owner:  owner,
		Tokens: token.NewRegistry(),
	})

	require.ErrorIs(t, minter.RemoveLocalTokenMessenger(owner), ErrMessengerNotSet)
	require.ErrorIs(t, minter.AddLocalTokenMessenger(owner, ids.Empty), ErrZeroIdentity)

	messenger := ids.GenerateTestID()
	require.NoError(t, minter.AddLocalTokenMessenger(owner, messenger))
	require.ErrorIs(t, minter.AddLocalTokenMessenger(owner, ids.GenerateTestID()), ErrMessengerAlreadySet)

	require.NoError(t, minter.RemoveLocalTokenMessenger(owner))
	require.NoError(t, minter.AddLocalTokenMessenger(owner, messenger))

	require.ErrorIs(t, minter.AddLocalTokenMessenger(ids.GenerateTestID(), messenger), ErrUnauthorized)
}

func TestMintPaused(t *testing.T) {
	pauser := &stubPauser{paused: true}
	owner := ids.GenerateTestID()
	minter := NewTokenMinter(MinterConfig{
		Addr:   ids.GenerateTestID(),
		Owner:  owner,
		Tokens: token.NewRegistry(),
		Pauser: pauser,
	})

	err := minter.Mint(ids.GenerateTestID(), ids.GenerateTestID(), ids.GenerateTestID(), uint256.NewInt(1))
	require.ErrorIs(t, err, ErrSystemPaused)
	err = minter.Burn(ids.GenerateTestID(), ids.GenerateTestID(), uint256.NewInt(1))
	require.ErrorIs(t, err, ErrSystemPaused)
}
