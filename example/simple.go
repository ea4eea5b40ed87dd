// Copyright (C) 2025, Lux Industries, Inc.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"

	"github.com/luxfi/cctp"
	"github.com/luxfi/cctp/token"
)

// lastSent keeps the most recent emitted envelope.
type lastSent struct {
	message []byte
}

func (s *lastSent) Emit(ev cctp.Event) {
	if sent, ok := ev.(cctp.MessageSent); ok {
		s.message = sent.Message
	}
}

// side is one fully wired bridge domain.
type side struct {
	domain      uint32
	owner       ids.ID
	signer      cctp.Signer
	sink        *lastSent
	tokens      *token.Registry
	transmitter *cctp.MessageTransmitter
	minter      *cctp.TokenMinter
	messenger   *cctp.TokenMessenger
}

func newSide(domain uint32) (*side, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	s := &side{
		domain: domain,
		owner:  ids.GenerateTestID(),
		signer: cctp.NewSigner(key),
		sink:   &lastSent{},
		tokens: token.NewRegistry(),
	}
	s.transmitter = cctp.NewMessageTransmitter(cctp.TransmitterConfig{
		LocalDomain: domain,
		Addr:        ids.GenerateTestID(),
		Owner:       s.owner,
		Attesters:   cctp.NewAttesterSet(s.owner, s.signer.Address()),
		Sink:        s.sink,
	})
	s.minter = cctp.NewTokenMinter(cctp.MinterConfig{
		Addr:   ids.GenerateTestID(),
		Owner:  s.owner,
		Tokens: s.tokens,
	})
	s.messenger, err = cctp.NewTokenMessenger(cctp.MessengerConfig{
		Addr:        ids.GenerateTestID(),
		Owner:       s.owner,
		Transmitter: s.transmitter,
		Tokens:      s.tokens,
	})
	if err != nil {
		return nil, err
	}
	if err := s.minter.AddLocalTokenMessenger(s.owner, s.messenger.Addr()); err != nil {
		return nil, err
	}
	return s, s.messenger.AddLocalMinter(s.owner, s.minter)
}

func run() error {
	// Two domains with one attester each.
	source, err := newSide(0)
	if err != nil {
		return err
	}
	destination, err := newSide(1)
	if err != nil {
		return err
	}
	if err := source.messenger.AddRemoteTokenMessenger(source.owner, destination.domain, destination.messenger.Addr()); err != nil {
		return err
	}
	if err := destination.messenger.AddRemoteTokenMessenger(destination.owner, source.domain, source.messenger.Addr()); err != nil {
		return err
	}

	// One token on each side, linked so burns of the source token mint the
	// destination token.
	sourceToken := ids.GenerateTestID()
	destinationToken := ids.GenerateTestID()
	sourcePrimitive := token.NewFakeToken()
	destinationPrimitive := token.NewFakeToken()
	source.tokens.Register(sourceToken, sourcePrimitive)
	destination.tokens.Register(destinationToken, destinationPrimitive)
	if err := source.minter.SetLocalTokenEnabledStatus(source.owner, sourceToken, true); err != nil {
		return err
	}
	if err := destination.minter.SetLocalTokenEnabledStatus(destination.owner, destinationToken, true); err != nil {
		return err
	}
	if err := destination.minter.LinkTokenPair(destination.owner, destinationToken, source.domain, sourceToken); err != nil {
		return err
	}

	// Fund a depositor and bridge 75 of 100 tokens.
	depositor := ids.GenerateTestID()
	recipient := ids.GenerateTestID()
	sourcePrimitive.Mint(depositor, uint256.NewInt(100))
	sourcePrimitive.Approve(depositor, source.messenger.Addr(), uint256.NewInt(100))

	nonce, err := source.messenger.DepositForBurn(depositor, uint256.NewInt(75), destination.domain, recipient, sourceToken)
	if err != nil {
		return err
	}
	fmt.Printf("Deposited for burn with nonce %d\n", nonce)
	fmt.Printf("Depositor balance after burn: %s\n", sourcePrimitive.BalanceOf(depositor).Dec())

	// In production the attestation is collected from attester nodes; here
	// the destination's single attester signs in-process.
	messageBytes := source.sink.message
	if err := cctp.Relay(destination.transmitter, ids.GenerateTestID(), messageBytes, []cctp.Signer{destination.signer}); err != nil {
		return err
	}
	fmt.Printf("Recipient balance after mint: %s\n", destinationPrimitive.BalanceOf(recipient).Dec())
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
