// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/crypto/common"
)

var _ Signer = (*attesterSigner)(nil)

// Signer produces attestation signature slots over envelope bytes.
type Signer interface {
	// SignMessage signs the hash of the wire-encoded envelope and returns
	// one 65-byte signature slot.
	SignMessage(messageBytes []byte) ([]byte, error)

	// Address returns the identity attestation verifiers will recover from
	// signatures produced by this signer.
	Address() common.Address
}

// NewSigner creates an attestation signer from a secp256k1 private key.
func NewSigner(key *ecdsa.PrivateKey) Signer {
	return &attesterSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

type attesterSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func (s *attesterSigner) SignMessage(messageBytes []byte) ([]byte, error) {
	hash := MessageHash(messageBytes)
	sig, err := crypto.Sign(hash[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message hash: %w", err)
	}
	return sig, nil
}

func (s *attesterSigner) Address() common.Address {
	return s.address
}

// CombineAttestations concatenates signature slots into one attestation
// blob, ordered by recovered signer identity ascending as the verifier
// requires. Slots must all sign the same message hash.
func CombineAttestations(messageHash common.Hash, signatures [][]byte) ([]byte, error) {
	type slot struct {
		signer common.Address
		sig    []byte
	}
	slots := make([]slot, 0, len(signatures))
	for _, sig := range signatures {
		signer, err := RecoverAttester(messageHash, sig)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot{signer: signer, sig: sig})
	}
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0 && slots[j].signer.Cmp(slots[j-1].signer) < 0; j-- {
			slots[j], slots[j-1] = slots[j-1], slots[j]
		}
	}
	blob := make([]byte, 0, len(slots)*AttestationSignatureLen)
	for _, s := range slots {
		blob = append(blob, s.sig...)
	}
	return blob, nil
}
