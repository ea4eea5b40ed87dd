// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/crypto/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

const (
	// AttestationSignatureLen is the size of one signature slot in an
	// attestation blob: 65-byte [R || S || V] secp256k1 signatures.
	AttestationSignatureLen = 65
)

var (
	ErrInvalidAttestationLength = errors.New("invalid attestation length")
	ErrInvalidSignatureOrder    = errors.New("attestation signatures out of order")
	ErrUnregisteredAttester     = errors.New("signer is not an enabled attester")
	ErrInvalidSignature         = errors.New("invalid signature")

	ErrAttesterAlreadyEnabled = errors.New("attester already enabled")
	ErrAttesterNotEnabled     = errors.New("attester not enabled")
	ErrInvalidThreshold       = errors.New("invalid signature threshold")
	ErrTooFewAttesters        = errors.New("attester count would fall below signature threshold")
)

// AttesterSet holds the enabled attester identities and the signature
// threshold, and verifies attestation blobs against them. Mutators are gated
// to a single manager identity.
type AttesterSet struct {
	mu        sync.RWMutex
	manager   ids.ID
	enabled   set.Set[common.Address]
	threshold uint32
}

// NewAttesterSet returns an attester set with a signature threshold of 1 and
// the given initial attester enabled.
func NewAttesterSet(manager ids.ID, attester common.Address) *AttesterSet {
	return &AttesterSet{
		manager:   manager,
		enabled:   set.Of(attester),
		threshold: 1,
	}
}

// EnableAttester registers a new attester identity.
func (a *AttesterSet) EnableAttester(caller ids.ID, attester common.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.manager {
		return ErrUnauthorized
	}
	if a.enabled.Contains(attester) {
		return fmt.Errorf("%w: %s", ErrAttesterAlreadyEnabled, attester)
	}
	a.enabled.Add(attester)
	return nil
}

// DisableAttester removes an attester identity. The set may not shrink below
// the signature threshold, and the last attester may never be removed.
func (a *AttesterSet) DisableAttester(caller ids.ID, attester common.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.manager {
		return ErrUnauthorized
	}
	if !a.enabled.Contains(attester) {
		return fmt.Errorf("%w: %s", ErrAttesterNotEnabled, attester)
	}
	if a.enabled.Len() <= 1 || uint32(a.enabled.Len()-1) < a.threshold {
		return ErrTooFewAttesters
	}
	a.enabled.Remove(attester)
	return nil
}

// SetSignatureThreshold updates the number of distinct attester signatures an
// attestation must carry.
func (a *AttesterSet) SetSignatureThreshold(caller ids.ID, threshold uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.manager {
		return ErrUnauthorized
	}
	if threshold == 0 {
		return fmt.Errorf("%w: zero", ErrInvalidThreshold)
	}
	if threshold > uint32(a.enabled.Len()) {
		return fmt.Errorf("%w: %d exceeds attester count %d", ErrInvalidThreshold, threshold, a.enabled.Len())
	}
	if threshold == a.threshold {
		return fmt.Errorf("%w: unchanged", ErrInvalidThreshold)
	}
	a.threshold = threshold
	return nil
}

// IsEnabled reports whether the identity is an enabled attester.
func (a *AttesterSet) IsEnabled(attester common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled.Contains(attester)
}

// SignatureThreshold returns the current signature threshold.
func (a *AttesterSet) SignatureThreshold() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.threshold
}

// VerifyAttestationSignatures checks an attestation blob over messageHash.
// The blob must contain exactly threshold signature slots; each slot must
// recover to an enabled attester; and the recovered identities must be
// strictly increasing, which rejects duplicate and reordered signatures.
func (a *AttesterSet) VerifyAttestationSignatures(messageHash common.Hash, attestation []byte) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	expected := int(a.threshold) * AttestationSignatureLen
	if len(attestation) != expected {
		return fmt.Errorf("%w: %d bytes, expected %d", ErrInvalidAttestationLength, len(attestation), expected)
	}

	var prev common.Address
	for i := 0; i < int(a.threshold); i++ {
		slot := attestation[i*AttestationSignatureLen : (i+1)*AttestationSignatureLen]
		signer, err := RecoverAttester(messageHash, slot)
		if err != nil {
			return err
		}
		if i > 0 && bytes.Compare(signer[:], prev[:]) <= 0 {
			return fmt.Errorf("%w: %s after %s", ErrInvalidSignatureOrder, signer, prev)
		}
		if !a.enabled.Contains(signer) {
			return fmt.Errorf("%w: %s", ErrUnregisteredAttester, signer)
		}
		prev = signer
	}
	return nil
}

// RecoverAttester recovers the signer identity from one 65-byte signature
// slot over messageHash. Both 0/1 and 27/28 recovery identifiers are
// accepted.
func RecoverAttester(messageHash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != AttestationSignatureLen {
		return common.Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidAttestationLength, len(signature))
	}
	sig := make([]byte, AttestationSignatureLen)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(messageHash[:], sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
