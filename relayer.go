// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"errors"

	"github.com/luxfi/ids"
)

var errNoSigners = errors.New("no attestation signers provided")

// Attest signs an emitted envelope with the given signers and assembles the
// canonical attestation blob. It is an in-process stand-in for the off-ledger
// attestation service, used by examples and tests; production relayers
// collect signatures with an AttestationCollector instead.
func Attest(messageBytes []byte, signers []Signer) ([]byte, error) {
	if len(signers) == 0 {
		return nil, errNoSigners
	}
	signatures := make([][]byte, 0, len(signers))
	for _, signer := range signers {
		sig, err := signer.SignMessage(messageBytes)
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, sig)
	}
	return CombineAttestations(MessageHash(messageBytes), signatures)
}

// Relay attests an envelope and submits it to the destination transmitter as
// caller. Retries on failure are the caller's concern, never the core's.
func Relay(destination *MessageTransmitter, caller ids.ID, messageBytes []byte, signers []Signer) error {
	attestation, err := Attest(messageBytes, signers)
	if err != nil {
		return err
	}
	return destination.ReceiveMessage(caller, messageBytes, attestation)
}
