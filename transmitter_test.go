// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"errors"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	fail     error
	calls    int
	caller   ids.ID
	source   uint32
	sender   ids.ID
	lastBody []byte
}

func (h *recordingHandler) HandleReceiveMessage(caller ids.ID, sourceDomain uint32, sender ids.ID, body []byte) error {
	h.calls++
	h.caller = caller
	h.source = sourceDomain
	h.sender = sender
	h.lastBody = body
	return h.fail
}

type transmitterFixture struct {
	transmitter *MessageTransmitter
	sink        *sinkRecorder
	pauser      *stubPauser
	owner       ids.ID
	manager     ids.ID
	signer      Signer
}

func newTransmitterFixture(t *testing.T, localDomain uint32) *transmitterFixture {
	t.Helper()
	signer := newTestSigners(t, 1)[0]
	owner := ids.GenerateTestID()
	sink := &sinkRecorder{}
	pauser := &stubPauser{}
	transmitter := NewMessageTransmitter(TransmitterConfig{
		LocalDomain: localDomain,
		Addr:        ids.GenerateTestID(),
		Owner:       owner,
		Attesters:   NewAttesterSet(owner, signer.Address()),
		Pauser:      pauser,
		Sink:        sink,
	})
	return &transmitterFixture{
		transmitter: transmitter,
		sink:        sink,
		pauser:      pauser,
		owner:       owner,
		manager:     owner,
		signer:      signer,
	}
}

func TestSendMessageNonceSequence(t *testing.T) {
	f := newTransmitterFixture(t, 0)
	sender := ids.GenerateTestID()
	recipient := ids.GenerateTestID()

	for want := uint64(0); want < 5; want++ {
		nonce, err := f.transmitter.SendMessage(sender, 1, recipient, []byte("body"))
		require.NoError(t, err)
		require.Equal(t, want, nonce)
	}

	// Nonce spaces per destination domain are independent.
	nonce, err := f.transmitter.SendMessage(sender, 2, recipient, []byte("body"))
	require.NoError(t, err)
	require.Zero(t, nonce)

	sent := f.sink.eventsOf(func(ev Event) bool {
		_, ok := ev.(MessageSent)
		return ok
	})
	require.Len(t, sent, 6)
}

func TestSendMessageEnvelope(t *testing.T) {
	f := newTransmitterFixture(t, 4)
	sender := ids.GenerateTestID()
	recipient := ids.GenerateTestID()

	nonce, err := f.transmitter.SendMessage(sender, 9, recipient, []byte("payload"))
	require.NoError(t, err)

	msg, err := ParseMessage(f.sink.lastMessageSent(t))
	require.NoError(t, err)
	require.Equal(t, uint32(MessageVersion), msg.Version)
	require.Equal(t, uint32(4), msg.SourceDomain)
	require.Equal(t, uint32(9), msg.DestinationDomain)
	require.Equal(t, nonce, msg.Nonce)
	require.Equal(t, sender, msg.Sender)
	require.Equal(t, recipient, msg.Recipient)
	require.Equal(t, ids.Empty, msg.DestinationCaller)
	require.Equal(t, []byte("payload"), msg.Body)
}

func TestSendMessageWithCallerRejectsZero(t *testing.T) {
	f := newTransmitterFixture(t, 0)

	_, err := f.transmitter.SendMessageWithCaller(ids.GenerateTestID(), 1, ids.GenerateTestID(), ids.Empty, nil)
	require.ErrorIs(t, err, ErrInvalidDestinationCaller)
	require.Zero(t, f.transmitter.NextNonce(1))
}

func TestSendMessageBodyTooLarge(t *testing.T) {
	f := newTransmitterFixture(t, 0)

	_, err := f.transmitter.SendMessage(ids.GenerateTestID(), 1, ids.GenerateTestID(), make([]byte, MaxBodySize+1))
	require.ErrorIs(t, err, ErrBodyTooLarge)
	require.Zero(t, f.transmitter.NextNonce(1))

	require.ErrorIs(t, f.transmitter.SetMaxBodySize(ids.GenerateTestID(), 16), ErrUnauthorized)
	require.NoError(t, f.transmitter.SetMaxBodySize(f.owner, 16))
	_, err = f.transmitter.SendMessage(ids.GenerateTestID(), 1, ids.GenerateTestID(), make([]byte, 17))
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestSendMessagePaused(t *testing.T) {
	f := newTransmitterFixture(t, 0)
	f.pauser.paused = true

	_, err := f.transmitter.SendMessage(ids.GenerateTestID(), 1, ids.GenerateTestID(), nil)
	require.ErrorIs(t, err, ErrSystemPaused)
}

// sendAndSign emits a message on a source fixture and returns its wire bytes
// plus a valid attestation from the destination's attester.
func sendAndSign(t *testing.T, source, destination *transmitterFixture, sender, recipient, destinationCaller ids.ID, body []byte) ([]byte, []byte) {
	t.Helper()
	var err error
	if destinationCaller == ids.Empty {
		_, err = source.transmitter.SendMessage(sender, destination.transmitter.LocalDomain(), recipient, body)
	} else {
		_, err = source.transmitter.SendMessageWithCaller(sender, destination.transmitter.LocalDomain(), recipient, destinationCaller, body)
	}
	require.NoError(t, err)

	messageBytes := source.sink.lastMessageSent(t)
	attestation, err := Attest(messageBytes, []Signer{destination.signer})
	require.NoError(t, err)
	return messageBytes, attestation
}

func TestReceiveMessage(t *testing.T) {
	source := newTransmitterFixture(t, 0)
	destination := newTransmitterFixture(t, 1)

	recipient := ids.GenerateTestID()
	handler := &recordingHandler{}
	require.NoError(t, destination.transmitter.RegisterHandler(recipient, handler))

	sender := ids.GenerateTestID()
	messageBytes, attestation := sendAndSign(t, source, destination, sender, recipient, ids.Empty, []byte("hello"))

	relayer := ids.GenerateTestID()
	require.NoError(t, destination.transmitter.ReceiveMessage(relayer, messageBytes, attestation))
	require.Equal(t, 1, handler.calls)
	require.Equal(t, destination.transmitter.Addr(), handler.caller)
	require.Equal(t, uint32(0), handler.source)
	require.Equal(t, sender, handler.sender)
	require.Equal(t, []byte("hello"), handler.lastBody)
	require.True(t, destination.transmitter.NonceUsed(0, 0))

	// Replay of the identical payload is rejected.
	err := destination.transmitter.ReceiveMessage(relayer, messageBytes, attestation)
	require.ErrorIs(t, err, ErrNonceAlreadyUsed)
	require.Equal(t, 1, handler.calls)
}

func TestReceiveMessageChecks(t *testing.T) {
	source := newTransmitterFixture(t, 0)
	destination := newTransmitterFixture(t, 1)

	recipient := ids.GenerateTestID()
	handler := &recordingHandler{}
	require.NoError(t, destination.transmitter.RegisterHandler(recipient, handler))

	relayer := ids.GenerateTestID()

	t.Run("malformed", func(t *testing.T) {
		err := destination.transmitter.ReceiveMessage(relayer, []byte("short"), nil)
		require.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("wrong destination domain", func(t *testing.T) {
		other := newTransmitterFixture(t, 2)
		messageBytes, attestation := sendAndSign(t, source, other, ids.GenerateTestID(), recipient, ids.Empty, nil)
		err := destination.transmitter.ReceiveMessage(relayer, messageBytes, attestation)
		require.ErrorIs(t, err, ErrWrongDestinationDomain)
	})

	t.Run("restricted caller", func(t *testing.T) {
		allowed := ids.GenerateTestID()
		messageBytes, attestation := sendAndSign(t, source, destination, ids.GenerateTestID(), recipient, allowed, nil)

		err := destination.transmitter.ReceiveMessage(relayer, messageBytes, attestation)
		require.ErrorIs(t, err, ErrInvalidCaller)
		require.NoError(t, destination.transmitter.ReceiveMessage(allowed, messageBytes, attestation))
	})

	t.Run("bad attestation", func(t *testing.T) {
		messageBytes, _ := sendAndSign(t, source, destination, ids.GenerateTestID(), recipient, ids.Empty, nil)
		attestation, err := Attest(messageBytes, []Signer{source.signer})
		require.NoError(t, err)
		err = destination.transmitter.ReceiveMessage(relayer, messageBytes, attestation)
		require.ErrorIs(t, err, ErrUnregisteredAttester)
	})

	t.Run("no handler", func(t *testing.T) {
		messageBytes, attestation := sendAndSign(t, source, destination, ids.GenerateTestID(), ids.GenerateTestID(), ids.Empty, nil)
		err := destination.transmitter.ReceiveMessage(relayer, messageBytes, attestation)
		require.ErrorIs(t, err, ErrNoHandler)
	})
}

func TestReceiveMessageHandlerFailureLeavesNonceUnused(t *testing.T) {
	source := newTransmitterFixture(t, 0)
	destination := newTransmitterFixture(t, 1)

	recipient := ids.GenerateTestID()
	handler := &recordingHandler{fail: errors.New("not ready")}
	require.NoError(t, destination.transmitter.RegisterHandler(recipient, handler))

	messageBytes, attestation := sendAndSign(t, source, destination, ids.GenerateTestID(), recipient, ids.Empty, nil)

	relayer := ids.GenerateTestID()
	require.Error(t, destination.transmitter.ReceiveMessage(relayer, messageBytes, attestation))
	require.False(t, destination.transmitter.NonceUsed(0, 0))

	// Once the handler recovers, the same payload goes through.
	handler.fail = nil
	require.NoError(t, destination.transmitter.ReceiveMessage(relayer, messageBytes, attestation))
	require.True(t, destination.transmitter.NonceUsed(0, 0))
}

func TestReplaceMessage(t *testing.T) {
	source := newTransmitterFixture(t, 0)
	destination := newTransmitterFixture(t, 1)

	recipient := ids.GenerateTestID()
	handler := &recordingHandler{}
	require.NoError(t, destination.transmitter.RegisterHandler(recipient, handler))

	sender := ids.GenerateTestID()
	messageBytes, _ := sendAndSign(t, source, destination, sender, recipient, ids.Empty, []byte("original"))
	sourceAttestation, err := Attest(messageBytes, []Signer{source.signer})
	require.NoError(t, err)

	t.Run("wrong caller", func(t *testing.T) {
		_, err := source.transmitter.ReplaceMessage(ids.GenerateTestID(), messageBytes, sourceAttestation, ids.Empty, []byte("new"))
		require.ErrorIs(t, err, ErrInvalidSender)
	})

	t.Run("wrong source domain", func(t *testing.T) {
		_, err := destination.transmitter.ReplaceMessage(sender, messageBytes, sourceAttestation, ids.Empty, []byte("new"))
		require.ErrorIs(t, err, ErrWrongSourceDomain)
	})

	t.Run("bad attestation", func(t *testing.T) {
		badAttestation, err := Attest(messageBytes, []Signer{destination.signer})
		require.NoError(t, err)
		_, err = source.transmitter.ReplaceMessage(sender, messageBytes, badAttestation, ids.Empty, []byte("new"))
		require.ErrorIs(t, err, ErrUnregisteredAttester)
	})

	newCaller := ids.GenerateTestID()
	replacedBytes, err := source.transmitter.ReplaceMessage(sender, messageBytes, sourceAttestation, newCaller, []byte("replacement"))
	require.NoError(t, err)

	replaced, err := ParseMessage(replacedBytes)
	require.NoError(t, err)
	originalMsg, err := ParseMessage(messageBytes)
	require.NoError(t, err)
	require.Equal(t, originalMsg.Nonce, replaced.Nonce)
	require.Equal(t, originalMsg.SourceDomain, replaced.SourceDomain)
	require.Equal(t, originalMsg.DestinationDomain, replaced.DestinationDomain)
	require.Equal(t, originalMsg.Sender, replaced.Sender)
	require.Equal(t, newCaller, replaced.DestinationCaller)
	require.Equal(t, []byte("replacement"), replaced.Body)

	// Replace does not consume the nonce: whichever of the two payloads is
	// submitted first wins, the other fails replay protection.
	require.False(t, destination.transmitter.NonceUsed(0, 0))

	replacedAttestation, err := Attest(replacedBytes, []Signer{destination.signer})
	require.NoError(t, err)
	require.NoError(t, destination.transmitter.ReceiveMessage(newCaller, replacedBytes, replacedAttestation))

	originalAttestation, err := Attest(messageBytes, []Signer{destination.signer})
	require.NoError(t, err)
	err = destination.transmitter.ReceiveMessage(ids.GenerateTestID(), messageBytes, originalAttestation)
	require.ErrorIs(t, err, ErrNonceAlreadyUsed)
}
