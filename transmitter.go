// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

var (
	ErrWrongDestinationDomain   = errors.New("message not destined for this domain")
	ErrWrongSourceDomain        = errors.New("message did not originate from this domain")
	ErrInvalidCaller            = errors.New("caller does not match destination caller")
	ErrInvalidDestinationCaller = errors.New("destination caller must not be zero")
	ErrNonceAlreadyUsed         = errors.New("nonce already used")
	ErrInvalidSender            = errors.New("caller is not the message sender")
	ErrNoHandler                = errors.New("no handler registered for recipient")
	ErrHandlerRegistered        = errors.New("handler already registered for recipient")
)

// MessageHandler receives the body of an accepted envelope. caller is the
// identity of the transmitter performing the dispatch. A non-nil error
// rejects the receive as a whole: the nonce is not consumed.
type MessageHandler interface {
	HandleReceiveMessage(caller ids.ID, sourceDomain uint32, sender ids.ID, body []byte) error
}

type usedNonceKey struct {
	sourceDomain uint32
	nonce        uint64
}

// TransmitterConfig configures a MessageTransmitter.
type TransmitterConfig struct {
	// LocalDomain is the domain this transmitter serves.
	LocalDomain uint32

	// Addr is the transmitter's own identity, passed to handlers as the
	// dispatching caller.
	Addr ids.ID

	// Owner gates administrative mutators.
	Owner ids.ID

	// Attesters verifies inbound attestations.
	Attesters *AttesterSet

	// MaxBodySize overrides the default body length limit when nonzero.
	MaxBodySize int

	// Pauser optionally gates send and receive.
	Pauser Pauser

	// Sink receives observable events. Defaults to NoopSink.
	Sink Sink

	Log log.Logger
}

// MessageTransmitter owns the per-destination-domain outbound nonce counters
// and the inbound used-nonce record. It is the sole place replay protection
// and attestation verification are enforced. Every operation runs to
// completion under one lock, so state transitions are serialized and
// all-or-nothing.
type MessageTransmitter struct {
	localDomain uint32
	addr        ids.ID
	owner       ids.ID
	attesters   *AttesterSet
	pauser      Pauser
	sink        Sink
	log         log.Logger

	mu          sync.Mutex
	maxBodySize int
	nextNonces  map[uint32]uint64
	usedNonces  map[usedNonceKey]struct{}
	handlers    map[ids.ID]MessageHandler
}

// NewMessageTransmitter creates a transmitter for cfg.LocalDomain.
func NewMessageTransmitter(cfg TransmitterConfig) *MessageTransmitter {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = MaxBodySize
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NoopSink{}
	}
	return &MessageTransmitter{
		localDomain: cfg.LocalDomain,
		addr:        cfg.Addr,
		owner:       cfg.Owner,
		attesters:   cfg.Attesters,
		pauser:      cfg.Pauser,
		sink:        sink,
		log:         cfg.Log,
		maxBodySize: maxBodySize,
		nextNonces:  make(map[uint32]uint64),
		usedNonces:  make(map[usedNonceKey]struct{}),
		handlers:    make(map[ids.ID]MessageHandler),
	}
}

// LocalDomain returns the domain this transmitter serves.
func (t *MessageTransmitter) LocalDomain() uint32 {
	return t.localDomain
}

// Addr returns the transmitter's identity.
func (t *MessageTransmitter) Addr() ids.ID {
	return t.addr
}

// RegisterHandler binds a recipient identity to the handler that interprets
// bodies addressed to it.
func (t *MessageTransmitter) RegisterHandler(recipient ids.ID, handler MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handlers[recipient]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerRegistered, recipient)
	}
	t.handlers[recipient] = handler
	return nil
}

// SendMessage emits an unrestricted message to destinationDomain and returns
// the allocated nonce. The n-th successful send to a domain gets nonce n-1,
// regardless of caller.
func (t *MessageTransmitter) SendMessage(caller ids.ID, destinationDomain uint32, recipient ids.ID, body []byte) (uint64, error) {
	return t.send(caller, destinationDomain, recipient, ids.Empty, body)
}

// SendMessageWithCaller is SendMessage restricted so that only
// destinationCaller may submit the message on the destination domain. Zero is
// reserved to mean unrestricted and is rejected on this path.
func (t *MessageTransmitter) SendMessageWithCaller(caller ids.ID, destinationDomain uint32, recipient, destinationCaller ids.ID, body []byte) (uint64, error) {
	if destinationCaller == ids.Empty {
		return 0, ErrInvalidDestinationCaller
	}
	return t.send(caller, destinationDomain, recipient, destinationCaller, body)
}

func (t *MessageTransmitter) send(caller ids.ID, destinationDomain uint32, recipient, destinationCaller ids.ID, body []byte) (uint64, error) {
	return t.sendWith(caller, destinationDomain, recipient, destinationCaller, body, nil)
}

// sendWith runs prepare inside the send critical section, after the pause and
// body size checks but before the nonce is allocated. A failed prepare aborts
// the send with nothing emitted, and a successful prepare is always followed
// by the message: callers use it to move value only once the send can no
// longer fail.
func (t *MessageTransmitter) sendWith(caller ids.ID, destinationDomain uint32, recipient, destinationCaller ids.ID, body []byte, prepare func() error) (uint64, error) {
	if err := notPaused(t.pauser); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(body) > t.maxBodySize {
		return 0, fmt.Errorf("%w: %d bytes, max %d", ErrBodyTooLarge, len(body), t.maxBodySize)
	}
	if prepare != nil {
		if err := prepare(); err != nil {
			return 0, err
		}
	}

	nonce := t.nextNonces[destinationDomain]
	msg := &Message{
		Version:           MessageVersion,
		SourceDomain:      t.localDomain,
		DestinationDomain: destinationDomain,
		Nonce:             nonce,
		Sender:            caller,
		Recipient:         recipient,
		DestinationCaller: destinationCaller,
		Body:              body,
	}
	t.nextNonces[destinationDomain] = nonce + 1

	t.sink.Emit(MessageSent{Message: msg.Bytes()})
	if t.log != nil {
		t.log.Debug("message sent",
			log.Uint64("nonce", nonce),
			log.Uint32("destinationDomain", destinationDomain),
			log.Stringer("recipient", recipient),
		)
	}
	return nonce, nil
}

// ReceiveMessage verifies and dispatches an inbound envelope. The used-nonce
// insertion and the handler dispatch form one atomic unit: a handler failure
// leaves the nonce unconsumed so the message may be resubmitted.
func (t *MessageTransmitter) ReceiveMessage(caller ids.ID, messageBytes, attestation []byte) error {
	if err := notPaused(t.pauser); err != nil {
		return err
	}

	msg, err := ParseMessage(messageBytes)
	if err != nil {
		return err
	}
	if msg.DestinationDomain != t.localDomain {
		return fmt.Errorf("%w: destination %d, local %d", ErrWrongDestinationDomain, msg.DestinationDomain, t.localDomain)
	}
	if msg.DestinationCaller != ids.Empty && msg.DestinationCaller != caller {
		return fmt.Errorf("%w: %s", ErrInvalidCaller, caller)
	}
	if err := t.attesters.VerifyAttestationSignatures(MessageHash(messageBytes), attestation); err != nil {
		return err
	}

	// Check-and-insert must be atomic: the nonce is reserved before dispatch
	// and released again if the handler rejects, so replay protection only
	// activates on a net successful receipt.
	key := usedNonceKey{sourceDomain: msg.SourceDomain, nonce: msg.Nonce}
	t.mu.Lock()
	if _, used := t.usedNonces[key]; used {
		t.mu.Unlock()
		return fmt.Errorf("%w: source domain %d, nonce %d", ErrNonceAlreadyUsed, msg.SourceDomain, msg.Nonce)
	}
	handler, ok := t.handlers[msg.Recipient]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoHandler, msg.Recipient)
	}
	t.usedNonces[key] = struct{}{}
	t.mu.Unlock()

	if err := handler.HandleReceiveMessage(t.addr, msg.SourceDomain, msg.Sender, msg.Body); err != nil {
		t.mu.Lock()
		delete(t.usedNonces, key)
		t.mu.Unlock()
		return fmt.Errorf("handler rejected message: %w", err)
	}

	t.sink.Emit(MessageReceived{
		Caller:       caller,
		SourceDomain: msg.SourceDomain,
		Nonce:        msg.Nonce,
		Sender:       msg.Sender,
		Body:         msg.Body,
	})
	if t.log != nil {
		t.log.Debug("message received",
			log.Uint64("nonce", msg.Nonce),
			log.Uint32("sourceDomain", msg.SourceDomain),
			log.Stringer("sender", msg.Sender),
		)
	}
	return nil
}

// ReplaceMessage re-emits a previously sent message with a new destination
// caller and body but the same nonce and domains. The original attestation
// proves the caller controls a validly attestable message; the used-nonce
// record is untouched, so at most one of the original and the replacement
// will ever be received.
func (t *MessageTransmitter) ReplaceMessage(caller ids.ID, originalMessage, originalAttestation []byte, newDestinationCaller ids.ID, newBody []byte) ([]byte, error) {
	if err := notPaused(t.pauser); err != nil {
		return nil, err
	}

	original, err := ParseMessage(originalMessage)
	if err != nil {
		return nil, err
	}
	if original.Sender != caller {
		return nil, fmt.Errorf("%w: sender %s, caller %s", ErrInvalidSender, original.Sender, caller)
	}
	if original.SourceDomain != t.localDomain {
		return nil, fmt.Errorf("%w: source %d, local %d", ErrWrongSourceDomain, original.SourceDomain, t.localDomain)
	}
	if err := t.attesters.VerifyAttestationSignatures(MessageHash(originalMessage), originalAttestation); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(newBody) > t.maxBodySize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrBodyTooLarge, len(newBody), t.maxBodySize)
	}

	replacement := &Message{
		Version:           original.Version,
		SourceDomain:      original.SourceDomain,
		DestinationDomain: original.DestinationDomain,
		Nonce:             original.Nonce,
		Sender:            original.Sender,
		Recipient:         original.Recipient,
		DestinationCaller: newDestinationCaller,
		Body:              newBody,
	}
	replacementBytes := replacement.Bytes()

	t.sink.Emit(MessageSent{Message: replacementBytes})
	if t.log != nil {
		t.log.Debug("message replaced",
			log.Uint64("nonce", original.Nonce),
			log.Uint32("destinationDomain", original.DestinationDomain),
		)
	}
	return replacementBytes, nil
}

// SetMaxBodySize updates the body length limit for outbound messages.
func (t *MessageTransmitter) SetMaxBodySize(caller ids.ID, size int) error {
	if caller != t.owner {
		return ErrUnauthorized
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.maxBodySize = size
	t.sink.Emit(MaxBodySizeUpdated{NewMaxBodySize: size})
	return nil
}

// NextNonce returns the nonce the next successful send to destinationDomain
// will be assigned.
func (t *MessageTransmitter) NextNonce(destinationDomain uint32) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextNonces[destinationDomain]
}

// NonceUsed reports whether (sourceDomain, nonce) has been consumed.
func (t *MessageTransmitter) NonceUsed(sourceDomain uint32, nonce uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, used := t.usedNonces[usedNonceKey{sourceDomain: sourceDomain, nonce: nonce}]
	return used
}
