// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/crypto/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/p2p"
)

// AttestationHandlerID is the protocol ID for attestation request handling.
const AttestationHandlerID = 0xc17c

// AttestationRequest asks an attester node to sign an envelope.
type AttestationRequest struct {
	Message []byte
}

// AttestationResponse carries one 65-byte signature slot.
type AttestationResponse struct {
	Signature []byte
}

// MarshalAttestationRequest marshals an attestation request to bytes.
func MarshalAttestationRequest(req *AttestationRequest) ([]byte, error) {
	// Format: msgLen(4) + msg
	buf := make([]byte, 4+len(req.Message))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(req.Message)))
	copy(buf[4:], req.Message)
	return buf, nil
}

// UnmarshalAttestationRequest unmarshals bytes to an attestation request.
func UnmarshalAttestationRequest(data []byte) (*AttestationRequest, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short: %d", len(data))
	}
	msgLen := binary.BigEndian.Uint32(data[0:4])
	if len(data) < int(4+msgLen) {
		return nil, fmt.Errorf("data too short for message: %d", len(data))
	}
	return &AttestationRequest{
		Message: data[4 : 4+msgLen],
	}, nil
}

// MarshalAttestationResponse marshals a signature slot to bytes.
func MarshalAttestationResponse(signature []byte) ([]byte, error) {
	// Format: sigLen(4) + sig
	buf := make([]byte, 4+len(signature))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(signature)))
	copy(buf[4:], signature)
	return buf, nil
}

// UnmarshalAttestationResponse unmarshals bytes to an attestation response.
func UnmarshalAttestationResponse(data []byte) (*AttestationResponse, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short: %d", len(data))
	}
	sigLen := binary.BigEndian.Uint32(data[0:4])
	if len(data) < int(4+sigLen) {
		return nil, fmt.Errorf("data too short for signature: %d", len(data))
	}
	return &AttestationResponse{
		Signature: data[4 : 4+sigLen],
	}, nil
}

// AttestationHandler serves attestation requests on an attester node.
type AttestationHandler interface {
	// Request handles an incoming attestation request.
	Request(ctx context.Context, nodeID ids.NodeID, deadline time.Time, request []byte) ([]byte, error)
}

// SigningAttestationHandler signs well-formed envelopes with a local
// attester key, caching one signature per message hash.
type SigningAttestationHandler struct {
	signer Signer

	mu    sync.Mutex
	cache map[common.Hash][]byte
}

// NewSigningAttestationHandler creates a handler backed by signer.
func NewSigningAttestationHandler(signer Signer) *SigningAttestationHandler {
	return &SigningAttestationHandler{
		signer: signer,
		cache:  make(map[common.Hash][]byte),
	}
}

// Request handles an incoming attestation request.
func (h *SigningAttestationHandler) Request(_ context.Context, _ ids.NodeID, _ time.Time, request []byte) ([]byte, error) {
	req, err := UnmarshalAttestationRequest(request)
	if err != nil {
		return nil, err
	}

	// Refuse to sign structurally invalid envelopes.
	if _, err := ParseMessage(req.Message); err != nil {
		return nil, err
	}

	hash := MessageHash(req.Message)
	h.mu.Lock()
	signature, ok := h.cache[hash]
	h.mu.Unlock()
	if ok {
		return MarshalAttestationResponse(signature)
	}

	signature, err = h.signer.SignMessage(req.Message)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.cache[hash] = signature
	h.mu.Unlock()

	return MarshalAttestationResponse(signature)
}

// Ensure AttestationHandlerAdapter implements p2p.Handler
var _ p2p.Handler = (*AttestationHandlerAdapter)(nil)

// AttestationHandlerAdapter adapts an AttestationHandler to the p2p.Handler
// interface so it can be registered with the p2p router.
type AttestationHandlerAdapter struct {
	handler AttestationHandler
}

// NewAttestationHandlerAdapter wraps an AttestationHandler as a p2p.Handler.
func NewAttestationHandlerAdapter(handler AttestationHandler) *AttestationHandlerAdapter {
	return &AttestationHandlerAdapter{handler: handler}
}

// Gossip implements p2p.Handler. Attestation handlers do not use gossip.
func (a *AttestationHandlerAdapter) Gossip(ctx context.Context, nodeID ids.NodeID, gossipBytes []byte) {
}

// Request implements p2p.Handler by delegating to the wrapped handler.
func (a *AttestationHandlerAdapter) Request(ctx context.Context, nodeID ids.NodeID, deadline time.Time, requestBytes []byte) ([]byte, *p2p.Error) {
	response, err := a.handler.Request(ctx, nodeID, deadline, requestBytes)
	if err != nil {
		return nil, &p2p.Error{
			Code:    500,
			Message: err.Error(),
		}
	}
	return response, nil
}
