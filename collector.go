// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/crypto/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/p2p"

	"github.com/luxfi/cctp/cache"
)

// attestationCacheTTL bounds how long a collected attestation blob is reused
// before it is re-collected against the current attester set.
const attestationCacheTTL = time.Minute

var errUnexpectedSigner = errors.New("signature from unexpected attester")

type collectorResult struct {
	NodeID    ids.NodeID
	Signer    common.Address
	Signature []byte
	Err       error
}

// NewAttestationCollector returns an instance of AttestationCollector.
func NewAttestationCollector(log log.Logger, client *p2p.Client, attesters *AttesterSet) *AttestationCollector {
	return &AttestationCollector{
		log:       log,
		client:    client,
		attesters: attesters,
		cache:     cache.NewTTLCache[common.Hash, []byte](attestationCacheTTL),
	}
}

// AttestationCollector gathers attester signatures for an emitted envelope
// over p2p and assembles them into the canonical attestation blob receive
// expects: exactly threshold slots, ordered by signer identity ascending.
type AttestationCollector struct {
	log       log.Logger
	client    *p2p.Client
	attesters *AttesterSet
	cache     *cache.TTLCache[common.Hash, []byte]
}

// CollectAttestation blocks until it has assembled a full attestation for
// messageBytes from the given attester nodes, or the context is canceled.
// Each response is checked by recovery against the enabled attester set
// before it is accepted; duplicate signers are dropped. Collected blobs are
// cached by message hash, so repeated calls for the same envelope do not
// re-query the attester nodes.
func (c *AttestationCollector) CollectAttestation(
	ctx context.Context,
	messageBytes []byte,
	nodeIDs []ids.NodeID,
) ([]byte, error) {
	return c.cache.Get(MessageHash(messageBytes), func(messageHash common.Hash) ([]byte, error) {
		return c.collect(ctx, messageBytes, messageHash, nodeIDs)
	})
}

// CollectAttestationWithRetry retries collection with exponential backoff
// until it succeeds or timeout elapses. Individual attempts that fall short
// of the threshold are logged and retried; context cancellation aborts.
func (c *AttestationCollector) CollectAttestationWithRetry(
	ctx context.Context,
	messageBytes []byte,
	nodeIDs []ids.NodeID,
	timeout time.Duration,
) ([]byte, error) {
	var attestation []byte
	operation := func() error {
		var err error
		attestation, err = c.CollectAttestation(ctx, messageBytes, nodeIDs)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, _ time.Duration) {
		c.log.Debug("attestation collection failed, retrying", log.Err(err))
	}
	expBackoff := backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(timeout))
	if err := backoff.RetryNotify(operation, expBackoff, notify); err != nil {
		return nil, err
	}
	return attestation, nil
}

func (c *AttestationCollector) collect(
	ctx context.Context,
	messageBytes []byte,
	messageHash common.Hash,
	nodeIDs []ids.NodeID,
) ([]byte, error) {
	request := &AttestationRequest{Message: messageBytes}
	requestBytes, err := MarshalAttestationRequest(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attestation request: %w", err)
	}

	threshold := int(c.attesters.SignatureThreshold())

	// Buffered to the fan-out width: collect returns as soon as the threshold
	// is met, and late responses must not block their callbacks forever.
	results := make(chan collectorResult, len(nodeIDs))
	handler := attestationResponseHandler{
		messageHash: messageHash,
		attesters:   c.attesters,
		results:     results,
	}

	if err := c.client.Request(ctx, set.Of(nodeIDs...), requestBytes, handler.HandleResponse); err != nil {
		return nil, fmt.Errorf("failed to send attestation request: %w", err)
	}

	var (
		signatures = make([][]byte, 0, threshold)
		seen       = set.NewSet[common.Address](threshold)
	)
	for i := 0; i < len(nodeIDs); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-results:
			if result.Err != nil {
				c.log.Debug("dropping response",
					log.Stringer("nodeID", result.NodeID),
					log.Err(result.Err),
				)
				continue
			}
			if seen.Contains(result.Signer) {
				c.log.Debug("dropping duplicate signer",
					log.Stringer("nodeID", result.NodeID),
					log.Stringer("signer", result.Signer),
				)
				continue
			}
			seen.Add(result.Signer)
			signatures = append(signatures, result.Signature)
			if len(signatures) == threshold {
				return CombineAttestations(messageHash, signatures)
			}
		}
	}

	return nil, fmt.Errorf("collected %d of %d required signatures", len(signatures), threshold)
}

type attestationResponseHandler struct {
	messageHash common.Hash
	attesters   *AttesterSet
	results     chan collectorResult
}

func (r *attestationResponseHandler) HandleResponse(
	_ context.Context,
	nodeID ids.NodeID,
	responseBytes []byte,
	err error,
) {
	if err != nil {
		r.results <- collectorResult{NodeID: nodeID, Err: err}
		return
	}

	response, err := UnmarshalAttestationResponse(responseBytes)
	if err != nil {
		r.results <- collectorResult{NodeID: nodeID, Err: err}
		return
	}

	signer, err := RecoverAttester(r.messageHash, response.Signature)
	if err != nil {
		r.results <- collectorResult{NodeID: nodeID, Err: err}
		return
	}
	if !r.attesters.IsEnabled(signer) {
		r.results <- collectorResult{NodeID: nodeID, Err: fmt.Errorf("%w: %s", errUnexpectedSigner, signer)}
		return
	}

	r.results <- collectorResult{NodeID: nodeID, Signer: signer, Signature: response.Signature}
}
