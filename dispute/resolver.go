// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/consensys/cantor/logger"
	"github.com/consensys/cantor/manifest"
	"github.com/consensys/cantor/oracle"
	"github.com/consensys/cantor/verify"
	"github.com/rs/zerolog"
)

// ManifestSource looks up the published manifest for a block. The store
// package satisfies it.
type ManifestSource interface {
	Manifest(blockID uint64) (*manifest.Manifest, error)
}

// Resolver settles disputes by replaying verification against the prover's
// reveal. Safe for concurrent use across distinct disputes.
type Resolver struct {
	verifier  *verify.Verifier
	manifests ManifestSource
	log       zerolog.Logger
}

// NewResolver returns a resolver using the given verifier and manifest
// lookup.
func NewResolver(v *verify.Verifier, manifests ManifestSource) *Resolver {
	return &Resolver{
		verifier:  v,
		manifests: manifests,
		log:       logger.Logger().With().Str("component", "dispute").Logger(),
	}
}

// Resolve runs the dispute to a terminal status against m.
//
// A successful verification of the reveal transitions the dispute to
// Accepted; any semantic verification failure transitions it to Rejected
// with the failure recorded as the cause. Oracle unavailability (including
// caller cancellation at the oracle suspension point) leaves the dispute
// Open and returns the retryable error without mutating status. Exactly one
// resolution is possible: later attempts fail with ErrAlreadyResolved.
func (r *Resolver) Resolve(ctx context.Context, m *manifest.Manifest, d *Dispute) (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status.Terminal() {
		return d.status, fmt.Errorf("%w: dispute %s is %s", ErrAlreadyResolved, d.ID, d.status)
	}
	if m.Root != d.ClaimedRoot {
		// The challenger disputes a root the producer never published;
		// nothing to defend.
		d.status = StatusRejected
		d.cause = fmt.Errorf("%w: claimed root %s, published %s", verify.ErrInclusionFailure, d.ClaimedRoot, m.Root)
		return d.status, nil
	}

	err := r.verifier.Verify(ctx, m, d.TxIndex,
		d.Reveal.ClaimedActual, d.Reveal.Record, d.Reveal.Proof,
		d.Reveal.PrevState, d.Reveal.TxID)

	switch {
	case err == nil:
		d.status = StatusAccepted
	case errors.Is(err, oracle.ErrUnavailable):
		// Transient: the dispute stays open so an honest prover is never
		// penalized for an oracle outage.
		return StatusOpen, err
	default:
		d.status = StatusRejected
		d.cause = err
	}

	r.log.Info().
		Stringer("dispute", d.ID).
		Uint64("block", d.BlockID).
		Uint64("txIndex", d.TxIndex).
		Stringer("status", d.status).
		Msg("dispute resolved")
	return d.status, nil
}

// Submit is the dispute channel entry point: it opens a dispute for
// (blockID, txIndex, reveal) against the stored manifest and resolves it
// immediately, returning the settled dispute.
func (r *Resolver) Submit(ctx context.Context, blockID, txIndex uint64, reveal Reveal) (*Dispute, error) {
	m, err := r.manifests.Manifest(blockID)
	if err != nil {
		return nil, fmt.Errorf("lookup manifest for block %d: %w", blockID, err)
	}
	d := New(blockID, txIndex, m.Root, reveal)
	if _, err := r.Resolve(ctx, m, d); err != nil {
		return d, err
	}
	return d, nil
}
