// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package verify checks a block producer's compression claim for a single
// transaction without re-executing the chain.
//
// A verification re-derives the prediction through the oracle, reconstructs
// the committed state from the delta record, and checks both the
// reconstruction against the claimed state and the record's inclusion in the
// manifest root. The two failure kinds are deliberately distinct from oracle
// unavailability: the former are semantic and drive dispute rejection, the
// latter is transient and retryable.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/consensys/cantor/delta"
	"github.com/consensys/cantor/logger"
	"github.com/consensys/cantor/manifest"
	"github.com/consensys/cantor/merkle"
	"github.com/consensys/cantor/oracle"
	"github.com/consensys/cantor/state"
	"github.com/rs/zerolog"
)

// ErrReconstructionMismatch is returned when the state reconstructed from
// the prediction and the record differs from the claimed actual state.
// Semantic failure; never retried.
var ErrReconstructionMismatch = errors.New("reconstructed state does not match claim")

// ErrInclusionFailure is returned when the record's leaf hash does not prove
// against the manifest root, or when the record's mode contradicts the
// manifest's mode bitmap. Semantic failure; never retried.
var ErrInclusionFailure = errors.New("record not included under manifest root")

// DefaultOracleTimeout bounds the single suspending operation in a
// verification, the oracle call.
const DefaultOracleTimeout = 30 * time.Second

// Verifier validates compression claims against manifests. Safe for
// concurrent use: every verification is pure apart from the oracle call.
type Verifier struct {
	oracle  oracle.Oracle
	engine  *delta.Engine
	timeout time.Duration
	log     zerolog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier) error

// WithOracleTimeout overrides the per-verification oracle deadline.
func WithOracleTimeout(d time.Duration) Option {
	return func(v *Verifier) error {
		if d <= 0 {
			return fmt.Errorf("oracle timeout must be positive, got %s", d)
		}
		v.timeout = d
		return nil
	}
}

// WithLogger overrides the verifier's logger. zerolog.Nop() disables
// logging.
func WithLogger(l zerolog.Logger) Option {
	return func(v *Verifier) error {
		v.log = l
		return nil
	}
}

// New returns a verifier backed by the given oracle. The engine carries the
// block's pinned model version and payload codec; it must match the manifest
// being verified against.
func New(o oracle.Oracle, engine *delta.Engine, opts ...Option) (*Verifier, error) {
	v := &Verifier{
		oracle:  o,
		engine:  engine,
		timeout: DefaultOracleTimeout,
		log:     logger.Logger().With().Str("component", "verifier").Logger(),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Verify checks the compression claim for txIndex under m.
//
// Steps, in order: re-derive the prediction through the oracle (suspending;
// a timeout or cancellation surfaces as oracle.ErrUnavailable), reconstruct
// the state committed by rec and compare it with claimedActual, then check
// rec's inclusion under m.Root. Success requires all checks to pass.
func (v *Verifier) Verify(
	ctx context.Context,
	m *manifest.Manifest,
	txIndex uint64,
	claimedActual state.Vector,
	rec delta.Record,
	proof merkle.Proof,
	prevState state.Hash,
	txID state.Hash,
) error {
	if txIndex >= m.LeafCount {
		return fmt.Errorf("%w: tx index %d, block has %d leaves", merkle.ErrIndexOutOfRange, txIndex, m.LeafCount)
	}
	if rec.TxIndex != txIndex {
		return fmt.Errorf("%w: record carries tx index %d, verifying %d", ErrInclusionFailure, rec.TxIndex, txIndex)
	}
	if !m.ModelVersion.EQ(v.engine.ModelVersion()) {
		return fmt.Errorf("%w: manifest pinned to %s, verifier to %s",
			delta.ErrModelVersionMismatch, m.ModelVersion, v.engine.ModelVersion())
	}

	prediction, err := v.predict(ctx, prevState, txID)
	if err != nil {
		return err
	}

	reconstructed, err := v.engine.Reconstruct(prediction, rec)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrReconstructionMismatch, err)
	}
	if !reconstructed.Equal(claimedActual) {
		return fmt.Errorf("%w: tx index %d", ErrReconstructionMismatch, txIndex)
	}

	if m.FullStateMode(txIndex) != (rec.Mode == delta.FullState) {
		return fmt.Errorf("%w: record mode %s contradicts manifest bitmap", ErrInclusionFailure, rec.Mode)
	}
	if proof.Index != txIndex {
		return fmt.Errorf("%w: proof indexes leaf %d, verifying %d", ErrInclusionFailure, proof.Index, txIndex)
	}
	if len(proof.Path) != merkle.PathLength(m.LeafCount) {
		return fmt.Errorf("%w: proof length %d, want %d", ErrInclusionFailure, len(proof.Path), merkle.PathLength(m.LeafCount))
	}
	if !merkle.VerifyProof(m.Root, merkle.LeafHash(rec.Bytes()), proof) {
		return fmt.Errorf("%w: tx index %d", ErrInclusionFailure, txIndex)
	}

	v.log.Debug().Uint64("block", m.BlockID).Uint64("txIndex", txIndex).Msg("claim verified")
	return nil
}

// predict calls the oracle under the verifier's timeout, normalizing every
// failure mode to the retryable oracle.ErrUnavailable so callers never
// mistake an oracle outage for a failed verification.
func (v *Verifier) predict(ctx context.Context, prevState, txID state.Hash) (oracle.Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	p, err := v.oracle.Predict(ctx, prevState, txID)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, oracle.ErrUnavailable) {
		return oracle.Prediction{}, err
	}
	return oracle.Prediction{}, fmt.Errorf("%w: %s", oracle.ErrUnavailable, err)
}
