// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package oracle defines the capability interface through which the protocol
// consumes state predictions.
//
// The predictive model itself (training, architecture, numeric runtime) lives
// outside this module. The protocol only requires that for a fixed model
// version, Predict is deterministic in its arguments, so that any verifier
// can re-derive the prediction a prover used.
package oracle

import (
	"context"
	"errors"

	"github.com/blang/semver/v4"
	"github.com/consensys/cantor/state"
)

// ErrUnavailable is returned when the oracle cannot be reached or does not
// answer within the caller's deadline. It is transient: callers may retry
// with backoff. It must never be conflated with a failed verification.
var ErrUnavailable = errors.New("oracle unavailable")

// Prediction is the oracle's output for one (prev state commitment,
// transaction) pair. Immutable once returned.
type Prediction struct {
	Predicted    state.Vector
	Confidence   float64
	ModelVersion semver.Version
}

// Oracle produces next-state predictions. Predict may block on network or
// model inference; implementations must honor ctx cancellation and deadline,
// and should return an error wrapping ErrUnavailable on transient failure.
type Oracle interface {
	Predict(ctx context.Context, prevState state.Hash, txID state.Hash) (Prediction, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, prevState state.Hash, txID state.Hash) (Prediction, error)

func (f Func) Predict(ctx context.Context, prevState state.Hash, txID state.Hash) (Prediction, error) {
	return f(ctx, prevState, txID)
}
