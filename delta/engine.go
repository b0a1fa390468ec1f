// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

package delta

import (
	"errors"
	"fmt"

	"github.com/blang/semver/v4"
	"github.com/consensys/cantor/oracle"
	"github.com/consensys/cantor/state"
)

// ErrIncompatiblePrediction is returned when a prediction's dimension does
// not match the engine's, typically because the prediction came from a stale
// model. The engine never pads or truncates.
var ErrIncompatiblePrediction = errors.New("prediction incompatible with state dimension")

// ErrModelVersionMismatch is returned when a prediction was produced by a
// different model version than the one the block is pinned to. A block must
// use a single model version throughout so verifiers can reproduce every
// prediction.
var ErrModelVersionMismatch = errors.New("prediction model version mismatch")

// Engine computes delta records and reconstructs states from them. It is
// stateless apart from its configuration and safe for concurrent use;
// Compute for distinct transactions is embarrassingly parallel.
type Engine struct {
	codec        Codec
	modelVersion semver.Version
	stateCodec   *state.Codec
}

// Option configures an Engine.
type Option func(*Engine) error

// WithCodec selects the payload codec for DeltaOnly records. Defaults to
// CodecVarint, the canonical wire codec.
func WithCodec(c Codec) Option {
	return func(e *Engine) error {
		if !c.valid() {
			return fmt.Errorf("unknown delta codec %d", uint8(c))
		}
		e.codec = c
		return nil
	}
}

// NewEngine returns an engine for the given vector dimension, pinned to the
// model version every prediction in the block must carry.
func NewEngine(dimension int, modelVersion semver.Version, opts ...Option) (*Engine, error) {
	sc, err := state.NewCodec(dimension)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		codec:        CodecVarint,
		modelVersion: modelVersion,
		stateCodec:   sc,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Codec returns the configured payload codec.
func (e *Engine) Codec() Codec {
	return e.codec
}

// Dimension returns the state vector dimension.
func (e *Engine) Dimension() int {
	return e.stateCodec.Dimension()
}

// ModelVersion returns the model version the engine is pinned to.
func (e *Engine) ModelVersion() semver.Version {
	return e.modelVersion
}

// Compute builds the record committing txIndex's transition from prediction
// to actual. The encoded difference is used if its body fits within
// threshold bytes; otherwise the record falls back to the canonical full
// state. Threshold is per-block configuration set by an external adaptive
// policy; the engine only consumes it.
func (e *Engine) Compute(txIndex uint64, p oracle.Prediction, actual state.Vector, threshold int) (Record, error) {
	dim := e.stateCodec.Dimension()
	if actual.Dimension() != dim || p.Predicted.Dimension() != dim {
		return Record{}, fmt.Errorf("%w: predicted %d, actual %d, engine %d",
			ErrIncompatiblePrediction, p.Predicted.Dimension(), actual.Dimension(), dim)
	}
	if !p.ModelVersion.EQ(e.modelVersion) {
		return Record{}, fmt.Errorf("%w: prediction %s, block pinned to %s",
			ErrModelVersionMismatch, p.ModelVersion, e.modelVersion)
	}

	d := make([]int64, dim)
	for i := range d {
		d[i] = actual[i] - p.Predicted[i]
	}
	body, err := e.codec.encodeBody(d)
	if err != nil {
		return Record{}, err
	}

	if len(body) <= threshold {
		payload := make([]byte, 0, 1+len(body))
		payload = append(payload, byte(e.codec))
		payload = append(payload, body...)
		return Record{TxIndex: txIndex, Mode: DeltaOnly, Payload: payload}, nil
	}

	full, err := e.stateCodec.Encode(actual)
	if err != nil {
		return Record{}, err
	}
	return Record{TxIndex: txIndex, Mode: FullState, Payload: full}, nil
}

// Reconstruct returns the actual state committed by r. For DeltaOnly records
// the payload is decoded and added to the prediction; for FullState records
// the payload is decoded directly and the prediction is ignored (it must
// still be supplied for interface uniformity). Reconstruct is the exact left
// inverse of Compute for any honestly produced record.
func (e *Engine) Reconstruct(p oracle.Prediction, r Record) (state.Vector, error) {
	switch r.Mode {
	case FullState:
		return e.stateCodec.Decode(r.Payload)
	case DeltaOnly:
		if len(r.Payload) == 0 {
			return nil, fmt.Errorf("%w: empty delta payload", state.ErrMalformedEncoding)
		}
		dim := e.stateCodec.Dimension()
		if p.Predicted.Dimension() != dim {
			return nil, fmt.Errorf("%w: predicted %d, engine %d",
				ErrIncompatiblePrediction, p.Predicted.Dimension(), dim)
		}
		d, err := Codec(r.Payload[0]).decodeBody(r.Payload[1:], dim)
		if err != nil {
			return nil, err
		}
		out := make(state.Vector, dim)
		for i := range out {
			out[i] = p.Predicted[i] + d[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown record mode %d", state.ErrMalformedEncoding, uint8(r.Mode))
	}
}
