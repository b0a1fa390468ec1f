// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package dispute implements the single-round challenge/response protocol
// used when a verifier and a prover disagree about one transaction's
// reconstructed state.
//
// The full reveal is small (one prediction, one delta record, one
// logarithmic proof), so no interactive bisection game is needed: the
// resolver simply replays verification against the revealed material and
// settles the dispute in one step. Bond and penalty mechanics belong to an
// external economic layer.
package dispute

import (
	"errors"
	"sync"

	"github.com/consensys/cantor/delta"
	"github.com/consensys/cantor/merkle"
	"github.com/consensys/cantor/state"
	"github.com/google/uuid"
)

// ErrAlreadyResolved is returned when a resolution is attempted on a
// dispute that already reached a terminal status.
var ErrAlreadyResolved = errors.New("dispute already resolved")

// Status is the dispute state machine: Open is the sole non-terminal state,
// Accepted and Rejected are terminal.
type Status uint8

const (
	// StatusOpen means the dispute has been raised but not yet settled.
	StatusOpen Status = iota
	// StatusAccepted means the reveal verified: the original compression
	// claim stands and the challenger loses.
	StatusAccepted
	// StatusRejected means the reveal failed verification: the manifest's
	// claim for that transaction is void.
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s != StatusOpen
}

// Reveal is the prover's full disclosure for the disputed transaction. It
// deliberately carries no prediction: the resolver re-derives it through the
// oracle, so a prover cannot smuggle in a prediction the model never made.
type Reveal struct {
	Record        delta.Record
	Proof         merkle.Proof
	ClaimedActual state.Vector
	PrevState     state.Hash
	TxID          state.Hash
}

// Dispute is a formal challenge against one transaction's compression
// claim. Status is mutated only by a Resolver, exactly once.
type Dispute struct {
	ID          uuid.UUID
	BlockID     uint64
	TxIndex     uint64
	ClaimedRoot state.Hash
	Reveal      Reveal

	mu     sync.Mutex
	status Status
	cause  error
}

// New opens a dispute over txIndex of blockID, claiming claimedRoot as the
// published manifest root.
func New(blockID, txIndex uint64, claimedRoot state.Hash, reveal Reveal) *Dispute {
	return &Dispute{
		ID:          uuid.New(),
		BlockID:     blockID,
		TxIndex:     txIndex,
		ClaimedRoot: claimedRoot,
		Reveal:      reveal,
	}
}

// Status returns the dispute's current status.
func (d *Dispute) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Cause returns the verification error that drove a rejection, or nil.
func (d *Dispute) Cause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cause
}
