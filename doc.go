// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package cantor implements a differential state compression and
// verification protocol for blockchain state.
//
// Given per-transaction state predictions from an external oracle, cantor
// encodes each transaction's true state transition as a compact delta (or a
// full state when the prediction was poor), commits all encodings of a block
// into a Merkle tree, and publishes a manifest binding the root, the
// per-transaction mode bitmap and the oracle model version. Any third party
// with oracle access can then reconstruct or dispute the committed state
// without re-executing the chain.
//
// The packages map onto the protocol components:
//   - state: state vectors and their canonical injective encoding
//   - oracle: the prediction capability interface
//   - delta: per-transaction delta computation, encoding and reconstruction
//   - merkle: the per-block append-only commitment tree and inclusion proofs
//   - manifest: the published per-block commitment artifact
//   - verify: claim verification against a manifest
//   - dispute: the single-round challenge/response resolution protocol
//   - store: the persistent archive of manifests and records
//
// This package ties them together into the per-block compression pipeline.
package cantor

import (
	"github.com/blang/semver/v4"
)

// Version of the protocol implementation.
var Version = semver.MustParse("0.1.0")
