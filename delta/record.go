// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package delta computes and encodes the difference between an oracle
// prediction and the ground-truth state of a transaction.
//
// For each transaction the Engine emits exactly one Record, either holding a
// compactly encoded difference vector (DeltaOnly) or, when the prediction was
// too far off to be worth encoding, the canonical encoding of the actual
// state itself (FullState). Reconstruct is the exact left inverse of Compute
// for any honestly produced record.
package delta

import (
	"encoding/binary"
)

// Mode selects how a record's payload encodes the actual state.
type Mode uint8

const (
	// DeltaOnly payloads hold a codec tag byte followed by the encoded
	// difference vector actual - predicted.
	DeltaOnly Mode = iota
	// FullState payloads hold the canonical encoding of the actual state.
	FullState
)

func (m Mode) String() string {
	switch m {
	case DeltaOnly:
		return "delta"
	case FullState:
		return "full"
	default:
		return "unknown"
	}
}

// Record is one transaction's committed state transition. Immutable once
// created.
type Record struct {
	TxIndex uint64
	Mode    Mode
	Payload []byte
}

// recordHeaderSize is the canonical byte overhead of a record on top of its
// payload: tx index (8) + mode (1) + payload length (4).
const recordHeaderSize = 13

// Bytes returns the canonical byte form of the record, the preimage of its
// Merkle leaf hash: txIndex u64 LE || mode || payloadLen u32 LE || payload.
// The layout is part of the cross-implementation compatibility surface.
func (r *Record) Bytes() []byte {
	out := make([]byte, 0, recordHeaderSize+len(r.Payload))
	out = binary.LittleEndian.AppendUint64(out, r.TxIndex)
	out = append(out, byte(r.Mode))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(r.Payload)))
	return append(out, r.Payload...)
}

// EncodedSize returns the canonical byte length of the record.
func (r *Record) EncodedSize() int {
	return recordHeaderSize + len(r.Payload)
}
