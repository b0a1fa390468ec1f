// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package state defines state vectors and their canonical byte encoding.
//
// A Vector holds the post-transaction state of an account or contract as a
// fixed-dimension slice of fixed-point components (the upstream encoding
// pipeline quantizes at scale 1e3). All protocol commitments are computed
// over the canonical encoding produced by Codec, which is injective for a
// given dimension: no two distinct vectors share an encoding.
package state

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashSize is the size in bytes of all protocol hashes.
const HashSize = 32

// DefaultDimension is the state vector dimension produced by the upstream
// encoding pipeline.
const DefaultDimension = 4096

// domain separation tags. These are part of the cross-implementation
// compatibility surface and must not change.
const (
	tagCommitment = 0x03
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [HashSize]byte

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// HashFromSlice copies b into a Hash. Returns false if b is not exactly
// HashSize bytes.
func HashFromSlice(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != HashSize {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// Vector is a fixed-point state vector. It is immutable by convention once
// handed to the protocol; no component ever mutates one in place.
type Vector []int64

// NewVector returns a zero vector of the given dimension.
func NewVector(dimension int) Vector {
	return make(Vector, dimension)
}

// Dimension returns the number of components.
func (v Vector) Dimension() int {
	return len(v)
}

// Equal reports whether v and o have the same dimension and components.
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// Commitment returns the domain-separated hash of the vector's canonical
// encoding. It is the value verifiers use as prev_state_commitment.
func (v Vector) Commitment() Hash {
	h := blake3.New()
	h.Write([]byte{tagCommitment})
	var buf [8]byte
	for _, c := range v {
		binary.LittleEndian.PutUint64(buf[:], uint64(c))
		h.Write(buf[:])
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
