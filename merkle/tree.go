// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package merkle implements the append-only binary hash tree committing one
// block's delta records.
//
// Leaves are appended in strict, gapless tx index order; that ordering is
// what lets the manifest's mode bitmap be positional rather than keyed. Once
// sealed the tree is immutable and safe to share without locking. A tree
// under construction is owned by the single block pipeline and must not be
// read concurrently with Append.
//
// Leaf and internal node hashes are domain separated with distinct tag bytes
// to rule out leaf/node second-preimage confusion; the tags are part of the
// cross-implementation compatibility surface.
package merkle

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/consensys/cantor/state"
	"github.com/zeebo/blake3"
)

const (
	tagLeaf      = 0x00
	tagNode      = 0x01
	tagEmptyLeaf = 0x02
)

// ErrOutOfOrderAppend is returned when an appended record's tx index is not
// exactly the next expected index.
var ErrOutOfOrderAppend = errors.New("out of order append")

// ErrTreeSealed is returned by Append once the tree has been sealed.
var ErrTreeSealed = errors.New("tree already sealed")

// ErrIndexOutOfRange is returned by Proof for an index outside the leaf
// range, or for any index before the tree is sealed.
var ErrIndexOutOfRange = errors.New("leaf index out of range")

// Proof is an inclusion proof: the sibling hashes on the path from a leaf to
// the root, leaf level first.
type Proof struct {
	Index uint64
	Path  []state.Hash
}

// Tree is the per-block delta commitment structure. The arena of per-level
// hash slices is built at seal time from the leaves, which keeps proof-path
// lookup a pair of index operations.
type Tree struct {
	leaves []state.Hash
	levels [][]state.Hash
	root   state.Hash
	sealed bool
}

// NewTree returns an empty, unsealed tree.
func NewTree() *Tree {
	return &Tree{}
}

// LeafHash returns the domain-separated hash of a record's canonical byte
// form.
func LeafHash(canonical []byte) state.Hash {
	h := blake3.New()
	h.Write([]byte{tagLeaf})
	h.Write(canonical)
	var out state.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func nodeHash(left, right state.Hash) state.Hash {
	h := blake3.New()
	h.Write([]byte{tagNode})
	h.Write(left[:])
	h.Write(right[:])
	var out state.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func emptyLeafHash() state.Hash {
	var out state.Hash
	sum := blake3.Sum256([]byte{tagEmptyLeaf})
	copy(out[:], sum[:])
	return out
}

// Append adds the leaf for the record with the given tx index. The index
// must be exactly the next expected one.
func (t *Tree) Append(txIndex uint64, canonical []byte) error {
	if t.sealed {
		return fmt.Errorf("%w: cannot append leaf %d", ErrTreeSealed, txIndex)
	}
	if txIndex != uint64(len(t.leaves)) {
		return fmt.Errorf("%w: got tx index %d, want %d", ErrOutOfOrderAppend, txIndex, len(t.leaves))
	}
	t.leaves = append(t.leaves, LeafHash(canonical))
	return nil
}

// Seal finalizes the tree and returns its root. Leaves are padded with the
// empty-leaf hash to the next power of two so proofs always have length
// ceil(log2(paddedLeafCount)). Seal is idempotent.
func (t *Tree) Seal() state.Hash {
	if t.sealed {
		return t.root
	}

	padded := paddedSize(len(t.leaves))
	level := make([]state.Hash, padded)
	copy(level, t.leaves)
	empty := emptyLeafHash()
	for i := len(t.leaves); i < padded; i++ {
		level[i] = empty
	}

	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([]state.Hash, len(level)/2)
		for i := range next {
			next[i] = nodeHash(level[2*i], level[2*i+1])
		}
		t.levels = append(t.levels, next)
		level = next
	}

	t.root = level[0]
	t.sealed = true
	return t.root
}

// Sealed reports whether the tree has been finalized.
func (t *Tree) Sealed() bool {
	return t.sealed
}

// Root returns the sealed root.
func (t *Tree) Root() (state.Hash, error) {
	if !t.sealed {
		return state.Hash{}, errors.New("tree not sealed")
	}
	return t.root, nil
}

// LeafCount returns the number of appended leaves (padding excluded).
func (t *Tree) LeafCount() uint64 {
	return uint64(len(t.leaves))
}

// Proof returns the inclusion proof for leaf txIndex. Only available on a
// sealed tree.
func (t *Tree) Proof(txIndex uint64) (Proof, error) {
	if !t.sealed || txIndex >= uint64(len(t.leaves)) {
		return Proof{}, fmt.Errorf("%w: index %d, %d leaves, sealed=%t", ErrIndexOutOfRange, txIndex, len(t.leaves), t.sealed)
	}
	path := make([]state.Hash, 0, len(t.levels)-1)
	idx := txIndex
	for _, level := range t.levels[:len(t.levels)-1] {
		path = append(path, level[idx^1])
		idx >>= 1
	}
	return Proof{Index: txIndex, Path: path}, nil
}

// VerifyProof walks the proof path from leafHash and reports whether it
// lands on root. Pure function.
func VerifyProof(root state.Hash, leafHash state.Hash, proof Proof) bool {
	h := leafHash
	idx := proof.Index
	for _, sibling := range proof.Path {
		if idx&1 == 0 {
			h = nodeHash(h, sibling)
		} else {
			h = nodeHash(sibling, h)
		}
		idx >>= 1
	}
	return h == root
}

// PathLength returns the proof path length for a sealed tree with the given
// leaf count: ceil(log2) of the padded leaf count. Verifiers use it to
// reject proofs whose shape does not match the manifest they are checked
// against.
func PathLength(leafCount uint64) int {
	return bits.Len(uint(paddedSize(int(leafCount))) - 1)
}

// paddedSize returns n rounded up to a power of two, with a minimum of one
// leaf so the empty tree still has a well-defined root.
func paddedSize(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
