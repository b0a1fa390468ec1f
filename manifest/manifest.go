// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package manifest assembles the per-block compression commitment: the
// sealed tree root, the positional mode bitmap, the delta size histogram and
// the oracle model version used for every prediction in the block.
//
// The manifest is the only artifact persisted or transmitted for a block's
// compression claim. Its serialized field order and format tag are part of
// the cross-implementation compatibility surface.
package manifest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/blang/semver/v4"
	"github.com/consensys/cantor/delta"
	"github.com/consensys/cantor/state"
)

// formatVersion tags the serialized layout.
const formatVersion byte = 1

// HistogramBuckets is the number of power-of-two payload size buckets.
const HistogramBuckets = 16

// ErrUnsupportedFormat is returned by ReadFrom on an unknown format tag.
var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// Bounds on untrusted length fields, checked before any allocation driven by
// deserialized input.
const (
	// maxLeafCount caps the records per block a manifest may claim.
	maxLeafCount = 1 << 26
	// maxVersionLen caps the serialized model version string.
	maxVersionLen = 256
)

// Manifest is a block's published compression commitment. Immutable once
// built; safe to share across concurrent verifications without locking.
type Manifest struct {
	BlockID       uint64
	Root          state.Hash
	Modes         *bitset.BitSet // bit i set iff record i is FullState
	LeafCount     uint64
	SizeHistogram [HistogramBuckets]uint32
	ModelVersion  semver.Version
}

// Build assembles the manifest for a sealed block from its ordered records.
func Build(blockID uint64, root state.Hash, records []delta.Record, modelVersion semver.Version) (*Manifest, error) {
	m := &Manifest{
		BlockID:      blockID,
		Root:         root,
		Modes:        bitset.New(uint(len(records))),
		LeafCount:    uint64(len(records)),
		ModelVersion: modelVersion,
	}
	for i, r := range records {
		if r.TxIndex != uint64(i) {
			return nil, fmt.Errorf("record %d carries tx index %d", i, r.TxIndex)
		}
		if r.Mode == delta.FullState {
			m.Modes.Set(uint(i))
		}
		m.SizeHistogram[histogramBucket(len(r.Payload))]++
	}
	return m, nil
}

// FullStateMode reports whether record txIndex was committed in FullState
// mode.
func (m *Manifest) FullStateMode(txIndex uint64) bool {
	return m.Modes.Test(uint(txIndex))
}

// FullStateCount returns the number of FullState records in the block.
func (m *Manifest) FullStateCount() uint64 {
	return uint64(m.Modes.Count())
}

// histogramBucket maps a payload byte size to its power-of-two bucket:
// bucket 0 holds size 0, bucket b holds sizes in [2^(b-1), 2^b).
func histogramBucket(size int) int {
	b := bits.Len(uint(size))
	if b >= HistogramBuckets {
		return HistogramBuckets - 1
	}
	return b
}

// WriteTo serializes the manifest. Field order: format tag, block id, root,
// leaf count, size histogram, model version, mode bitmap.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	var written int64

	n, err := w.Write([]byte{formatVersion})
	written += int64(n)
	if err != nil {
		return written, err
	}

	var header [8 + state.HashSize + 8 + 4*HistogramBuckets]byte
	binary.LittleEndian.PutUint64(header[:8], m.BlockID)
	copy(header[8:], m.Root[:])
	binary.LittleEndian.PutUint64(header[8+state.HashSize:], m.LeafCount)
	for i, c := range m.SizeHistogram {
		binary.LittleEndian.PutUint32(header[8+state.HashSize+8+4*i:], c)
	}
	n, err = w.Write(header[:])
	written += int64(n)
	if err != nil {
		return written, err
	}

	nn, err := writeBytes(w, []byte(m.ModelVersion.String()))
	written += nn
	if err != nil {
		return written, err
	}

	bitmap, err := m.Modes.MarshalBinary()
	if err != nil {
		return written, err
	}
	nn, err = writeBytes(w, bitmap)
	written += nn
	return written, err
}

// ReadFrom deserializes a manifest written by WriteTo.
func (m *Manifest) ReadFrom(r io.Reader) (int64, error) {
	var read int64

	var tag [1]byte
	n, err := io.ReadFull(r, tag[:])
	read += int64(n)
	if err != nil {
		return read, err
	}
	if tag[0] != formatVersion {
		return read, fmt.Errorf("%w: tag %d", ErrUnsupportedFormat, tag[0])
	}

	var header [8 + state.HashSize + 8 + 4*HistogramBuckets]byte
	n, err = io.ReadFull(r, header[:])
	read += int64(n)
	if err != nil {
		return read, err
	}
	m.BlockID = binary.LittleEndian.Uint64(header[:8])
	copy(m.Root[:], header[8:])
	m.LeafCount = binary.LittleEndian.Uint64(header[8+state.HashSize:])
	if m.LeafCount > maxLeafCount {
		return read, fmt.Errorf("%w: leaf count %d exceeds %d", state.ErrMalformedEncoding, m.LeafCount, maxLeafCount)
	}
	for i := range m.SizeHistogram {
		m.SizeHistogram[i] = binary.LittleEndian.Uint32(header[8+state.HashSize+8+4*i:])
	}

	version, nn, err := readBytes(r, maxVersionLen)
	read += nn
	if err != nil {
		return read, err
	}
	m.ModelVersion, err = semver.Parse(string(version))
	if err != nil {
		return read, fmt.Errorf("%w: model version: %s", state.ErrMalformedEncoding, err)
	}

	// a bitmap over LeafCount bits marshals to 8 length bytes plus one u64
	// word per 64 bits; anything larger cannot be honest
	bitmap, nn, err := readBytes(r, 8+8*((m.LeafCount+63)/64))
	read += nn
	if err != nil {
		return read, err
	}
	m.Modes = bitset.New(uint(m.LeafCount))
	if err := m.Modes.UnmarshalBinary(bitmap); err != nil {
		return read, fmt.Errorf("%w: mode bitmap: %s", state.ErrMalformedEncoding, err)
	}
	return read, nil
}

// writeBytes writes a u32-length-prefixed byte slice.
func writeBytes(w io.Writer, b []byte) (int64, error) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	n, err := w.Write(l[:])
	if err != nil {
		return int64(n), err
	}
	nn, err := w.Write(b)
	return int64(n + nn), err
}

// readBytes reads a u32-length-prefixed byte slice, rejecting any claimed
// length above max before allocating.
func readBytes(r io.Reader, max uint64) ([]byte, int64, error) {
	var l [4]byte
	n, err := io.ReadFull(r, l[:])
	if err != nil {
		return nil, int64(n), err
	}
	length := binary.LittleEndian.Uint32(l[:])
	if uint64(length) > max {
		return nil, int64(n), fmt.Errorf("%w: length %d exceeds %d", state.ErrMalformedEncoding, length, max)
	}
	b := make([]byte, length)
	nn, err := io.ReadFull(r, b)
	return b, int64(n + nn), err
}
