// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

package delta

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/cantor/state"
	"github.com/ronanh/intcomp"
)

// encodeIntcomp implements CodecIntcomp: zig-zag the components, compress
// the resulting u64 words with intcomp, then frame as a varint word count
// followed by the words in little-endian.
func encodeIntcomp(d []int64) []byte {
	words := make([]uint64, len(d))
	for i, v := range d {
		words[i] = zigzag(v)
	}
	compressed := intcomp.CompressUint64(words, nil)
	out := make([]byte, 0, 8*len(compressed)+4)
	out = binary.AppendUvarint(out, uint64(len(compressed)))
	for _, w := range compressed {
		out = binary.LittleEndian.AppendUint64(out, w)
	}
	return out
}

func decodeIntcomp(b []byte, dimension int) ([]int64, error) {
	count, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, fmt.Errorf("%w: truncated word count", state.ErrMalformedEncoding)
	}
	b = b[n:]
	if uint64(len(b)) != 8*count {
		return nil, fmt.Errorf("%w: %d bytes for %d words", state.ErrMalformedEncoding, len(b), count)
	}
	compressed := make([]uint64, count)
	for i := range compressed {
		compressed[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	words, err := uncompressWords(compressed)
	if err != nil {
		return nil, err
	}
	if len(words) != dimension {
		return nil, fmt.Errorf("%w: %d components, want %d", state.ErrMalformedEncoding, len(words), dimension)
	}
	d := make([]int64, dimension)
	for i, w := range words {
		d[i] = unzigzag(w)
	}
	return d, nil
}

// uncompressWords isolates the intcomp call. The library trusts its block
// headers and panics on crafted streams, so the panic is converted to a
// decode error here; payloads reach this point from untrusted reveals and
// stored records.
func uncompressWords(compressed []uint64) (words []uint64, err error) {
	defer func() {
		if recover() != nil {
			words, err = nil, fmt.Errorf("%w: invalid intcomp stream", state.ErrMalformedEncoding)
		}
	}()
	return intcomp.UncompressUint64(compressed, nil), nil
}
