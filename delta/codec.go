// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

package delta

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/cantor/state"
)

// Codec identifies the variable-length scheme used for DeltaOnly payloads.
// The codec tag is the first payload byte, so a record stays decodable no
// matter which codec the producing engine was configured with.
type Codec uint8

const (
	// CodecVarint is the canonical wire codec: each nonzero component is
	// written as the unsigned varint of its zig-zag encoding, and each
	// maximal run of zero components as a 0x00 marker byte followed by the
	// varint run length. Unambiguous because the zig-zag of a nonzero value
	// never begins with a 0x00 byte.
	CodecVarint Codec = iota
	// CodecIntcomp encodes the zig-zagged components with the intcomp
	// integer compression library, framed as a varint word count followed by
	// the compressed u64 words in little-endian.
	CodecIntcomp
	// CodecPacked bit-packs the zig-zagged components at the minimal common
	// bit width: one width byte followed by dimension values of that width.
	CodecPacked
)

func (c Codec) String() string {
	switch c {
	case CodecVarint:
		return "varint"
	case CodecIntcomp:
		return "intcomp"
	case CodecPacked:
		return "packed"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

func (c Codec) valid() bool {
	return c <= CodecPacked
}

// encodeBody encodes the difference vector d with codec c. The result does
// not include the codec tag byte; threshold comparisons operate on body
// length only.
func (c Codec) encodeBody(d []int64) ([]byte, error) {
	switch c {
	case CodecVarint:
		return encodeVarint(d), nil
	case CodecIntcomp:
		return encodeIntcomp(d), nil
	case CodecPacked:
		return encodePacked(d)
	default:
		return nil, fmt.Errorf("unknown delta codec %d", uint8(c))
	}
}

// decodeBody decodes a payload body into a difference vector of exactly
// dimension components.
func (c Codec) decodeBody(b []byte, dimension int) ([]int64, error) {
	switch c {
	case CodecVarint:
		return decodeVarint(b, dimension)
	case CodecIntcomp:
		return decodeIntcomp(b, dimension)
	case CodecPacked:
		return decodePacked(b, dimension)
	default:
		return nil, fmt.Errorf("%w: unknown delta codec %d", state.ErrMalformedEncoding, uint8(c))
	}
}

func zigzag(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// encodeVarint implements CodecVarint. The encoding is canonical: zero runs
// are always maximal, so two equal vectors always produce identical bytes.
func encodeVarint(d []int64) []byte {
	out := make([]byte, 0, len(d)/4+16)
	for i := 0; i < len(d); {
		if d[i] == 0 {
			j := i
			for j < len(d) && d[j] == 0 {
				j++
			}
			out = append(out, 0x00)
			out = binary.AppendUvarint(out, uint64(j-i))
			i = j
			continue
		}
		out = binary.AppendUvarint(out, zigzag(d[i]))
		i++
	}
	return out
}

func decodeVarint(b []byte, dimension int) ([]int64, error) {
	d := make([]int64, 0, dimension)
	pos := 0
	for pos < len(b) {
		if b[pos] == 0x00 {
			pos++
			run, n := binary.Uvarint(b[pos:])
			if n <= 0 {
				return nil, fmt.Errorf("%w: truncated zero run", state.ErrMalformedEncoding)
			}
			pos += n
			if run == 0 || run > uint64(dimension-len(d)) {
				return nil, fmt.Errorf("%w: zero run of %d exceeds dimension %d", state.ErrMalformedEncoding, run, dimension)
			}
			d = d[:len(d)+int(run)]
			continue
		}
		u, n := binary.Uvarint(b[pos:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: truncated varint", state.ErrMalformedEncoding)
		}
		pos += n
		if len(d) == dimension {
			return nil, fmt.Errorf("%w: more than %d components", state.ErrMalformedEncoding, dimension)
		}
		d = append(d, unzigzag(u))
	}
	if len(d) != dimension {
		return nil, fmt.Errorf("%w: %d components, want %d", state.ErrMalformedEncoding, len(d), dimension)
	}
	return d, nil
}
