// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

package delta

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/consensys/cantor/state"
	"github.com/icza/bitio"
)

// encodePacked implements CodecPacked: a single byte carrying the common bit
// width, then every zig-zagged component written at that width. The width is
// the minimal one fitting the largest component, so the encoding is
// canonical and its size is a pure function of the vector.
func encodePacked(d []int64) ([]byte, error) {
	width := 1
	for _, v := range d {
		if l := bits.Len64(zigzag(v)); l > width {
			width = l
		}
	}

	var bb bytes.Buffer
	bb.Grow(1 + (len(d)*width+7)/8)
	bb.WriteByte(byte(width))
	w := bitio.NewWriter(&bb)
	for _, v := range d {
		if err := w.WriteBits(zigzag(v), uint8(width)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return bb.Bytes(), nil
}

func decodePacked(b []byte, dimension int) ([]int64, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty packed payload", state.ErrMalformedEncoding)
	}
	width := int(b[0])
	if width == 0 || width > 64 {
		return nil, fmt.Errorf("%w: packed bit width %d", state.ErrMalformedEncoding, width)
	}
	if want := 1 + (dimension*width+7)/8; len(b) != want {
		return nil, fmt.Errorf("%w: %d bytes for width %d, want %d", state.ErrMalformedEncoding, len(b), width, want)
	}
	r := bitio.NewReader(bytes.NewReader(b[1:]))
	d := make([]int64, dimension)
	for i := range d {
		u, err := r.ReadBits(uint8(width))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", state.ErrMalformedEncoding, err)
		}
		d[i] = unzigzag(u)
	}
	return d, nil
}
