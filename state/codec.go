// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

package state

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedEncoding is returned when a byte sequence cannot be decoded
// into the object it claims to encode: truncated input, trailing garbage or
// an unknown codec tag. It indicates integration misuse or tampering and is
// never retryable.
var ErrMalformedEncoding = errors.New("malformed encoding")

// ErrDimensionMismatch is returned by Encode when the vector does not have
// the codec's dimension.
var ErrDimensionMismatch = errors.New("state vector dimension mismatch")

// Codec is the canonical fixed-width encoder for state vectors of a fixed
// dimension. Each component is written as 8 little-endian bytes, making the
// mapping injective and its inverse exact. Codec is stateless and safe for
// concurrent use.
type Codec struct {
	dimension int
}

// NewCodec returns a codec for vectors of the given dimension.
func NewCodec(dimension int) (*Codec, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	return &Codec{dimension: dimension}, nil
}

// Dimension returns the vector dimension the codec operates on.
func (c *Codec) Dimension() int {
	return c.dimension
}

// EncodedSize returns the byte length of any canonical encoding.
func (c *Codec) EncodedSize() int {
	return 8 * c.dimension
}

// Encode returns the canonical encoding of v.
func (c *Codec) Encode(v Vector) ([]byte, error) {
	if len(v) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), c.dimension)
	}
	out := make([]byte, 8*c.dimension)
	for i, comp := range v {
		binary.LittleEndian.PutUint64(out[8*i:], uint64(comp))
	}
	return out, nil
}

// Decode is the exact inverse of Encode. It fails with ErrMalformedEncoding
// on input whose length is not exactly 8*dimension.
func (c *Codec) Decode(b []byte) (Vector, error) {
	if len(b) != 8*c.dimension {
		return nil, fmt.Errorf("%w: %d bytes for dimension %d", ErrMalformedEncoding, len(b), c.dimension)
	}
	v := make(Vector, c.dimension)
	for i := range v {
		v[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}
