// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package encoding offers (de)serialization APIs for archived cantor
// objects. It uses canonical CBOR prefixed with a format version, so
// archives written by one release stay readable, or fail loudly, in the
// next.
//
// Wire-level protocol artifacts (manifests, records) do not go through this
// package; they carry their own fixed binary layout.
package encoding

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// formatVersion is bumped on any breaking change to archived layouts.
const formatVersion uint8 = 1

// ErrUnsupportedFormat is returned when deserializing data written with an
// unknown format version.
var ErrUnsupportedFormat = errors.New("unsupported archive format version")

// Serialize writes v to w as canonical CBOR, preceded by the format
// version.
func Serialize(w io.Writer, v interface{}) error {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return err
	}
	encoder := em.NewEncoder(w)
	if err := encoder.Encode(formatVersion); err != nil {
		return err
	}
	return encoder.Encode(v)
}

// Deserialize reads an object written by Serialize into v, which must be a
// pointer.
func Deserialize(r io.Reader, v interface{}) error {
	decoder := cbor.NewDecoder(r)
	var version uint8
	if err := decoder.Decode(&version); err != nil {
		return err
	}
	if version != formatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, version)
	}
	return decoder.Decode(v)
}

// Marshal is the buffer variant of Serialize.
func Marshal(v interface{}) ([]byte, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	prefix, err := em.Marshal(formatVersion)
	if err != nil {
		return nil, err
	}
	body, err := em.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(prefix, body...), nil
}

// Unmarshal is the buffer variant of Deserialize.
func Unmarshal(data []byte, v interface{}) error {
	var version uint8
	rest, err := cbor.UnmarshalFirst(data, &version)
	if err != nil {
		return err
	}
	if version != formatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, version)
	}
	return cbor.Unmarshal(rest, v)
}
