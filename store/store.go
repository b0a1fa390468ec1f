// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

// Package store persists published manifests and their delta records.
//
// Manifests are stored in their wire form, records as zstd-compressed CBOR
// archives, both keyed by big-endian block id so range scans walk blocks in
// order.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/consensys/cantor/delta"
	"github.com/consensys/cantor/encoding"
	"github.com/consensys/cantor/logger"
	"github.com/consensys/cantor/manifest"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no block with the requested id has been
// stored.
var ErrNotFound = errors.New("block not found in store")

const (
	prefixManifest = 'm'
	prefixRecords  = 'r'
)

// Store is a pebble-backed archive of compression results. Safe for
// concurrent use.
type Store struct {
	db  *pebble.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	log zerolog.Logger
}

type config struct {
	fs vfs.FS
}

// Option configures a Store.
type Option func(*config) error

// InMemory keeps the whole store in memory. Used by tests and ephemeral
// verifier deployments.
func InMemory() Option {
	return func(c *config) error {
		c.fs = vfs.NewMem()
		return nil
	}
}

// Open opens (creating if needed) the archive at path.
func Open(path string, opts ...Option) (*Store, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	pebbleOpts := &pebble.Options{}
	if cfg.fs != nil {
		pebbleOpts.FS = cfg.fs
	}
	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		db:  db,
		enc: enc,
		dec: dec,
		log: logger.Logger().With().Str("component", "store").Logger(),
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func blockKey(prefix byte, blockID uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], blockID)
	return key
}

// Put stores a block's manifest and its ordered records atomically.
func (s *Store) Put(m *manifest.Manifest, records []delta.Record) error {
	var mb bytes.Buffer
	if _, err := m.WriteTo(&mb); err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}

	archive, err := encoding.Marshal(records)
	if err != nil {
		return fmt.Errorf("serialize records: %w", err)
	}
	compressed := s.enc.EncodeAll(archive, nil)

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(blockKey(prefixManifest, m.BlockID), mb.Bytes(), nil); err != nil {
		return err
	}
	if err := batch.Set(blockKey(prefixRecords, m.BlockID), compressed, nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}

	s.log.Debug().
		Uint64("block", m.BlockID).
		Uint64("leaves", m.LeafCount).
		Int("archiveBytes", len(archive)).
		Int("storedBytes", len(compressed)).
		Msg("block stored")
	return nil
}

// Manifest loads the stored manifest for blockID.
func (s *Store) Manifest(blockID uint64) (*manifest.Manifest, error) {
	val, closer, err := s.db.Get(blockKey(prefixManifest, blockID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: block %d", ErrNotFound, blockID)
		}
		return nil, err
	}
	defer closer.Close()

	var m manifest.Manifest
	if _, err := m.ReadFrom(bytes.NewReader(val)); err != nil {
		return nil, fmt.Errorf("decode manifest for block %d: %w", blockID, err)
	}
	return &m, nil
}

// Records loads the ordered delta records for blockID.
func (s *Store) Records(blockID uint64) ([]delta.Record, error) {
	val, closer, err := s.db.Get(blockKey(prefixRecords, blockID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: block %d", ErrNotFound, blockID)
		}
		return nil, err
	}
	defer closer.Close()

	archive, err := s.dec.DecodeAll(val, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress records for block %d: %w", blockID, err)
	}
	var records []delta.Record
	if err := encoding.Unmarshal(archive, &records); err != nil {
		return nil, fmt.Errorf("decode records for block %d: %w", blockID, err)
	}
	return records, nil
}

// Has reports whether blockID has been stored.
func (s *Store) Has(blockID uint64) (bool, error) {
	_, closer, err := s.db.Get(blockKey(prefixManifest, blockID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

// Blocks returns the stored block ids in ascending order.
func (s *Store) Blocks() ([]uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixManifest},
		UpperBound: []byte{prefixManifest + 1},
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var blocks []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != 9 {
			continue
		}
		blocks = append(blocks, binary.BigEndian.Uint64(key[1:]))
	}
	return blocks, iter.Error()
}

// Stats summarizes the archive.
type Stats struct {
	Blocks         uint64
	Records        uint64
	FullStateCount uint64
	PayloadBytes   uint64
	StoredBytes    uint64
}

// Stats walks the stored manifests and record blobs and aggregates sizes.
func (s *Store) Stats() (Stats, error) {
	blocks, err := s.Blocks()
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, blockID := range blocks {
		m, err := s.Manifest(blockID)
		if err != nil {
			return Stats{}, err
		}
		st.Blocks++
		st.Records += m.LeafCount
		st.FullStateCount += m.FullStateCount()

		val, closer, err := s.db.Get(blockKey(prefixRecords, blockID))
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				continue
			}
			return Stats{}, err
		}
		st.StoredBytes += uint64(len(val))
		closer.Close()

		records, err := s.Records(blockID)
		if err != nil {
			return Stats{}, err
		}
		for i := range records {
			st.PayloadBytes += uint64(len(records[i].Payload))
		}
	}
	return st, nil
}
