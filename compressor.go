// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

package cantor

import (
	"context"
	"fmt"
	"runtime"

	"github.com/consensys/cantor/delta"
	"github.com/consensys/cantor/logger"
	"github.com/consensys/cantor/manifest"
	"github.com/consensys/cantor/merkle"
	"github.com/consensys/cantor/oracle"
	"github.com/consensys/cantor/state"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TxInput is one transaction's contribution to a block: its identifier, the
// committed previous state, and the ground-truth post-state supplied by the
// upstream data pipeline.
type TxInput struct {
	TxID      state.Hash
	PrevState state.Hash
	Actual    state.Vector
}

// BlockResult is the outcome of compressing one block: the published
// manifest, the ordered records, and the sealed tree for proof generation.
type BlockResult struct {
	Manifest *manifest.Manifest
	Records  []delta.Record
	Tree     *merkle.Tree

	// OriginalSize is the canonical byte size of all actual states;
	// CompressedSize the canonical byte size of all records.
	OriginalSize   int
	CompressedSize int
}

// CompressionRatio returns original over compressed size.
func (r *BlockResult) CompressionRatio() float64 {
	if r.CompressedSize == 0 {
		return 0
	}
	return float64(r.OriginalSize) / float64(r.CompressedSize)
}

// BlockCompressor runs the per-block compression pipeline: data-parallel
// delta computation, ordered leaf appends, seal, manifest assembly.
type BlockCompressor struct {
	oracle  oracle.Oracle
	engine  *delta.Engine
	nbTasks int
	log     zerolog.Logger
}

// CompressorOption configures a BlockCompressor.
type CompressorOption func(*BlockCompressor) error

// WithNbTasks sets the number of concurrent delta computations. Defaults to
// runtime.NumCPU().
func WithNbTasks(n int) CompressorOption {
	return func(c *BlockCompressor) error {
		if n <= 0 {
			return fmt.Errorf("nbTasks must be positive, got %d", n)
		}
		c.nbTasks = n
		return nil
	}
}

// NewBlockCompressor returns a pipeline using the given oracle and engine.
// The engine's model version pins the single version every prediction in a
// block must carry.
func NewBlockCompressor(o oracle.Oracle, engine *delta.Engine, opts ...CompressorOption) (*BlockCompressor, error) {
	c := &BlockCompressor{
		oracle:  o,
		engine:  engine,
		nbTasks: runtime.NumCPU(),
		log:     logger.Logger().With().Str("component", "compressor").Logger(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CompressBlock compresses all transactions of a block under the given
// delta threshold (bytes; supplied per block by the external adaptive
// policy).
//
// Delta computation for distinct transactions shares no mutable state and
// runs in parallel; leaf assignment stays deterministic because records are
// collected by index and appended in tx order afterwards.
func (c *BlockCompressor) CompressBlock(ctx context.Context, blockID uint64, txs []TxInput, threshold int) (*BlockResult, error) {
	records := make([]delta.Record, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.nbTasks)
	for i := range txs {
		g.Go(func() error {
			tx := &txs[i]
			prediction, err := c.oracle.Predict(gctx, tx.PrevState, tx.TxID)
			if err != nil {
				return fmt.Errorf("predict tx %d: %w", i, err)
			}
			rec, err := c.engine.Compute(uint64(i), prediction, tx.Actual, threshold)
			if err != nil {
				return fmt.Errorf("compute delta for tx %d: %w", i, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tree := merkle.NewTree()
	for i := range records {
		if err := tree.Append(records[i].TxIndex, records[i].Bytes()); err != nil {
			return nil, err
		}
	}
	root := tree.Seal()

	m, err := manifest.Build(blockID, root, records, c.engine.ModelVersion())
	if err != nil {
		return nil, err
	}

	res := &BlockResult{
		Manifest:     m,
		Records:      records,
		Tree:         tree,
		OriginalSize: len(txs) * 8 * c.engine.Dimension(),
	}
	for i := range records {
		res.CompressedSize += records[i].EncodedSize()
	}

	c.log.Info().
		Uint64("block", blockID).
		Int("txs", len(txs)).
		Uint64("fullState", m.FullStateCount()).
		Float64("ratio", res.CompressionRatio()).
		Msg("block compressed")
	return res, nil
}
