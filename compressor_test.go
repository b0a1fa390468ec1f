package cantor

import (
	"context"
	"errors"
	"testing"

	"github.com/blang/semver/v4"
	"github.com/consensys/cantor/delta"
	"github.com/consensys/cantor/dispute"
	"github.com/consensys/cantor/merkle"
	"github.com/consensys/cantor/oracle"
	"github.com/consensys/cantor/state"
	"github.com/consensys/cantor/store"
	"github.com/consensys/cantor/verify"
	"github.com/stretchr/testify/require"
)

var testVersion = semver.MustParse("1.0.0")

const testDim = 64

// testOracle predicts a vector derived from the transaction id alone, so
// tests control the delta by choosing the actual state.
func testOracle() oracle.Oracle {
	return oracle.Func(func(_ context.Context, _ state.Hash, txID state.Hash) (oracle.Prediction, error) {
		v := state.NewVector(testDim)
		for i := range v {
			v[i] = int64(txID[0])*1000 + int64(i)
		}
		return oracle.Prediction{Predicted: v, Confidence: 0.9, ModelVersion: testVersion}, nil
	})
}

// blockFixture builds four transactions where the oracle tracks tx 0, 1 and
// 3 closely and is badly wrong about tx 2.
func blockFixture(t *testing.T) []TxInput {
	t.Helper()
	orc := testOracle()
	txs := make([]TxInput, 4)
	for i := range txs {
		var txID, prev state.Hash
		txID[0] = byte(i + 1)
		prev[0] = byte(i)

		p, err := orc.Predict(context.Background(), prev, txID)
		require.NoError(t, err)
		actual := append(state.Vector(nil), p.Predicted...)
		if i == 2 {
			// chaotic transaction: every component far off the prediction
			for j := range actual {
				actual[j] += int64(j+1) * 1_000_000
			}
		} else {
			actual[7] += int64(i + 1)
		}
		txs[i] = TxInput{TxID: txID, PrevState: prev, Actual: actual}
	}
	return txs
}

func TestCompressBlock(t *testing.T) {
	assert := require.New(t)

	engine, err := delta.NewEngine(testDim, testVersion)
	assert.NoError(err)
	c, err := NewBlockCompressor(testOracle(), engine, WithNbTasks(2))
	assert.NoError(err)

	txs := blockFixture(t)
	res, err := c.CompressBlock(context.Background(), 1, txs, 64)
	assert.NoError(err)

	// the chaotic transaction falls back to full state, the rest stay deltas
	assert.Equal(4, len(res.Records))
	assert.Equal(delta.DeltaOnly, res.Records[0].Mode)
	assert.Equal(delta.DeltaOnly, res.Records[1].Mode)
	assert.Equal(delta.FullState, res.Records[2].Mode)
	assert.Equal(delta.DeltaOnly, res.Records[3].Mode)

	assert.False(res.Manifest.FullStateMode(0))
	assert.True(res.Manifest.FullStateMode(2))
	assert.Equal(uint64(1), res.Manifest.FullStateCount())
	assert.Equal(uint64(4), res.Manifest.LeafCount)

	// four leaves, no padding: every proof has length 2
	assert.Equal(uint64(4), res.Tree.LeafCount())
	root, err := res.Tree.Root()
	assert.NoError(err)
	assert.Equal(res.Manifest.Root, root)
	for i := range res.Records {
		proof, err := res.Tree.Proof(uint64(i))
		assert.NoError(err)
		assert.Equal(2, len(proof.Path))
		assert.True(merkle.VerifyProof(root, merkle.LeafHash(res.Records[i].Bytes()), proof))
	}

	assert.Greater(res.CompressionRatio(), 1.0)
}

func TestCompressBlockDeterministic(t *testing.T) {
	assert := require.New(t)

	engine, err := delta.NewEngine(testDim, testVersion)
	assert.NoError(err)

	txs := blockFixture(t)
	// different parallelism, identical block
	a, err := NewBlockCompressor(testOracle(), engine, WithNbTasks(1))
	assert.NoError(err)
	b, err := NewBlockCompressor(testOracle(), engine, WithNbTasks(8))
	assert.NoError(err)

	ra, err := a.CompressBlock(context.Background(), 9, txs, 64)
	assert.NoError(err)
	rb, err := b.CompressBlock(context.Background(), 9, txs, 64)
	assert.NoError(err)
	assert.Equal(ra.Manifest.Root, rb.Manifest.Root)
	assert.Equal(ra.Records, rb.Records)
}

func TestCompressBlockOracleFailure(t *testing.T) {
	assert := require.New(t)

	engine, err := delta.NewEngine(testDim, testVersion)
	assert.NoError(err)

	fail := errors.New("prediction service down")
	flaky := oracle.Func(func(_ context.Context, _, txID state.Hash) (oracle.Prediction, error) {
		if txID[0] == 3 {
			return oracle.Prediction{}, fail
		}
		return testOracle().Predict(context.Background(), state.Hash{}, txID)
	})
	c, err := NewBlockCompressor(flaky, engine)
	assert.NoError(err)

	_, err = c.CompressBlock(context.Background(), 1, blockFixture(t), 64)
	assert.ErrorIs(err, fail)
}

func TestWithNbTasksValidation(t *testing.T) {
	assert := require.New(t)

	engine, err := delta.NewEngine(testDim, testVersion)
	assert.NoError(err)
	_, err = NewBlockCompressor(testOracle(), engine, WithNbTasks(0))
	assert.Error(err)
}

// TestEndToEnd runs the full pipeline: compress a block, archive it, then
// settle disputes against the archived manifest.
func TestEndToEnd(t *testing.T) {
	assert := require.New(t)

	engine, err := delta.NewEngine(testDim, testVersion)
	assert.NoError(err)
	orc := testOracle()
	c, err := NewBlockCompressor(orc, engine)
	assert.NoError(err)

	txs := blockFixture(t)
	res, err := c.CompressBlock(context.Background(), 77, txs, 64)
	assert.NoError(err)

	s, err := store.Open("cantor-e2e", store.InMemory())
	assert.NoError(err)
	defer s.Close()
	assert.NoError(s.Put(res.Manifest, res.Records))

	v, err := verify.New(orc, engine)
	assert.NoError(err)
	resolver := dispute.NewResolver(v, s)

	// an honest reveal for the chaotic transaction is accepted
	proof, err := res.Tree.Proof(2)
	assert.NoError(err)
	d, err := resolver.Submit(context.Background(), 77, 2, dispute.Reveal{
		Record:        res.Records[2],
		Proof:         proof,
		ClaimedActual: txs[2].Actual,
		PrevState:     txs[2].PrevState,
		TxID:          txs[2].TxID,
	})
	assert.NoError(err)
	assert.Equal(dispute.StatusAccepted, d.Status())

	// a reveal claiming a forged actual state is rejected
	forged := append(state.Vector(nil), txs[1].Actual...)
	forged[0] += 42
	proof1, err := res.Tree.Proof(1)
	assert.NoError(err)
	d, err = resolver.Submit(context.Background(), 77, 1, dispute.Reveal{
		Record:        res.Records[1],
		Proof:         proof1,
		ClaimedActual: forged,
		PrevState:     txs[1].PrevState,
		TxID:          txs[1].TxID,
	})
	assert.NoError(err)
	assert.Equal(dispute.StatusRejected, d.Status())
	assert.ErrorIs(d.Cause(), verify.ErrReconstructionMismatch)
}
