package store

import (
	"testing"

	"github.com/blang/semver/v4"
	"github.com/consensys/cantor/delta"
	"github.com/consensys/cantor/manifest"
	"github.com/consensys/cantor/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

var testVersion = semver.MustParse("1.0.0")

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open("cantor-test", InMemory())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func testBlock(t *testing.T, blockID uint64, modes ...delta.Mode) (*manifest.Manifest, []delta.Record) {
	t.Helper()
	records := make([]delta.Record, len(modes))
	for i, m := range modes {
		payload := []byte{byte(blockID), byte(i), 0x00, 0x07}
		if m == delta.FullState {
			payload = make([]byte, 128)
			payload[0] = byte(blockID)
		}
		records[i] = delta.Record{TxIndex: uint64(i), Mode: m, Payload: payload}
	}
	root := state.Hash(blake3.Sum256([]byte{byte(blockID)}))
	m, err := manifest.Build(blockID, root, records, testVersion)
	require.NoError(t, err)
	return m, records
}

func TestPutGetRoundTrip(t *testing.T) {
	assert := require.New(t)
	s := openMem(t)

	m, records := testBlock(t, 42, delta.DeltaOnly, delta.FullState, delta.DeltaOnly)
	assert.NoError(s.Put(m, records))

	back, err := s.Manifest(42)
	assert.NoError(err)
	assert.Equal(m.BlockID, back.BlockID)
	assert.Equal(m.Root, back.Root)
	assert.Equal(m.LeafCount, back.LeafCount)
	assert.True(m.ModelVersion.EQ(back.ModelVersion))
	assert.True(m.Modes.Equal(back.Modes))

	got, err := s.Records(42)
	assert.NoError(err)
	assert.Empty(cmp.Diff(records, got))
}

func TestNotFound(t *testing.T) {
	assert := require.New(t)
	s := openMem(t)

	_, err := s.Manifest(7)
	assert.ErrorIs(err, ErrNotFound)
	_, err = s.Records(7)
	assert.ErrorIs(err, ErrNotFound)

	ok, err := s.Has(7)
	assert.NoError(err)
	assert.False(ok)
}

func TestPutOverwrites(t *testing.T) {
	assert := require.New(t)
	s := openMem(t)

	m1, r1 := testBlock(t, 5, delta.DeltaOnly)
	assert.NoError(s.Put(m1, r1))

	m2, r2 := testBlock(t, 5, delta.FullState, delta.FullState)
	assert.NoError(s.Put(m2, r2))

	back, err := s.Manifest(5)
	assert.NoError(err)
	assert.Equal(uint64(2), back.LeafCount)

	got, err := s.Records(5)
	assert.NoError(err)
	assert.Equal(2, len(got))
}

func TestBlocksAscending(t *testing.T) {
	assert := require.New(t)
	s := openMem(t)

	for _, blockID := range []uint64{900, 3, 1 << 40, 17} {
		m, records := testBlock(t, blockID, delta.DeltaOnly, delta.DeltaOnly)
		assert.NoError(s.Put(m, records))
	}

	blocks, err := s.Blocks()
	assert.NoError(err)
	assert.Equal([]uint64{3, 17, 900, 1 << 40}, blocks)

	ok, err := s.Has(900)
	assert.NoError(err)
	assert.True(ok)
}

func TestStats(t *testing.T) {
	assert := require.New(t)
	s := openMem(t)

	m1, r1 := testBlock(t, 1, delta.DeltaOnly, delta.FullState)
	assert.NoError(s.Put(m1, r1))
	m2, r2 := testBlock(t, 2, delta.DeltaOnly, delta.DeltaOnly, delta.FullState)
	assert.NoError(s.Put(m2, r2))

	st, err := s.Stats()
	assert.NoError(err)
	assert.Equal(uint64(2), st.Blocks)
	assert.Equal(uint64(5), st.Records)
	assert.Equal(uint64(2), st.FullStateCount)
	// 3 delta payloads of 4 bytes each, 2 full payloads of 128
	assert.Equal(uint64(3*4+2*128), st.PayloadBytes)
	assert.NotZero(st.StoredBytes)
}
