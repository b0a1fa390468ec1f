package delta

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/consensys/cantor/state"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

var allCodecs = []Codec{CodecVarint, CodecIntcomp, CodecPacked}

func TestCodecBodyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	for _, codec := range allCodecs {
		properties.Property("decode(encode(d)) == d / "+codec.String(), prop.ForAll(
			func(d []int64) bool {
				body, err := codec.encodeBody(d)
				if err != nil {
					return false
				}
				back, err := codec.decodeBody(body, len(d))
				if err != nil || len(back) != len(d) {
					return false
				}
				for i := range d {
					if d[i] != back[i] {
						return false
					}
				}
				return true
			},
			gen.SliceOfN(48, gen.Int64Range(-1_000_000, 1_000_000)),
		))
	}

	properties.TestingRun(t)
}

func TestVarintSparseDeltaIsShort(t *testing.T) {
	assert := require.New(t)

	// one zero run plus two small values
	d := make([]int64, 256)
	d[100] = 7
	d[200] = -3
	body, err := CodecVarint.encodeBody(d)
	assert.NoError(err)
	assert.Less(len(body), 16, "sparse delta should encode in a handful of bytes")

	back, err := CodecVarint.decodeBody(body, 256)
	assert.NoError(err)
	assert.Equal(d, back)
}

func TestVarintAllZeros(t *testing.T) {
	assert := require.New(t)

	d := make([]int64, 4096)
	body, err := CodecVarint.encodeBody(d)
	assert.NoError(err)
	// 0x00 marker + varint(4096)
	assert.Equal(3, len(body))

	back, err := CodecVarint.decodeBody(body, 4096)
	assert.NoError(err)
	assert.Equal(d, back)
}

func TestVarintDeterministic(t *testing.T) {
	assert := require.New(t)

	d := []int64{0, 0, 5, -5, 0, 1, 0, 0, 0}
	a, err := CodecVarint.encodeBody(d)
	assert.NoError(err)
	b, err := CodecVarint.encodeBody(d)
	assert.NoError(err)
	assert.Equal(a, b)
}

func TestCodecBodyMalformed(t *testing.T) {
	assert := require.New(t)

	for _, codec := range allCodecs {
		body, err := codec.encodeBody([]int64{1, -2, 0, 0, 3, 4, -7, 0})
		assert.NoError(err)

		// truncation must never silently decode
		_, err = codec.decodeBody(body[:len(body)-1], 8)
		assert.ErrorIs(err, state.ErrMalformedEncoding, codec.String())

		// wrong dimension must be rejected
		_, err = codec.decodeBody(body, 9)
		assert.ErrorIs(err, state.ErrMalformedEncoding, codec.String())
	}

	_, err := Codec(42).decodeBody([]byte{1, 2, 3}, 4)
	assert.ErrorIs(err, state.ErrMalformedEncoding)
}

func TestIntcompGarbageWords(t *testing.T) {
	assert := require.New(t)

	// well-formed framing around words that are not an intcomp stream: the
	// block headers inside must not be trusted
	body := binary.AppendUvarint(nil, 2)
	body = append(body, bytes.Repeat([]byte{0xFF}, 16)...)
	_, err := CodecIntcomp.decodeBody(body, 8)
	assert.ErrorIs(err, state.ErrMalformedEncoding)

	// all-zero words are equally invalid
	body = binary.AppendUvarint(nil, 4)
	body = append(body, make([]byte, 32)...)
	d, err := CodecIntcomp.decodeBody(body, 8)
	if err == nil {
		// if the stream happens to decode, it must still match the dimension
		assert.Equal(8, len(d))
	} else {
		assert.ErrorIs(err, state.ErrMalformedEncoding)
	}
}

func TestZigzag(t *testing.T) {
	assert := require.New(t)

	assert.Equal(uint64(0), zigzag(0))
	assert.Equal(uint64(1), zigzag(-1))
	assert.Equal(uint64(2), zigzag(1))
	assert.Equal(int64(0), unzigzag(0))
	assert.Equal(int64(-1), unzigzag(1))
	assert.Equal(int64(1), unzigzag(2))

	for _, v := range []int64{-(1 << 62), -1000, -1, 0, 1, 1000, 1 << 62} {
		assert.Equal(v, unzigzag(zigzag(v)))
	}
}
