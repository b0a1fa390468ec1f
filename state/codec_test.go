package state

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	properties.Property("decode(encode(v)) == v", prop.ForAll(
		func(components []int64) bool {
			codec, err := NewCodec(len(components))
			if err != nil {
				return false
			}
			encoded, err := codec.Encode(Vector(components))
			if err != nil {
				return false
			}
			decoded, err := codec.Decode(encoded)
			if err != nil {
				return false
			}
			return decoded.Equal(Vector(components))
		},
		gen.SliceOfN(64, gen.Int64()),
	))

	properties.TestingRun(t)
}

func TestCodecInjective(t *testing.T) {
	assert := require.New(t)

	codec, err := NewCodec(4)
	assert.NoError(err)

	a, err := codec.Encode(Vector{1, 2, 3, 4})
	assert.NoError(err)
	b, err := codec.Encode(Vector{1, 2, 3, 5})
	assert.NoError(err)
	assert.NotEqual(a, b)

	// same vector encodes identically
	a2, err := codec.Encode(Vector{1, 2, 3, 4})
	assert.NoError(err)
	assert.Equal(a, a2)
}

func TestCodecMalformed(t *testing.T) {
	assert := require.New(t)

	codec, err := NewCodec(4)
	assert.NoError(err)
	encoded, err := codec.Encode(Vector{1, -2, 3, -4})
	assert.NoError(err)

	_, err = codec.Decode(encoded[:len(encoded)-1])
	assert.ErrorIs(err, ErrMalformedEncoding)

	_, err = codec.Decode(append(encoded, 0x00))
	assert.ErrorIs(err, ErrMalformedEncoding)

	_, err = codec.Decode(nil)
	assert.ErrorIs(err, ErrMalformedEncoding)
}

func TestCodecDimensionMismatch(t *testing.T) {
	assert := require.New(t)

	codec, err := NewCodec(4)
	assert.NoError(err)
	_, err = codec.Encode(Vector{1, 2, 3})
	assert.ErrorIs(err, ErrDimensionMismatch)

	_, err = NewCodec(0)
	assert.Error(err)
}

func TestCommitment(t *testing.T) {
	assert := require.New(t)

	a := Vector{1, 2, 3, 4}.Commitment()
	b := Vector{1, 2, 3, 5}.Commitment()
	assert.NotEqual(a, b)
	assert.Equal(a, Vector{1, 2, 3, 4}.Commitment())
}
