package compliance

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDigest_LittleEndian(t *testing.T) {
	got, err := EncodeDigest(big.NewInt(0x0102))
	require.NoError(t, err)

	assert.Equal(t, byte(0x02), got[0])
	assert.Equal(t, byte(0x01), got[1])
	for i := 2; i < DigestSize; i++ {
		assert.Zero(t, got[i], "byte %d", i)
	}
}

func TestEncodeDigest_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		value *big.Int
	}{
		{name: "negative", value: big.NewInt(-1)},
		{name: "wider than 256 bits", value: new(big.Int).Lsh(big.NewInt(1), 256)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeDigest(tt.value)
			assert.ErrorIs(t, err, errDigestWidth)
		})
	}
}

func TestDigest_RoundTripAllWidths(t *testing.T) {
	for n := 1; n <= DigestSize; n++ {
		le := make([]byte, n)
		for i := range le {
			le[i] = byte(i*7 + 1)
		}

		v, err := DecodeDigest(le)
		require.NoError(t, err, "width %d", n)

		encoded, err := EncodeDigest(v)
		require.NoError(t, err, "width %d", n)

		padded, err := PadDigest(le)
		require.NoError(t, err, "width %d", n)
		assert.Equal(t, padded, encoded, "width %d", n)
		assert.Equal(t, le, encoded[:n], "width %d", n)
	}
}

func TestPadDigest_RejectsBadWidth(t *testing.T) {
	_, err := PadDigest(nil)
	assert.ErrorIs(t, err, errDigestWidth)

	_, err = PadDigest(make([]byte, DigestSize+1))
	assert.ErrorIs(t, err, errDigestWidth)
}
