package compliance

import (
	"errors"
	"fmt"
	"math/big"
)

// DigestSize is the fixed width of a serialised digest
const DigestSize = 32

var errDigestWidth = errors.New("digest width out of range")

// EncodeDigest serialises v as 32 little-endian bytes: the 32-byte big-endian
// value reversed, zero-padded at the high end.
func EncodeDigest(v *big.Int) ([DigestSize]byte, error) {
	var out [DigestSize]byte
	if v.Sign() < 0 || v.BitLen() > DigestSize*8 {
		return out, fmt.Errorf("%w: value does not fit %d bytes", errDigestWidth, DigestSize)
	}

	v.FillBytes(out[:])
	reverse(out[:])
	return out, nil
}

// PadDigest widens a little-endian digest of 1..32 bytes to the fixed width
func PadDigest(le []byte) ([DigestSize]byte, error) {
	var out [DigestSize]byte
	if len(le) == 0 || len(le) > DigestSize {
		return out, fmt.Errorf("%w: got %d bytes", errDigestWidth, len(le))
	}

	copy(out[:], le)
	return out, nil
}

// DecodeDigest reads a little-endian digest of 1..32 bytes
func DecodeDigest(le []byte) (*big.Int, error) {
	padded, err := PadDigest(le)
	if err != nil {
		return nil, err
	}

	reverse(padded[:])
	return new(big.Int).SetBytes(padded[:]), nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
