package domain

import (
	"fmt"
	"math/big"
	"strings"
)

var (
	two256 = new(big.Int).Lsh(big.NewInt(1), 256)
	two255 = new(big.Int).Lsh(big.NewInt(1), 255)
)

// ParseSignedAmount parses a decimal string or a 0x-prefixed hex string.
// A full-width (64 digit) hex value is read as a two's complement int256.
func ParseSignedAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	if digits, ok := cutHexPrefix(s); ok {
		v, ok := new(big.Int).SetString(digits, 16)
		if !ok || digits == "" {
			return nil, fmt.Errorf("%w: %q is not hex", ErrInvalidAmount, s)
		}
		if len(digits) == 64 && v.Cmp(two255) >= 0 {
			v.Sub(v, two256)
		}
		return v, nil
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, s)
	}
	return v, nil
}

// ParseUnsignedAmount parses a decimal or 0x-prefixed hex uint256
func ParseUnsignedAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if digits, ok := cutHexPrefix(s); ok {
		v, ok := new(big.Int).SetString(digits, 16)
		if !ok || digits == "" {
			return nil, fmt.Errorf("%w: %q is not hex", ErrInvalidAmount, s)
		}
		return v, nil
	}

	v, err := ParseSignedAmount(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	return v, nil
}

func cutHexPrefix(s string) (string, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:], true
	}
	return s, false
}
