package domain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignedAmount(t *testing.T) {
	minusOne := "0x" + strings.Repeat("f", 64)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "decimal deposit", input: "1000000000000000000", want: "1000000000000000000"},
		{name: "decimal withdrawal", input: "-500000000000000000", want: "-500000000000000000"},
		{name: "short hex", input: "0x0de0b6b3a7640000", want: "1000000000000000000"},
		{name: "full width negative hex", input: minusOne, want: "-1"},
		{name: "full width positive hex", input: "0x" + strings.Repeat("0", 63) + "1", want: "1"},
		{name: "zero", input: "0", want: "0"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "12abc", wantErr: true},
		{name: "bare prefix", input: "0x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSignedAmount(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			want, _ := new(big.Int).SetString(tt.want, 10)
			assert.Equal(t, 0, want.Cmp(got), "got %s", got)
		})
	}
}

func TestParseUnsignedAmount(t *testing.T) {
	got, err := ParseUnsignedAmount("0x" + strings.Repeat("f", 64))
	require.NoError(t, err)
	assert.Equal(t, 256, got.BitLen())

	_, err = ParseUnsignedAmount("-1")
	require.ErrorIs(t, err, ErrInvalidAmount)
}
