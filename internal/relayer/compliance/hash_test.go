package compliance

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bn254ScalarField, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

func TestZeroLeaf(t *testing.T) {
	want := new(big.Int).SetBytes(crypto.Keccak256([]byte("tornado")))
	want.Mod(want, bn254ScalarField)

	assert.Equal(t, want, ZeroLeaf())

	// callers must not be able to mutate the constant
	ZeroLeaf().SetInt64(0)
	assert.Equal(t, ZeroLeafDecimal, ZeroLeaf().String())
}

func TestPoseidon_Deterministic(t *testing.T) {
	a, err := Poseidon([]*big.Int{big.NewInt(1), big.NewInt(2)})
	require.NoError(t, err)
	b, err := Poseidon([]*big.Int{big.NewInt(1), big.NewInt(2)})
	require.NoError(t, err)
	swapped, err := Poseidon([]*big.Int{big.NewInt(2), big.NewInt(1)})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, swapped)
	assert.Less(t, a.Cmp(bn254ScalarField), 0)
}

func TestStepIn(t *testing.T) {
	var calls [][]*big.Int
	h := func(inputs []*big.Int) (*big.Int, error) {
		calls = append(calls, inputs)
		return big.NewInt(int64(len(calls) * 100)), nil
	}

	out, err := StepIn(h, big.NewInt(7), big.NewInt(9))
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, []*big.Int{ZeroLeaf(), ZeroLeaf()}, calls[0])
	assert.Equal(t, []*big.Int{big.NewInt(7), big.NewInt(9), big.NewInt(100)}, calls[1])
	assert.Equal(t, big.NewInt(200), out)
}
