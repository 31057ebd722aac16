package compliance

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// ZeroLeafDecimal is the empty-accumulator value of the Poseidon trees,
// keccak256("tornado") mod the BN254 scalar field
const ZeroLeafDecimal = "21663839004416932945382355908790599225266501822907911457504978515578255421292"

// ZeroLeaf returns a fresh copy of the zero leaf
func ZeroLeaf() *big.Int {
	v, _ := new(big.Int).SetString(ZeroLeafDecimal, 10)
	return v
}

// HashFunc is the order-sensitive domain hash
type HashFunc func(inputs []*big.Int) (*big.Int, error)

// Poseidon hashes over the BN254 scalar field, matching the circuits
func Poseidon(inputs []*big.Int) (*big.Int, error) {
	out, err := poseidon.Hash(inputs)
	if err != nil {
		return nil, fmt.Errorf("poseidon: %w", err)
	}
	return out, nil
}

// StepIn computes the initial chain state H(txRecordsRoot, allowedTxRecordsRoot, H(ZERO_LEAF, ZERO_LEAF))
func StepIn(h HashFunc, txRecordsRoot, allowedRoot *big.Int) (*big.Int, error) {
	empty, err := h([]*big.Int{ZeroLeaf(), ZeroLeaf()})
	if err != nil {
		return nil, err
	}
	return h([]*big.Int{txRecordsRoot, allowedRoot, empty})
}
