// Package compliance verifies the folded proof that a transaction's input
// nullifiers are absent from the disallowed set.
package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Config holds verifier configuration
type Config struct {
	Engine Engine
	Params *PublicParams
	Roots  RootAuthenticator
	Hash   HashFunc
	Logger *slog.Logger
}

// Verifier checks compliance proofs against transaction nullifiers
type Verifier struct {
	engine Engine
	params *PublicParams
	roots  RootAuthenticator
	hash   HashFunc
	logger *slog.Logger
}

// NewVerifier creates a compliance proof verifier. A nil Hash selects Poseidon.
func NewVerifier(cfg *Config) (*Verifier, error) {
	if cfg.Engine == nil {
		return nil, errors.New("compliance engine is required")
	}
	if cfg.Params == nil {
		return nil, errors.New("compliance public params are required")
	}
	if cfg.Roots == nil {
		return nil, errors.New("compliance root authenticator is required")
	}

	hash := cfg.Hash
	if hash == nil {
		hash = Poseidon
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{
		engine: cfg.Engine,
		params: cfg.Params,
		roots:  cfg.Roots,
		hash:   hash,
		logger: logger,
	}, nil
}

// ParseProofDocument decodes a membership proof document
func ParseProofDocument(doc json.RawMessage) (*domain.ComplianceProof, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: missing proof document", domain.ErrProofVerificationFailed)
	}

	var proof domain.ComplianceProof
	if err := json.Unmarshal(doc, &proof); err != nil {
		return nil, fmt.Errorf("%w: malformed proof document: %v", domain.ErrProofVerificationFailed, err)
	}
	return &proof, nil
}

// VerifyDocument parses a membership proof document and verifies it
func (v *Verifier) VerifyDocument(ctx context.Context, doc json.RawMessage, nullifiers []string) error {
	proof, err := ParseProofDocument(doc)
	if err != nil {
		return err
	}
	return v.Verify(ctx, proof, nullifiers)
}

// Verify accepts the proof only if its output digest commits to exactly the
// given nullifiers, in order, starting from the authenticated roots
func (v *Verifier) Verify(ctx context.Context, proof *domain.ComplianceProof, nullifiers []string) error {
	if len(nullifiers) == 0 {
		return fmt.Errorf("%w: transaction has no input nullifiers", domain.ErrProofVerificationFailed)
	}

	proofBytes, err := hexutil.Decode(proof.Proof)
	if err != nil || len(proofBytes) == 0 {
		return fmt.Errorf("%w: proof is not hex bytes", domain.ErrProofVerificationFailed)
	}

	txRoot, err := parseBytes32(proof.TxRecordsMerkleRoot)
	if err != nil {
		return fmt.Errorf("%w: txRecordsMerkleRoot: %v", domain.ErrProofVerificationFailed, err)
	}
	allowedRoot, err := parseBytes32(proof.AllowedTxRecordsMerkleRoot)
	if err != nil {
		return fmt.Errorf("%w: allowedTxRecordsMerkleRoot: %v", domain.ErrProofVerificationFailed, err)
	}

	if err := v.roots.Authenticate(ctx, txRoot, allowedRoot); err != nil {
		if errors.Is(err, domain.ErrUnknownRoot) {
			return err
		}
		return fmt.Errorf("%w: root authentication: %v", domain.ErrProofVerificationFailed, err)
	}

	expected, err := v.ExpectedDigest(nullifiers)
	if err != nil {
		return err
	}

	stepIn, err := StepIn(v.hash, txRoot.Big(), allowedRoot.Big())
	if err != nil {
		return fmt.Errorf("%w: step_in: %v", domain.ErrProofVerificationFailed, err)
	}

	output, err := v.engine.Verify(ctx, v.params, proofBytes, StartState{StepIn: []*big.Int{stepIn}})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProofVerificationFailed, err)
	}

	got, err := PadDigest(output)
	if err != nil {
		return fmt.Errorf("%w: output digest: %v", domain.ErrProofVerificationFailed, err)
	}

	if !bytes.Equal(got[:], expected[:]) {
		v.logger.Warn("Compliance proof output does not match nullifiers",
			slog.Int("nullifiers", len(nullifiers)),
		)
		return domain.ErrNullifierMismatch
	}

	return nil
}

// ExpectedDigest is the serialised H(nullifiers...)
func (v *Verifier) ExpectedDigest(nullifiers []string) ([DigestSize]byte, error) {
	inputs := make([]*big.Int, len(nullifiers))
	for i, n := range nullifiers {
		h, err := parseBytes32(n)
		if err != nil {
			return [DigestSize]byte{}, fmt.Errorf("%w: nullifier %d: %v", domain.ErrProofVerificationFailed, i, err)
		}
		inputs[i] = h.Big()
	}

	sum, err := v.hash(inputs)
	if err != nil {
		return [DigestSize]byte{}, fmt.Errorf("%w: nullifier hash: %v", domain.ErrProofVerificationFailed, err)
	}

	digest, err := EncodeDigest(sum)
	if err != nil {
		return [DigestSize]byte{}, fmt.Errorf("%w: %v", domain.ErrProofVerificationFailed, err)
	}
	return digest, nil
}

func parseBytes32(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("expected %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}
