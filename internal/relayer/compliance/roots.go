package compliance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// RootAuthenticator checks that the roots a proof was built against are the
// relayer's own view of pool and association-set state
type RootAuthenticator interface {
	Authenticate(ctx context.Context, txRecordsRoot, allowedRoot common.Hash) error
}

// RootSet is a fixed set of accepted roots
type RootSet map[common.Hash]struct{}

// NewRootSet builds a set from hex roots
func NewRootSet(roots []string) (RootSet, error) {
	set := make(RootSet, len(roots))
	for _, r := range roots {
		h, err := parseBytes32(r)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", r, err)
		}
		set[h] = struct{}{}
	}
	return set, nil
}

// Contains reports whether h is in the set
func (s RootSet) Contains(h common.Hash) bool {
	_, ok := s[h]
	return ok
}

// StaticRoots accepts roots from configured allow lists only
type StaticRoots struct {
	TxRecords RootSet
	Allowed   RootSet
}

// Authenticate implements RootAuthenticator
func (s *StaticRoots) Authenticate(ctx context.Context, txRecordsRoot, allowedRoot common.Hash) error {
	if !s.TxRecords.Contains(txRecordsRoot) {
		return fmt.Errorf("%w: tx records root %s", domain.ErrUnknownRoot, txRecordsRoot.Hex())
	}
	if !s.Allowed.Contains(allowedRoot) {
		return fmt.Errorf("%w: allowed tx records root %s", domain.ErrUnknownRoot, allowedRoot.Hex())
	}
	return nil
}

// ContractCaller is satisfied by *ethclient.Client
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

const isKnownRootABI = `[{"inputs":[{"internalType":"bytes32","name":"_root","type":"bytes32"}],"name":"isKnownRoot","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"}]`

// ContractRoots asks the records contract whether txRecordsRoot is in its root
// history; allowedRoot must be in the configured association-set allow list
type ContractRoots struct {
	caller   ContractCaller
	contract common.Address
	allowed  RootSet
	abi      abi.ABI
}

// NewContractRoots creates a contract-backed authenticator
func NewContractRoots(caller ContractCaller, contract common.Address, allowed RootSet) (*ContractRoots, error) {
	parsed, err := abi.JSON(strings.NewReader(isKnownRootABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse isKnownRoot abi: %w", err)
	}

	return &ContractRoots{
		caller:   caller,
		contract: contract,
		allowed:  allowed,
		abi:      parsed,
	}, nil
}

// Authenticate implements RootAuthenticator
func (c *ContractRoots) Authenticate(ctx context.Context, txRecordsRoot, allowedRoot common.Hash) error {
	if !c.allowed.Contains(allowedRoot) {
		return fmt.Errorf("%w: allowed tx records root %s", domain.ErrUnknownRoot, allowedRoot.Hex())
	}

	data, err := c.abi.Pack("isKnownRoot", txRecordsRoot)
	if err != nil {
		return fmt.Errorf("failed to pack isKnownRoot: %w", err)
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("isKnownRoot call failed: %w", err)
	}

	values, err := c.abi.Unpack("isKnownRoot", out)
	if err != nil {
		return fmt.Errorf("failed to unpack isKnownRoot result: %w", err)
	}
	if len(values) != 1 {
		return fmt.Errorf("isKnownRoot returned %d values", len(values))
	}

	known, ok := values[0].(bool)
	if !ok || !known {
		return fmt.Errorf("%w: tx records root %s", domain.ErrUnknownRoot, txRecordsRoot.Hex())
	}
	return nil
}

// NoRootCheck accepts any root. Only wired when configured explicitly.
type NoRootCheck struct{}

// Authenticate implements RootAuthenticator
func (NoRootCheck) Authenticate(context.Context, common.Hash, common.Hash) error {
	return nil
}
