package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PoolABI is the subset of the privacy pool ABI the relayer calls
const PoolABI = `[{"inputs":[{"components":[{"internalType":"bytes","name":"proof","type":"bytes"},{"internalType":"bytes32","name":"root","type":"bytes32"},{"internalType":"bytes32[]","name":"inputNullifiers","type":"bytes32[]"},{"internalType":"bytes32[]","name":"outputCommitments","type":"bytes32[]"},{"internalType":"uint256","name":"publicAmount","type":"uint256"},{"internalType":"bytes32","name":"extDataHash","type":"bytes32"}],"internalType":"struct PrivacyPool.Proof","name":"_args","type":"tuple"},{"components":[{"internalType":"address","name":"recipient","type":"address"},{"internalType":"int256","name":"extAmount","type":"int256"},{"internalType":"address","name":"relayer","type":"address"},{"internalType":"uint256","name":"fee","type":"uint256"},{"internalType":"bytes","name":"encryptedOutput1","type":"bytes"},{"internalType":"bytes","name":"encryptedOutput2","type":"bytes"}],"internalType":"struct PrivacyPool.ExtData","name":"_extData","type":"tuple"}],"name":"transact","outputs":[],"stateMutability":"payable","type":"function"}]`

type proofArgs struct {
	Proof             []byte
	Root              [32]byte
	InputNullifiers   [][32]byte
	OutputCommitments [][32]byte
	PublicAmount      *big.Int
	ExtDataHash       [32]byte
}

type extData struct {
	Recipient        common.Address
	ExtAmount        *big.Int
	Relayer          common.Address
	Fee              *big.Int
	EncryptedOutput1 []byte
	EncryptedOutput2 []byte
}

// Pool encodes calls to a privacy pool contract
type Pool struct {
	address common.Address
	abi     abi.ABI
}

// NewPool binds the pool ABI to address
func NewPool(address common.Address) (*Pool, error) {
	parsed, err := abi.JSON(strings.NewReader(PoolABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool abi: %w", err)
	}
	return &Pool{address: address, abi: parsed}, nil
}

// Address returns the contract address
func (p *Pool) Address() common.Address {
	return p.address
}

// EncodeTransact ABI-encodes transact(args, extData)
func (p *Pool) EncodeTransact(tx *domain.Transaction) ([]byte, error) {
	args, err := toProofArgs(&tx.Args)
	if err != nil {
		return nil, fmt.Errorf("invalid args: %w", err)
	}
	ext, err := toExtData(&tx.ExtData)
	if err != nil {
		return nil, fmt.Errorf("invalid extData: %w", err)
	}

	data, err := p.abi.Pack("transact", args, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transact: %w", err)
	}
	return data, nil
}

func toProofArgs(a *domain.Args) (proofArgs, error) {
	var out proofArgs
	var err error

	if out.Proof, err = hexutil.Decode(a.Proof); err != nil {
		return out, fmt.Errorf("proof: %w", err)
	}
	if out.Root, err = bytes32(a.Root); err != nil {
		return out, fmt.Errorf("root: %w", err)
	}
	if out.InputNullifiers, err = bytes32List(a.InputNullifiers); err != nil {
		return out, fmt.Errorf("inputNullifiers: %w", err)
	}
	if out.OutputCommitments, err = bytes32List(a.OutputCommitments); err != nil {
		return out, fmt.Errorf("outputCommitments: %w", err)
	}
	if out.PublicAmount, err = domain.ParseUnsignedAmount(a.PublicAmount); err != nil {
		return out, fmt.Errorf("publicAmount: %w", err)
	}
	if out.ExtDataHash, err = bytes32(a.ExtDataHash); err != nil {
		return out, fmt.Errorf("extDataHash: %w", err)
	}
	return out, nil
}

func toExtData(e *domain.ExtData) (extData, error) {
	var out extData
	var err error

	if !common.IsHexAddress(e.Recipient) {
		return out, fmt.Errorf("recipient %q is not an address", e.Recipient)
	}
	out.Recipient = common.HexToAddress(e.Recipient)

	if !common.IsHexAddress(e.Relayer) {
		return out, fmt.Errorf("relayer %q is not an address", e.Relayer)
	}
	out.Relayer = common.HexToAddress(e.Relayer)

	if out.ExtAmount, err = domain.ParseSignedAmount(e.ExtAmount); err != nil {
		return out, fmt.Errorf("extAmount: %w", err)
	}
	if out.Fee, err = domain.ParseUnsignedAmount(e.Fee); err != nil {
		return out, fmt.Errorf("fee: %w", err)
	}
	if out.EncryptedOutput1, err = hexutil.Decode(e.EncryptedOutput1); err != nil {
		return out, fmt.Errorf("encryptedOutput1: %w", err)
	}
	if out.EncryptedOutput2, err = hexutil.Decode(e.EncryptedOutput2); err != nil {
		return out, fmt.Errorf("encryptedOutput2: %w", err)
	}
	return out, nil
}

func bytes32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hexutil.Decode(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func bytes32List(in []string) ([][32]byte, error) {
	out := make([][32]byte, len(in))
	for i, s := range in {
		b, err := bytes32(s)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}
