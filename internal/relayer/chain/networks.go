// Package chain holds per-network settings, the shared node connections and
// the privacy pool contract binding.
package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Supported chain ids
const (
	Goerli    int64 = 5
	Sepolia   int64 = 11155111
	Localhost int64 = 31337
)

// Network describes a chain the relayer can submit to
type Network struct {
	ChainID        int64
	Name           string
	RPCURL         string
	PoolAddress    common.Address
	GasLimit       uint64
	MinimumBalance *big.Int
}

func ether(tenths int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tenths), big.NewInt(1e17))
}

var networks = map[int64]Network{
	Goerli: {
		ChainID:        Goerli,
		Name:           "goerli",
		RPCURL:         "https://ethereum-goerli.publicnode.com",
		PoolAddress:    common.HexToAddress("0x1bdf05f317d56EC503f65B1063B7a816F1915261"),
		GasLimit:       2_000_000,
		MinimumBalance: ether(5),
	},
	Sepolia: {
		ChainID:        Sepolia,
		Name:           "sepolia",
		RPCURL:         "https://ethereum-sepolia.publicnode.com",
		GasLimit:       2_000_000,
		MinimumBalance: ether(5),
	},
	Localhost: {
		ChainID:        Localhost,
		Name:           "localhost",
		RPCURL:         "http://127.0.0.1:8545/",
		PoolAddress:    common.HexToAddress("0xdc64a140aa3e981100a9beca4e685f962f0cf6c9"),
		GasLimit:       2_000_000,
		MinimumBalance: ether(1),
	},
}

// Overrides replaces network defaults with configured values. Zero values keep the default.
type Overrides struct {
	RPCURL         string
	PoolAddress    string
	GasLimit       uint64
	MinimumBalance *big.Int
}

// Lookup returns the network for chainID with overrides applied. A network
// without a pool address after overrides is an error.
func Lookup(chainID int64, o Overrides) (Network, error) {
	n, ok := networks[chainID]
	if !ok {
		return Network{}, fmt.Errorf("unsupported chain id %d", chainID)
	}

	if o.RPCURL != "" {
		n.RPCURL = o.RPCURL
	}
	if o.PoolAddress != "" {
		if !common.IsHexAddress(o.PoolAddress) {
			return Network{}, fmt.Errorf("invalid pool address %q", o.PoolAddress)
		}
		n.PoolAddress = common.HexToAddress(o.PoolAddress)
	}
	if o.GasLimit != 0 {
		n.GasLimit = o.GasLimit
	}
	if o.MinimumBalance != nil {
		n.MinimumBalance = new(big.Int).Set(o.MinimumBalance)
	} else {
		n.MinimumBalance = new(big.Int).Set(n.MinimumBalance)
	}

	if n.PoolAddress == (common.Address{}) {
		return Network{}, fmt.Errorf("no pool address for chain %d (%s)", chainID, n.Name)
	}

	return n, nil
}
