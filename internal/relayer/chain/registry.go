package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the node API used by the relayer. *ethclient.Client satisfies it.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// DialFunc opens a node connection
type DialFunc func(ctx context.Context, rpcURL string) (Client, error)

// DialEth dials a JSON-RPC node with ethclient
func DialEth(ctx context.Context, rpcURL string) (Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Registry lazily creates one node connection per chain id and shares it
// across jobs
type Registry struct {
	mu      sync.Mutex
	dial    DialFunc
	clients map[int64]Client
	logger  *slog.Logger
}

// NewRegistry creates a provider registry. A nil dial uses DialEth.
func NewRegistry(dial DialFunc, logger *slog.Logger) *Registry {
	if dial == nil {
		dial = DialEth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dial:    dial,
		clients: make(map[int64]Client),
		logger:  logger,
	}
}

// Get returns the client for chainID, dialing rpcURL on first use
func (r *Registry) Get(ctx context.Context, chainID int64, rpcURL string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[chainID]; ok {
		return c, nil
	}

	c, err := r.dial(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain %d: %w", chainID, err)
	}

	r.clients[chainID] = c
	r.logger.Info("Connected to chain node", slog.Int64("chain_id", chainID))
	return c, nil
}

// Network returns the client for n
func (r *Registry) Network(ctx context.Context, n Network) (Client, error) {
	return r.Get(ctx, n.ChainID, n.RPCURL)
}

// Close closes every connection
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
