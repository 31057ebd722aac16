package handler

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/cuongbtq/pool-relayer/internal/relayer/chain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/ethereum/go-ethereum/common"
)

// JobService enqueues relay transactions and reads their jobs back
type JobService interface {
	Enqueue(ctx context.Context, tx domain.Transaction) (string, error)
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
}

// BalanceRecorder exports the sender balance health
type BalanceRecorder interface {
	RecordSenderBalance(ok bool)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Jobs           JobService
	Balances       chain.BalanceReader
	Metrics        BalanceRecorder
	ServiceName    string
	Version        string
	ChainID        int64
	RelayerAddress common.Address
	RewardAddress  common.Address
	MinimumBalance *big.Int
}

// RelayerHandler serves the relayer's HTTP surface
type RelayerHandler struct {
	logger         *slog.Logger
	jobs           JobService
	balances       chain.BalanceReader
	metrics        BalanceRecorder
	serviceName    string
	version        string
	chainID        int64
	relayerAddress common.Address
	rewardAddress  common.Address
	minimumBalance *big.Int
}

// NewRelayerHandler creates a new RelayerHandler instance
func NewRelayerHandler(deps *Dependencies) *RelayerHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minimum := deps.MinimumBalance
	if minimum == nil {
		minimum = new(big.Int)
	}

	return &RelayerHandler{
		logger:         logger,
		jobs:           deps.Jobs,
		balances:       deps.Balances,
		metrics:        deps.Metrics,
		serviceName:    deps.ServiceName,
		version:        deps.Version,
		chainID:        deps.ChainID,
		relayerAddress: deps.RelayerAddress,
		rewardAddress:  deps.RewardAddress,
		minimumBalance: minimum,
	}
}
