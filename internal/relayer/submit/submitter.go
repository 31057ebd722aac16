// Package submit encodes and broadcasts pool transactions and follows them
// until a final receipt.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/cuongbtq/pool-relayer/internal/relayer/chain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/cuongbtq/pool-relayer/internal/relayer/fee"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Config holds submitter configuration
type Config struct {
	Pool     *chain.Pool
	GasLimit uint64
	Quotes   fee.QuoteSource
	Manager  TxManager
	Logger   *slog.Logger
}

// Submitter sends a transaction to the pool contract
type Submitter struct {
	pool     *chain.Pool
	gasLimit uint64
	quotes   fee.QuoteSource
	manager  TxManager
	logger   *slog.Logger
}

// NewSubmitter creates a transaction submitter
func NewSubmitter(cfg *Config) (*Submitter, error) {
	if cfg.Pool == nil || cfg.Quotes == nil || cfg.Manager == nil {
		return nil, errors.New("submitter requires pool, quotes and manager")
	}
	if cfg.GasLimit == 0 {
		return nil, errors.New("submitter gas limit must be positive")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Submitter{
		pool:     cfg.Pool,
		gasLimit: cfg.GasLimit,
		quotes:   cfg.Quotes,
		manager:  cfg.Manager,
		logger:   logger,
	}, nil
}

// Prepare builds the call request for tx at the current fast gas price
func (s *Submitter) Prepare(ctx context.Context, tx *domain.Transaction) (CallRequest, error) {
	data, err := s.pool.EncodeTransact(tx)
	if err != nil {
		return CallRequest{}, err
	}

	quote, err := s.quotes.Quote(ctx)
	if err != nil {
		return CallRequest{}, err
	}

	return CallRequest{
		To:       s.pool.Address(),
		Data:     data,
		GasLimit: s.gasLimit,
		GasPrice: quote.Fast,
		Value:    big.NewInt(0),
	}, nil
}

// Submit broadcasts tx and forwards lifecycle events to sink until the final
// receipt. A receipt with status other than 1 is ErrSubmissionFailed.
func (s *Submitter) Submit(ctx context.Context, tx *domain.Transaction, sink LifecycleSink) (common.Hash, error) {
	req, err := s.Prepare(ctx, tx)
	if err != nil {
		return common.Hash{}, err
	}

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := s.manager.Send(sendCtx, req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	for ev := range events {
		switch ev.Kind {
		case EventTransactionHash:
			err = sink.OnTransactionHash(ctx, ev.TxHash)
		case EventMined:
			err = sink.OnMined(ctx, ev.TxHash)
		case EventConfirmations:
			err = sink.OnConfirmations(ctx, ev.Confirmations)
		case EventReceipt:
			return s.checkReceipt(ev.Receipt)
		case EventError:
			return common.Hash{}, fmt.Errorf("transaction not confirmed: %w", ev.Err)
		}

		if errors.Is(err, domain.ErrLifecycleOrder) {
			return common.Hash{}, err
		}
		if err != nil {
			s.logger.Error("Failed to record transaction event",
				slog.String("event", ev.Kind.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return common.Hash{}, errors.New("transaction manager stopped without a receipt")
}

func (s *Submitter) checkReceipt(receipt *types.Receipt) (common.Hash, error) {
	if receipt == nil {
		return common.Hash{}, errors.New("transaction manager returned an empty receipt")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt.TxHash, fmt.Errorf("%w: %s status %d", domain.ErrSubmissionFailed, receipt.TxHash.Hex(), receipt.Status)
	}
	return receipt.TxHash, nil
}
