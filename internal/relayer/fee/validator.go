// Package fee prices a relay and decides whether the fee a user offered covers it.
package fee

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
)

const bpsDenominator = 10_000

// Policy selects how the service fee is charged
type Policy string

const (
	// PolicyProportional charges transferFlat on deposits and a pure
	// percentage of |extAmount| on withdrawals
	PolicyProportional Policy = "proportional"

	// PolicyAdditive refuses deposits and charges transferFlat plus the
	// percentage on withdrawals
	PolicyAdditive Policy = "additive"
)

// ServiceFeeSchedule is the operator margin, read-only after startup
type ServiceFeeSchedule struct {
	TransferFlat         *big.Int
	WithdrawalPercentBps uint64
}

// ValidatorConfig holds fee validator configuration
type ValidatorConfig struct {
	Quotes   QuoteSource
	GasLimit uint64
	Schedule ServiceFeeSchedule
	Policy   Policy
	Logger   *slog.Logger
}

// Validator computes the minimum acceptable relay fee
type Validator struct {
	quotes   QuoteSource
	gasLimit *big.Int
	schedule ServiceFeeSchedule
	policy   Policy
	logger   *slog.Logger
}

// NewValidator creates a fee validator
func NewValidator(cfg *ValidatorConfig) (*Validator, error) {
	switch cfg.Policy {
	case PolicyProportional, PolicyAdditive:
	default:
		return nil, fmt.Errorf("unknown fee policy %q", cfg.Policy)
	}
	if cfg.GasLimit == 0 {
		return nil, fmt.Errorf("gas limit must be greater than 0")
	}

	schedule := cfg.Schedule
	if schedule.TransferFlat == nil {
		schedule.TransferFlat = new(big.Int)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Validator{
		quotes:   cfg.Quotes,
		gasLimit: new(big.Int).SetUint64(cfg.GasLimit),
		schedule: schedule,
		policy:   cfg.Policy,
		logger:   logger,
	}, nil
}

// RequiredFee fetches a fresh quote and returns the minimum fee for extAmount
func (v *Validator) RequiredFee(ctx context.Context, extAmount *big.Int) (*big.Int, error) {
	quote, err := v.quotes.Quote(ctx)
	if err != nil {
		return nil, err
	}
	if quote == nil || quote.Fast == nil {
		return nil, fmt.Errorf("%w: quote has no fast tier", domain.ErrGasPriceUnavailable)
	}

	return v.ComputeRequiredFee(quote.Fast, extAmount)
}

// ComputeRequiredFee is operationFee + serviceFee for a given fast gas price
func (v *Validator) ComputeRequiredFee(fastGasPrice, extAmount *big.Int) (*big.Int, error) {
	operationFee := new(big.Int).Mul(fastGasPrice, v.gasLimit)

	serviceFee, err := v.ServiceFee(extAmount)
	if err != nil {
		return nil, err
	}

	return operationFee.Add(operationFee, serviceFee), nil
}

// ServiceFee is the operator margin for extAmount under the configured policy
func (v *Validator) ServiceFee(extAmount *big.Int) (*big.Int, error) {
	if extAmount.Sign() >= 0 {
		if v.policy == PolicyAdditive {
			return nil, domain.ErrDepositNotAllowed
		}
		return new(big.Int).Set(v.schedule.TransferFlat), nil
	}

	share := new(big.Int).Abs(extAmount)
	share.Mul(share, new(big.Int).SetUint64(v.schedule.WithdrawalPercentBps))
	share.Quo(share, big.NewInt(bpsDenominator))

	if v.policy == PolicyAdditive {
		share.Add(share, v.schedule.TransferFlat)
	}
	return share, nil
}

// CheckFee fails with ErrInsufficientFee when fee < RequiredFee(extAmount)
func (v *Validator) CheckFee(ctx context.Context, fee, extAmount *big.Int) error {
	required, err := v.RequiredFee(ctx, extAmount)
	if err != nil {
		return err
	}

	v.logger.Debug("Fee checked",
		slog.String("fee", fee.String()),
		slog.String("required", required.String()),
		slog.String("ext_amount", extAmount.String()),
	)

	if fee.Cmp(required) < 0 {
		return fmt.Errorf("%w: offered %s, required %s", domain.ErrInsufficientFee, fee, required)
	}
	return nil
}
