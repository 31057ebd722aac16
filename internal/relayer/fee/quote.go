package fee

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
)

// Tier multipliers in percent of the price the oracle reports for that tier
const (
	InstantPercent  = 150
	FastPercent     = 130
	StandardPercent = 85
	LowPercent      = 50
)

var weiPerGwei = big.NewRat(1_000_000_000, 1)

// Quote is a tiered gas price quote in wei
type Quote struct {
	Instant  *big.Int
	Fast     *big.Int
	Standard *big.Int
	Low      *big.Int
}

// QuoteSource supplies a fresh tiered quote. Implementations must not cache
// across calls; a quote belongs to a single fee check.
type QuoteSource interface {
	Quote(ctx context.Context) (*Quote, error)
}

// BaseTiers holds the unbumped per-tier prices reported upstream, in wei
type BaseTiers struct {
	Instant  *big.Int
	Fast     *big.Int
	Standard *big.Int
	Low      *big.Int
}

// Bump applies the tier multipliers to base prices
func Bump(base BaseTiers) *Quote {
	return &Quote{
		Instant:  percentOf(base.Instant, InstantPercent),
		Fast:     percentOf(base.Fast, FastPercent),
		Standard: percentOf(base.Standard, StandardPercent),
		Low:      percentOf(base.Low, LowPercent),
	}
}

func percentOf(v *big.Int, percent int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(percent))
	return out.Quo(out, big.NewInt(100))
}

// GweiToWei converts a decimal gwei amount, possibly fractional or in
// exponent notation ("1.5e-3"), to wei. Sub-wei remainders are truncated.
func GweiToWei(gwei string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(gwei)
	if !ok {
		return nil, fmt.Errorf("%w: malformed gwei value %q", domain.ErrGasPriceUnavailable, gwei)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative gwei value %q", domain.ErrGasPriceUnavailable, gwei)
	}

	r.Mul(r, weiPerGwei)
	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}
