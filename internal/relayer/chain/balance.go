package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceReader reads account balances
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// CheckSenderBalance reports whether sender holds more than minimum
func CheckSenderBalance(ctx context.Context, client BalanceReader, sender common.Address, minimum *big.Int) (bool, *big.Int, error) {
	balance, err := client.BalanceAt(ctx, sender, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read sender balance: %w", err)
	}
	return balance.Cmp(minimum) > 0, balance, nil
}
