package snapshot

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"poolSnapshot/internal/model"
	"poolSnapshot/internal/source"
)

const normalizedDecimals = 18

// buildReserves scales whole-unit balances to 18 decimals and to each coin's
// own decimals, flooring both. Balances past the coin count are ignored.
func buildReserves(balances []float64, decimals []int) (model.Reserves, error) {
	if len(balances) < len(decimals) {
		return model.Reserves{}, fmt.Errorf("%d balances for %d coins: %w", len(balances), len(decimals), source.ErrMalformedResponse)
	}

	reserves := model.Reserves{
		ByCoin:             make([]*big.Int, len(decimals)),
		UnnormalizedByCoin: make([]*big.Int, len(decimals)),
	}
	for i, d := range decimals {
		balance := decimal.NewFromFloat(balances[i])
		reserves.ByCoin[i] = scale(balance, normalizedDecimals)
		reserves.UnnormalizedByCoin[i] = scale(balance, d)
	}
	return reserves, nil
}

func scale(amount decimal.Decimal, decimals int) *big.Int {
	return amount.Shift(int32(decimals)).Floor().BigInt()
}
