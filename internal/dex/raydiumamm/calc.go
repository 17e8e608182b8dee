// =============================
// File: internal/dex/raydiumamm/calc.go
// =============================
package raydiumamm

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

// Фиксированная комиссия AMM v4: 25/10000 со входа, округление вверх.
const (
	FeeNumerator   uint64 = 25
	FeeDenominator uint64 = 10_000
)

// Swap: constant-product по балансам coin/pc vault'ов. Резервы передаются
// в порядке вход→выход; снимок уже вычитает суммы в open orders.
func Swap(amountIn, inputReserve, outputReserve uint64) (*types.Quote, error) {
	if inputReserve == 0 || outputReserve == 0 {
		return nil, fmt.Errorf("%w: empty pool reserves", types.ErrInvalidPoolState)
	}
	if amountIn == 0 {
		return nil, fmt.Errorf("%w: zero amount in", types.ErrInvalidAmount)
	}

	fee := ceilFee(amountIn)
	if fee >= amountIn {
		return nil, fmt.Errorf("%w: %d is below the fee floor", types.ErrAmountTooSmall, amountIn)
	}
	net := amountIn - fee
	if net > math.MaxUint64-inputReserve {
		return nil, fmt.Errorf("%w: amount overflows reserves", types.ErrInvalidAmount)
	}

	out := mulDiv(net, outputReserve, inputReserve+net)
	if out == 0 {
		return nil, fmt.Errorf("%w: %d buys zero output units", types.ErrAmountTooSmall, amountIn)
	}
	return &types.Quote{AmountOut: out, Fee: fee}, nil
}

func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}

func ceilFee(amount uint64) uint64 {
	hi, lo := bits.Mul64(amount, FeeNumerator)
	q, r := bits.Div64(hi, lo, FeeDenominator)
	if r != 0 {
		q++
	}
	return q
}
