// =============================
// File: internal/dex/raydiumcpmm/calc.go
// =============================
package raydiumcpmm

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

// Комиссия пула над знаменателем 1_000_000, снимается со входа с
// округлением вверх.
const (
	TradeFeeRate       uint64 = 2_500
	FeeRateDenominator uint64 = 1_000_000
)

// Swap: constant-product с комиссией на входе. Направление задаёт
// вызывающая сторона порядком резервов.
func Swap(amountIn, inputReserve, outputReserve uint64) (*types.Quote, error) {
	if inputReserve == 0 || outputReserve == 0 {
		return nil, fmt.Errorf("%w: empty pool reserves", types.ErrInvalidPoolState)
	}
	if amountIn == 0 {
		return nil, fmt.Errorf("%w: zero amount in", types.ErrInvalidAmount)
	}

	fee := ceilFee(amountIn, TradeFeeRate)
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

func ceilFee(amount, rate uint64) uint64 {
	hi, lo := bits.Mul64(amount, rate)
	q, r := bits.Div64(hi, lo, FeeRateDenominator)
	if r != 0 {
		q++
	}
	return q
}
