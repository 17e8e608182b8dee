// =============================
// File: internal/dex/pumpswap/calc.go
// =============================
package pumpswap

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

// Комиссии пула в basis points. Creator fee действует только у пулов
// с ненулевым coin creator.
const (
	LPFeeBps       uint64 = 20
	ProtocolFeeBps uint64 = 5
	CreatorFeeBps  uint64 = 5
)

func totalFeeBps(creatorFee bool) uint64 {
	total := LPFeeBps + ProtocolFeeBps
	if creatorFee {
		total += CreatorFeeBps
	}
	return total
}

// BuyQuote: quote-актив на входе → base-актив на выходе. Комиссия
// удерживается со входа до constant-product шага.
func BuyQuote(quoteIn, baseReserve, quoteReserve uint64, creatorFee bool) (*types.Quote, error) {
	if baseReserve == 0 || quoteReserve == 0 {
		return nil, fmt.Errorf("%w: empty pool reserves", types.ErrInvalidPoolState)
	}
	if quoteIn == 0 {
		return nil, fmt.Errorf("%w: zero quote in", types.ErrInvalidAmount)
	}

	effective := mulDiv(quoteIn, 10_000, 10_000+totalFeeBps(creatorFee))
	if effective > math.MaxUint64-quoteReserve {
		return nil, fmt.Errorf("%w: amount overflows reserves", types.ErrInvalidAmount)
	}
	baseOut := mulDiv(baseReserve, effective, quoteReserve+effective)
	if baseOut == 0 {
		return nil, fmt.Errorf("%w: %d quote buys zero base units", types.ErrAmountTooSmall, quoteIn)
	}
	return &types.Quote{AmountOut: baseOut, Fee: quoteIn - effective}, nil
}

// SellQuote: base-актив на входе → quote-актив на выходе. Каждая комиссия
// снимается с выхода с округлением вверх, как это делает программа.
func SellQuote(baseIn, baseReserve, quoteReserve uint64, creatorFee bool) (*types.Quote, error) {
	if baseReserve == 0 || quoteReserve == 0 {
		return nil, fmt.Errorf("%w: empty pool reserves", types.ErrInvalidPoolState)
	}
	if baseIn == 0 {
		return nil, fmt.Errorf("%w: zero base in", types.ErrInvalidAmount)
	}
	if baseIn > math.MaxUint64-baseReserve {
		return nil, fmt.Errorf("%w: amount overflows reserves", types.ErrInvalidAmount)
	}

	gross := mulDiv(quoteReserve, baseIn, baseReserve+baseIn)
	fee := ceilFee(gross, LPFeeBps) + ceilFee(gross, ProtocolFeeBps)
	if creatorFee {
		fee += ceilFee(gross, CreatorFeeBps)
	}
	if gross <= fee {
		return nil, fmt.Errorf("%w: %d base sells for zero quote", types.ErrAmountTooSmall, baseIn)
	}
	return &types.Quote{AmountOut: gross - fee, Fee: fee}, nil
}

func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}

func ceilFee(amount, bps uint64) uint64 {
	hi, lo := bits.Mul64(amount, bps)
	q, r := bits.Div64(hi, lo, 10_000)
	if r != 0 {
		q++
	}
	return q
}
