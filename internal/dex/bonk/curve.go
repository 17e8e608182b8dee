// =============================
// File: internal/dex/bonk/curve.go
// =============================
package bonk

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

// Параметры свежего пула LaunchLab и комиссии в basis points. Обе комиссии
// берутся с SOL-стороны: на покупке со входа, на продаже с выхода.
const (
	DefaultVirtualBase  uint64 = 1_073_025_605_596_382
	DefaultVirtualQuote uint64 = 30_000_852_951

	ProtocolFeeBps uint64 = 25
	PlatformFeeBps uint64 = 100
)

// Pool хранит снапшот резервов пула. Инвариант кривой:
// (virtualBase − realBase) * (virtualQuote + realQuote) = const.
type Pool struct {
	VirtualBase  uint64
	VirtualQuote uint64
	RealBase     uint64
	RealQuote    uint64
}

// NewPool возвращает состояние только что созданного пула: пригодно для
// сделки сразу за событием создания, без чтения аккаунта.
func NewPool() *Pool {
	return &Pool{
		VirtualBase:  DefaultVirtualBase,
		VirtualQuote: DefaultVirtualQuote,
	}
}

func (p *Pool) reserves() (inQuote, outBase uint64, err error) {
	if p.VirtualBase == 0 || p.VirtualQuote == 0 {
		return 0, 0, fmt.Errorf("%w: empty virtual reserves", types.ErrInvalidPoolState)
	}
	if p.RealBase >= p.VirtualBase {
		return 0, 0, fmt.Errorf("%w: real base exceeds virtual base", types.ErrInvalidPoolState)
	}
	if p.RealQuote > math.MaxUint64-p.VirtualQuote {
		return 0, 0, fmt.Errorf("%w: quote reserves overflow", types.ErrInvalidPoolState)
	}
	return p.VirtualQuote + p.RealQuote, p.VirtualBase - p.RealBase, nil
}

// BuyQuote: SOL → токены. Комиссии снимаются со входа с округлением вверх,
// остаток идёт в constant-product.
func (p *Pool) BuyQuote(lamportsIn uint64) (*types.Quote, error) {
	quoteReserve, baseReserve, err := p.reserves()
	if err != nil {
		return nil, err
	}
	if lamportsIn == 0 {
		return nil, fmt.Errorf("%w: zero lamports in", types.ErrInvalidAmount)
	}

	fee := ceilFee(lamportsIn, ProtocolFeeBps) + ceilFee(lamportsIn, PlatformFeeBps)
	if fee >= lamportsIn {
		return nil, fmt.Errorf("%w: %d lamports is below the fee floor", types.ErrAmountTooSmall, lamportsIn)
	}
	net := lamportsIn - fee
	if net > math.MaxUint64-quoteReserve {
		return nil, fmt.Errorf("%w: amount overflows reserves", types.ErrInvalidAmount)
	}

	tokensOut := mulDiv(net, baseReserve, quoteReserve+net)
	if tokensOut == 0 {
		return nil, fmt.Errorf("%w: %d lamports buys zero tokens", types.ErrAmountTooSmall, lamportsIn)
	}
	return &types.Quote{AmountOut: tokensOut, Fee: fee}, nil
}

// SellQuote: токены → SOL. Комиссии снимаются с SOL-выхода.
func (p *Pool) SellQuote(tokensIn uint64) (*types.Quote, error) {
	quoteReserve, baseReserve, err := p.reserves()
	if err != nil {
		return nil, err
	}
	if tokensIn == 0 {
		return nil, fmt.Errorf("%w: zero tokens in", types.ErrInvalidAmount)
	}
	if tokensIn > math.MaxUint64-baseReserve {
		return nil, fmt.Errorf("%w: amount overflows reserves", types.ErrInvalidAmount)
	}

	gross := mulDiv(tokensIn, quoteReserve, baseReserve+tokensIn)
	fee := ceilFee(gross, ProtocolFeeBps) + ceilFee(gross, PlatformFeeBps)
	if gross <= fee {
		return nil, fmt.Errorf("%w: %d tokens sell for zero lamports", types.ErrAmountTooSmall, tokensIn)
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
