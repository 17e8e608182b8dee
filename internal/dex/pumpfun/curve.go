// =============================
// File: internal/dex/pumpfun/curve.go
// =============================
package pumpfun

import (
	"fmt"
	"math"
	"math/bits"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

// Параметры новой кривой и комиссии протокола (basis points).
const (
	InitialVirtualTokenReserves uint64 = 1_073_000_000_000_000
	InitialVirtualSolReserves   uint64 = 30_000_000_000
	InitialRealTokenReserves    uint64 = 793_100_000_000_000
	TokenTotalSupply            uint64 = 1_000_000_000_000_000

	FeeBps        uint64 = 95
	CreatorFeeBps uint64 = 30
)

// BondingCurve хранит снапшот состояния кривой. Весь расчётный путь
// целочисленный, округление совпадает с программой.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

// NewBondingCurve возвращает состояние свежесозданной кривой: его можно
// использовать для сделки сразу за событием создания токена, не дожидаясь
// чтения аккаунта.
func NewBondingCurve(creator solana.PublicKey) *BondingCurve {
	return &BondingCurve{
		VirtualTokenReserves: InitialVirtualTokenReserves,
		VirtualSolReserves:   InitialVirtualSolReserves,
		RealTokenReserves:    InitialRealTokenReserves,
		TokenTotalSupply:     TokenTotalSupply,
		Creator:              creator,
	}
}

// DecodeBondingCurve разбирает аккаунт кривой (anchor-формат с 8-байтовым
// дискриминатором в начале).
func DecodeBondingCurve(data []byte) (*BondingCurve, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("bonding curve account too short: %d bytes", len(data))
	}
	dec := bin.NewBorshDecoder(data[8:])

	var curve BondingCurve
	if err := dec.Decode(&curve.VirtualTokenReserves); err != nil {
		return nil, fmt.Errorf("failed to decode virtual token reserves: %w", err)
	}
	if err := dec.Decode(&curve.VirtualSolReserves); err != nil {
		return nil, fmt.Errorf("failed to decode virtual sol reserves: %w", err)
	}
	if err := dec.Decode(&curve.RealTokenReserves); err != nil {
		return nil, fmt.Errorf("failed to decode real token reserves: %w", err)
	}
	if err := dec.Decode(&curve.RealSolReserves); err != nil {
		return nil, fmt.Errorf("failed to decode real sol reserves: %w", err)
	}
	if err := dec.Decode(&curve.TokenTotalSupply); err != nil {
		return nil, fmt.Errorf("failed to decode token total supply: %w", err)
	}
	if err := dec.Decode(&curve.Complete); err != nil {
		return nil, fmt.Errorf("failed to decode complete flag: %w", err)
	}
	// Поле creator добавлено поздней миграцией, у старых аккаунтов его нет.
	if dec.Remaining() >= 32 {
		if err := dec.Decode(&curve.Creator); err != nil {
			return nil, fmt.Errorf("failed to decode creator: %w", err)
		}
	}
	return &curve, nil
}

func (c *BondingCurve) totalFeeBps(creatorFee bool) uint64 {
	if creatorFee {
		return FeeBps + CreatorFeeBps
	}
	return FeeBps
}

// BuyQuote: SOL → токены. Комиссия удерживается со входа, выход считается
// по константе произведения виртуальных резервов и ограничен реальным
// запасом токенов.
func (c *BondingCurve) BuyQuote(lamportsIn uint64, creatorFee bool) (*types.Quote, error) {
	if c.VirtualSolReserves == 0 || c.VirtualTokenReserves == 0 {
		return nil, fmt.Errorf("%w: empty virtual reserves", types.ErrInvalidPoolState)
	}
	if lamportsIn == 0 {
		return nil, fmt.Errorf("%w: zero lamports in", types.ErrInvalidAmount)
	}

	feeBps := c.totalFeeBps(creatorFee)
	netIn := mulDiv(lamportsIn, 10_000, 10_000+feeBps)
	if netIn > math.MaxUint64-c.VirtualSolReserves {
		return nil, fmt.Errorf("%w: amount overflows reserves", types.ErrInvalidAmount)
	}

	// r = vTok*vSol/(vSol+netIn) + 1; частное не превышает vTok и
	// помещается в uint64, поэтому bits.Div64 безопасен.
	hi, lo := bits.Mul64(c.VirtualTokenReserves, c.VirtualSolReserves)
	r, _ := bits.Div64(hi, lo, c.VirtualSolReserves+netIn)
	r++
	if c.VirtualTokenReserves <= r {
		return nil, fmt.Errorf("%w: %d lamports buys zero tokens", types.ErrAmountTooSmall, lamportsIn)
	}
	tokensOut := c.VirtualTokenReserves - r
	if tokensOut > c.RealTokenReserves {
		tokensOut = c.RealTokenReserves
	}
	if tokensOut == 0 {
		return nil, fmt.Errorf("%w: curve is out of tokens", types.ErrInvalidPoolState)
	}
	return &types.Quote{AmountOut: tokensOut, Fee: lamportsIn - netIn}, nil
}

// SellQuote: токены → SOL. Комиссия удерживается с SOL-выхода.
func (c *BondingCurve) SellQuote(tokensIn uint64, creatorFee bool) (*types.Quote, error) {
	if c.VirtualSolReserves == 0 || c.VirtualTokenReserves == 0 {
		return nil, fmt.Errorf("%w: empty virtual reserves", types.ErrInvalidPoolState)
	}
	if tokensIn == 0 {
		return nil, fmt.Errorf("%w: zero tokens in", types.ErrInvalidAmount)
	}
	if tokensIn > math.MaxUint64-c.VirtualTokenReserves {
		return nil, fmt.Errorf("%w: amount overflows reserves", types.ErrInvalidAmount)
	}

	grossOut := mulDiv(tokensIn, c.VirtualSolReserves, c.VirtualTokenReserves+tokensIn)
	fee := grossOut * c.totalFeeBps(creatorFee) / 10_000
	netOut := grossOut - fee
	if netOut == 0 {
		return nil, fmt.Errorf("%w: %d tokens sell for zero lamports", types.ErrAmountTooSmall, tokensIn)
	}
	return &types.Quote{AmountOut: netOut, Fee: fee}, nil
}

// mulDiv возвращает a*b/d со 128-битным промежуточным произведением.
// Вызывающий гарантирует d > 0 и частное в пределах uint64.
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}
