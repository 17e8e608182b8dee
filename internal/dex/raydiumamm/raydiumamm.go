// =============================
// File: internal/dex/raydiumamm/raydiumamm.go
// =============================
// Package raydiumamm реализует торговлю на пулах Raydium AMM v4 через
// swap_base_in. Одна из сторон coin/pc должна быть WSOL. Serum-блок
// аккаунтов опционален: в незаполненные слоты подставляется id пула,
// для CP-пулов программа это принимает.
package raydiumamm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/spl"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

var (
	ProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	Authority = solana.MustPublicKeyFromBase58("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")
)

// Params перечисляет аккаунты и резервы пула AMM v4. Amm, CoinVault и
// PcVault обязательны: у v4 нет детерминированного вывода пула по mint'у.
// Резервы считаются как балансы vault'ов за вычетом сумм в open orders.
type Params struct {
	Amm         solana.PublicKey
	CoinMint    solana.PublicKey
	PcMint      solana.PublicKey
	CoinVault   solana.PublicKey
	PcVault     solana.PublicKey
	CoinReserve uint64
	PcReserve   uint64

	// Serum-маршрутизация. Нулевые поля заменяются на Amm.
	OpenOrders       solana.PublicKey
	SerumProgram     solana.PublicKey
	SerumMarket      solana.PublicKey
	SerumBids        solana.PublicKey
	SerumAsks        solana.PublicKey
	SerumEventQueue  solana.PublicKey
	SerumCoinVault   solana.PublicKey
	SerumPcVault     solana.PublicKey
	SerumVaultSigner solana.PublicKey

	// AutoWrapSOL оборачивает SOL вокруг покупки и закрывает WSOL ATA
	// после продажи.
	AutoWrapSOL bool
}

func (p *Params) coinIsWSOL() bool { return p.CoinMint.Equals(spl.WSOLMint) }

// tokenMint возвращает не-WSOL сторону пула.
func (p *Params) tokenMint() solana.PublicKey {
	if p.coinIsWSOL() {
		return p.PcMint
	}
	return p.CoinMint
}

func (p *Params) serumOrAmm(account solana.PublicKey) solana.PublicKey {
	if account.IsZero() {
		return p.Amm
	}
	return account
}

// reserves возвращает резервы в порядке вход→выход для стороны сделки.
func (p *Params) reserves(side types.Side) (inputReserve, outputReserve uint64) {
	wsolIn := side == types.SideBuy
	if p.coinIsWSOL() == wsolIn {
		return p.CoinReserve, p.PcReserve
	}
	return p.PcReserve, p.CoinReserve
}

// DEX реализует протокол Raydium AMM v4 для реестра.
type DEX struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *DEX {
	return &DEX{logger: logger.Named("raydium_amm_v4")}
}

func (d *DEX) Name() string             { return "RaydiumAmmV4" }
func (d *DEX) Protocol() types.Protocol { return types.ProtocolRaydiumAmmV4 }

func (d *DEX) params(req *types.TradeRequest) (*Params, error) {
	p, ok := req.Params.(*Params)
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: expected *raydiumamm.Params, got %T", types.ErrInvalidParams, req.Params)
	}
	if p.Amm.IsZero() {
		return nil, fmt.Errorf("%w: amm id is required", types.ErrInvalidParams)
	}
	if p.CoinVault.IsZero() || p.PcVault.IsZero() {
		return nil, fmt.Errorf("%w: pool vaults are required", types.ErrInvalidParams)
	}
	if !p.coinIsWSOL() && !p.PcMint.Equals(spl.WSOLMint) {
		return nil, fmt.Errorf("%w: pool has no WSOL side", types.ErrInvalidParams)
	}
	return p, nil
}

// Quote считает номинальный выход без границ slippage.
func (d *DEX) Quote(req *types.TradeRequest) (*types.Quote, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}
	inRes, outRes := p.reserves(req.Side)
	return Swap(req.AmountIn, inRes, outRes)
}

// BuildBuy: опциональный wrap SOL + создание токен-аккаунта + swap_base_in.
func (d *DEX) BuildBuy(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}

	inRes, outRes := p.reserves(types.SideBuy)
	quote, err := Swap(req.AmountIn, inRes, outRes)
	if err != nil {
		return nil, err
	}
	minOut := types.MinAmountWithSlippage(quote.AmountOut, req.SlippageBps)

	instructions := make([]solana.Instruction, 0, 6)
	if p.AutoWrapSOL {
		wrap, _, err := spl.WrapSOLInstructions(payer, req.AmountIn)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, wrap...)
	}

	create, err := spl.CreateATAIdempotentInstruction(payer, payer, req.Mint, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, create)

	swap, err := swapInstruction(payer, req.Mint, p, true, req.AmountIn, minOut)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, swap)

	if p.AutoWrapSOL {
		closeWSOL, err := spl.UnwrapSOLInstruction(payer)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, closeWSOL)
	}

	d.logger.Debug("Собраны инструкции покупки",
		zap.String("mint", req.Mint.String()),
		zap.Uint64("sol_in", req.AmountIn),
		zap.Uint64("min_tokens_out", minOut))
	return instructions, nil
}

// BuildSell: swap_base_in в обратном направлении. WSOL ATA создаётся
// всегда, ведь выход продажи приходит на него.
func (d *DEX) BuildSell(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}

	inRes, outRes := p.reserves(types.SideSell)
	quote, err := Swap(req.AmountIn, inRes, outRes)
	if err != nil {
		return nil, err
	}
	minOut := types.MinAmountWithSlippage(quote.AmountOut, req.SlippageBps)

	instructions := make([]solana.Instruction, 0, 3)
	createWSOL, err := spl.CreateATAIdempotentInstruction(payer, payer, spl.WSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, createWSOL)

	swap, err := swapInstruction(payer, req.Mint, p, false, req.AmountIn, minOut)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, swap)

	if p.AutoWrapSOL {
		closeWSOL, err := spl.UnwrapSOLInstruction(payer)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, closeWSOL)
	}

	d.logger.Debug("Собраны инструкции продажи",
		zap.String("mint", req.Mint.String()),
		zap.Uint64("tokens_in", req.AmountIn),
		zap.Uint64("min_sol_out", minOut))
	return instructions, nil
}
