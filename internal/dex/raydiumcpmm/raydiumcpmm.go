// =============================
// File: internal/dex/raydiumcpmm/raydiumcpmm.go
// =============================
// Package raydiumcpmm реализует торговлю на пулах Raydium CPMM через
// swap_base_input. WSOL должен быть одной из сторон пула; сделка всегда
// задаётся точным входом.
package raydiumcpmm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/spl"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

var (
	ProgramID        = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	Authority        = solana.MustPublicKeyFromBase58("GpMZbSM2GgvTKHJirzeGfMFoaZ8UR2X7F4v8vHTvxFbL")
	DefaultAmmConfig = solana.MustPublicKeyFromBase58("D4FPEruKEHrG5TenZ2mpDGEfu1iUvTiqBxvpU8HLBvC2")
)

// Params несёт аккаунты и резервы пула для одной сделки. Нулевой pool state,
// vault'ы и observation выводятся через PDA.
type Params struct {
	AmmConfig         solana.PublicKey
	PoolState         solana.PublicKey
	BaseMint          solana.PublicKey
	QuoteMint         solana.PublicKey
	BaseTokenProgram  solana.PublicKey
	QuoteTokenProgram solana.PublicKey
	BaseVault         solana.PublicKey
	QuoteVault        solana.PublicKey
	ObservationState  solana.PublicKey
	BaseReserve       uint64
	QuoteReserve      uint64
	// AutoWrapSOL оборачивает SOL вокруг покупки и создаёт/закрывает
	// WSOL ATA вокруг продажи.
	AutoWrapSOL bool
}

func (p *Params) ammConfig() solana.PublicKey {
	if p.AmmConfig.IsZero() {
		return DefaultAmmConfig
	}
	return p.AmmConfig
}

func (p *Params) baseIsWSOL() bool { return p.BaseMint.Equals(spl.WSOLMint) }

func (p *Params) baseProgram() solana.PublicKey {
	if p.BaseTokenProgram.IsZero() {
		return solana.TokenProgramID
	}
	return p.BaseTokenProgram
}

func (p *Params) quoteProgram() solana.PublicKey {
	if p.QuoteTokenProgram.IsZero() {
		return solana.TokenProgramID
	}
	return p.QuoteTokenProgram
}

// mintProgram возвращает программу не-WSOL стороны пула.
func (p *Params) mintProgram() solana.PublicKey {
	if p.baseIsWSOL() {
		return p.quoteProgram()
	}
	return p.baseProgram()
}

// reserves возвращает резервы в порядке вход→выход для стороны сделки.
func (p *Params) reserves(side types.Side) (inputReserve, outputReserve uint64) {
	wsolIn := side == types.SideBuy
	if p.baseIsWSOL() == wsolIn {
		return p.BaseReserve, p.QuoteReserve
	}
	return p.QuoteReserve, p.BaseReserve
}

// resolve достраивает pool, vault'ы и observation state.
func (p *Params) resolve(mint solana.PublicKey) (pool, wsolVault, mintVault, observation solana.PublicKey, err error) {
	pool = p.PoolState
	if pool.IsZero() {
		pool, err = DerivePool(p.ammConfig(), p.BaseMint, p.QuoteMint)
		if err != nil {
			return
		}
	}

	wsolVault, mintVault = p.BaseVault, p.QuoteVault
	if !p.baseIsWSOL() {
		wsolVault, mintVault = p.QuoteVault, p.BaseVault
	}
	if wsolVault.IsZero() {
		wsolVault, err = DeriveVault(pool, spl.WSOLMint)
		if err != nil {
			return
		}
	}
	if mintVault.IsZero() {
		mintVault, err = DeriveVault(pool, mint)
		if err != nil {
			return
		}
	}

	observation = p.ObservationState
	if observation.IsZero() {
		observation, err = DeriveObservationState(pool)
		if err != nil {
			return
		}
	}
	return pool, wsolVault, mintVault, observation, nil
}

// DEX реализует протокол Raydium CPMM для реестра.
type DEX struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *DEX {
	return &DEX{logger: logger.Named("raydium_cpmm")}
}

func (d *DEX) Name() string             { return "RaydiumCpmm" }
func (d *DEX) Protocol() types.Protocol { return types.ProtocolRaydiumCpmm }

func (d *DEX) params(req *types.TradeRequest) (*Params, error) {
	p, ok := req.Params.(*Params)
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: expected *raydiumcpmm.Params, got %T", types.ErrInvalidParams, req.Params)
	}
	if !p.baseIsWSOL() && !p.QuoteMint.Equals(spl.WSOLMint) {
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

// BuildBuy: опциональный wrap SOL + создание токен-аккаунта + swap_base_input.
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

	create, err := spl.CreateATAIdempotentInstruction(payer, payer, req.Mint, p.mintProgram())
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

// BuildSell: swap_base_input в обратном направлении.
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
	if p.AutoWrapSOL {
		createWSOL, err := spl.CreateATAIdempotentInstruction(payer, payer, spl.WSOLMint, solana.TokenProgramID)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, createWSOL)
	}

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

// DerivePool выводит PDA пула для (amm config, mint0, mint1).
func DerivePool(ammConfig, mint0, mint1 solana.PublicKey) (solana.PublicKey, error) {
	pool, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("pool"), ammConfig.Bytes(), mint0.Bytes(), mint1.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive pool: %w", err)
	}
	return pool, nil
}

// DeriveVault выводит PDA vault'а пула для mint.
func DeriveVault(pool, mint solana.PublicKey) (solana.PublicKey, error) {
	vault, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("pool_vault"), pool.Bytes(), mint.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive pool vault: %w", err)
	}
	return vault, nil
}

// DeriveObservationState выводит PDA observation-аккаунта пула.
func DeriveObservationState(pool solana.PublicKey) (solana.PublicKey, error) {
	observation, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("observation"), pool.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive observation state: %w", err)
	}
	return observation, nil
}
