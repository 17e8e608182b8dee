// =============================
// File: internal/dex/bonk/bonk.go
// =============================
// Package bonk реализует торговлю на бондинг-пулах LetsBonk (Raydium
// LaunchLab). Quote-сторона пула всегда WSOL, обе комиссии считаются
// на SOL-стороне сделки.
package bonk

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/spl"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

var (
	ProgramID             = solana.MustPublicKeyFromBase58("LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj")
	Authority             = solana.MustPublicKeyFromBase58("WLHv2UAZm6z4KyaaELi5pjdbJh6RESMva1Rnn8pJVVh")
	GlobalConfig          = solana.MustPublicKeyFromBase58("6s1xP3hpbAfFoNtUNF8mfHsjr2Bd97JxFJRWLbL6aHuX")
	DefaultPlatformConfig = solana.MustPublicKeyFromBase58("FfYek5vEz23cMkWsdJwG2oa6EphsvXSHrGpdALN4g6W1")
	EventAuthority        = solana.MustPublicKeyFromBase58("2DPAtwB8L12vrMRExbLuyGnC7n2J5LNoZQSejeQGpwkr")
)

// Params несёт аккаунты и снапшот пула для одной сделки. Нулевые адреса
// пула и vault'ов выводятся из mint через PDA, platform config и
// token program получают значения по умолчанию.
type Params struct {
	PoolState      solana.PublicKey
	BaseVault      solana.PublicKey
	QuoteVault     solana.PublicKey
	PlatformConfig solana.PublicKey
	// MintTokenProgram указывает программу base-токена (Token или
	// Token-2022).
	MintTokenProgram solana.PublicKey
	// FeeDestination1/2 называют получателей комиссий из события сделки.
	FeeDestination1 solana.PublicKey
	FeeDestination2 solana.PublicKey
	Pool            *Pool
	// AutoWrapSOL оборачивает SOL перед покупкой и закрывает WSOL ATA после.
	AutoWrapSOL bool
}

func (p *Params) platformConfig() solana.PublicKey {
	if p.PlatformConfig.IsZero() {
		return DefaultPlatformConfig
	}
	return p.PlatformConfig
}

func (p *Params) mintProgram() solana.PublicKey {
	if p.MintTokenProgram.IsZero() {
		return solana.TokenProgramID
	}
	return p.MintTokenProgram
}

// resolve достраивает адреса пула и vault'ов для mint.
func (p *Params) resolve(mint solana.PublicKey) (pool, baseVault, quoteVault solana.PublicKey, err error) {
	pool = p.PoolState
	if pool.IsZero() {
		pool, err = DerivePool(mint)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, solana.PublicKey{}, err
		}
	}
	baseVault = p.BaseVault
	if baseVault.IsZero() {
		baseVault, err = DeriveVault(pool, mint)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, solana.PublicKey{}, err
		}
	}
	quoteVault = p.QuoteVault
	if quoteVault.IsZero() {
		quoteVault, err = DeriveVault(pool, spl.WSOLMint)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, solana.PublicKey{}, err
		}
	}
	return pool, baseVault, quoteVault, nil
}

// DEX реализует протокол Bonk для реестра.
type DEX struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *DEX {
	return &DEX{logger: logger.Named("bonk")}
}

func (d *DEX) Name() string             { return "Bonk" }
func (d *DEX) Protocol() types.Protocol { return types.ProtocolBonk }

func (d *DEX) params(req *types.TradeRequest) (*Params, error) {
	p, ok := req.Params.(*Params)
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: expected *bonk.Params, got %T", types.ErrInvalidParams, req.Params)
	}
	if p.Pool == nil {
		return nil, fmt.Errorf("%w: pool snapshot is required", types.ErrInvalidParams)
	}
	if p.FeeDestination1.IsZero() || p.FeeDestination2.IsZero() {
		return nil, fmt.Errorf("%w: fee destinations are required", types.ErrInvalidParams)
	}
	return p, nil
}

// Quote считает номинальный результат сделки без границ slippage.
func (d *DEX) Quote(req *types.TradeRequest) (*types.Quote, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}
	if req.Side == types.SideBuy {
		return p.Pool.BuyQuote(req.AmountIn)
	}
	return p.Pool.SellQuote(req.AmountIn)
}

// BuildBuy: опциональный wrap SOL + создание токен-аккаунта + buy_exact_in.
func (d *DEX) BuildBuy(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}

	quote, err := p.Pool.BuyQuote(req.AmountIn)
	if err != nil {
		return nil, err
	}
	minTokensOut := types.MinAmountWithSlippage(quote.AmountOut, req.SlippageBps)

	d.logger.Debug("Собраны параметры покупки",
		zap.String("mint", req.Mint.String()),
		zap.Uint64("sol_in", req.AmountIn),
		zap.Uint64("min_tokens_out", minTokensOut))

	return buildBuyInstructions(payer, req.Mint, p, req.AmountIn, minTokensOut, req.UseSeedATA)
}

// BuildSell: sell_exact_in с минимумом SOL на выходе.
func (d *DEX) BuildSell(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}

	quote, err := p.Pool.SellQuote(req.AmountIn)
	if err != nil {
		return nil, err
	}
	minSolOut := types.MinAmountWithSlippage(quote.AmountOut, req.SlippageBps)

	d.logger.Debug("Собраны параметры продажи",
		zap.String("mint", req.Mint.String()),
		zap.Uint64("tokens_in", req.AmountIn),
		zap.Uint64("min_sol_out", minSolOut))

	return buildSellInstructions(payer, req.Mint, p, req.AmountIn, minSolOut, req.UseSeedATA)
}

// DerivePool выводит PDA пула для пары (mint, WSOL).
func DerivePool(mint solana.PublicKey) (solana.PublicKey, error) {
	pool, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("pool"), mint.Bytes(), spl.WSOLMint.Bytes()},
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
