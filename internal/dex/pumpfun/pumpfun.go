// =============================
// File: internal/dex/pumpfun/pumpfun.go
// =============================
// Package pumpfun реализует торговлю на бондинг-кривой Pump.fun:
// расчёт цены по виртуальным резервам и сборку buy/sell инструкций
// в точном порядке аккаунтов программы.
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

var (
	ProgramID               = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	GlobalAccount           = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	FeeRecipient            = solana.MustPublicKeyFromBase58("62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV")
	EventAuthority          = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
	FeeProgramID            = solana.MustPublicKeyFromBase58("pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ")
	GlobalVolumeAccumulator = solana.MustPublicKeyFromBase58("Hq2wp8uJ9jCPsYgNHex8RtqdvMPfVGoYwjvF1ATiwn2Y")
	FeeConfig               = solana.MustPublicKeyFromBase58("8Wf5TiAheLUqBrKXeYg2JtAFFMWtKdG2BSFgqUcPVwTt")
)

// Params несёт аккаунты и снапшот кривой для одной сделки. Адреса считаются
// один раз вызывающей стороной (DeriveBondingCurve + снапшот из RPC или
// из события создания токена).
type Params struct {
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
	// Creator называет создателя токена; нулевой ключ означает кривую без
	// creator-vault комиссии.
	Creator solana.PublicKey
	Curve   *BondingCurve
	// CloseTokenAccount добавляет закрытие ATA после продажи остатка.
	CloseTokenAccount bool
}

// DEX реализует протокол Pump.fun для реестра.
type DEX struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *DEX {
	return &DEX{logger: logger.Named("pumpfun")}
}

func (d *DEX) Name() string             { return "PumpFun" }
func (d *DEX) Protocol() types.Protocol { return types.ProtocolPumpFun }

func (d *DEX) params(req *types.TradeRequest) (*Params, error) {
	p, ok := req.Params.(*Params)
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: expected *pumpfun.Params, got %T", types.ErrInvalidParams, req.Params)
	}
	if p.Curve == nil {
		return nil, fmt.Errorf("%w: bonding curve snapshot is required", types.ErrInvalidParams)
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
		return p.Curve.BuyQuote(req.AmountIn, p.hasCreatorFee())
	}
	return p.Curve.SellQuote(req.AmountIn, p.hasCreatorFee())
}

// BuildBuy собирает инструкции покупки: создание ATA + buy.
func (d *DEX) BuildBuy(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}

	quote, err := p.Curve.BuyQuote(req.AmountIn, p.hasCreatorFee())
	if err != nil {
		return nil, err
	}
	maxSolCost := types.MaxAmountWithSlippage(req.AmountIn, req.SlippageBps)

	d.logger.Debug("Собраны параметры покупки",
		zap.String("mint", req.Mint.String()),
		zap.Uint64("sol_in", req.AmountIn),
		zap.Uint64("tokens_out", quote.AmountOut),
		zap.Uint64("max_sol_cost", maxSolCost))

	return buildBuyInstructions(payer, req.Mint, p, quote.AmountOut, maxSolCost, req.UseSeedATA)
}

// BuildSell собирает инструкции продажи, опционально с закрытием ATA.
func (d *DEX) BuildSell(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}

	quote, err := p.Curve.SellQuote(req.AmountIn, p.hasCreatorFee())
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

func (p *Params) hasCreatorFee() bool {
	return !p.Creator.IsZero()
}

// DeriveBondingCurve выводит PDA кривой и её ATA для mint.
func DeriveBondingCurve(mint solana.PublicKey) (bondingCurve, associated solana.PublicKey, err error) {
	bondingCurve, _, err = solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive bonding curve: %w", err)
	}
	associated, _, err = solana.FindAssociatedTokenAddress(bondingCurve, mint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive associated bonding curve: %w", err)
	}
	return bondingCurve, associated, nil
}

// DeriveCreatorVault выводит PDA creator-vault для создателя токена.
func DeriveCreatorVault(creator solana.PublicKey) (solana.PublicKey, error) {
	vault, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("creator-vault"), creator.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive creator vault: %w", err)
	}
	return vault, nil
}

// DeriveUserVolumeAccumulator выводит PDA аккумулятора объёма пользователя.
func DeriveUserVolumeAccumulator(user solana.PublicKey) (solana.PublicKey, error) {
	acc, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("user_volume_accumulator"), user.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive user volume accumulator: %w", err)
	}
	return acc, nil
}
