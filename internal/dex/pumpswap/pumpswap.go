// =============================
// File: internal/dex/pumpswap/pumpswap.go
// =============================
// Package pumpswap реализует торговлю на AMM-пулах PumpSwap. Одна из
// сторон пула всегда WSOL; когда WSOL оказывается base-активом, логическая
// покупка токена превращается в on-chain sell и наоборот.
package pumpswap

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/spl"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

var (
	ProgramID               = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")
	GlobalAccount           = solana.MustPublicKeyFromBase58("ADyA8hdefvWN2dbGGWFotbzWxrAvLW83WG6QCVXvJKqw")
	FeeRecipient            = solana.MustPublicKeyFromBase58("62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV")
	EventAuthority          = solana.MustPublicKeyFromBase58("GS4CU59F31iL7aR2Q8zVS8DRrcRnXX1yjQ66TqNVQnaR")
	GlobalVolumeAccumulator = solana.MustPublicKeyFromBase58("C2aFPdENg4A2HQsmrd5rTw5TaYBX5Ku887cWjbFKtZpw")
	FeeConfig               = solana.MustPublicKeyFromBase58("2F5TprcNBqj2hXVr9oTssabKdf8Zbsf9xStqWjPm8yLo")
	FeeProgramID            = solana.MustPublicKeyFromBase58("pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ")
)

// Params хранит снапшот пула для одной сделки. Адреса и резервы читает
// вызывающая сторона (RPC либо событие создания пула).
type Params struct {
	Pool                  solana.PublicKey
	BaseMint              solana.PublicKey
	QuoteMint             solana.PublicKey
	BaseTokenProgram      solana.PublicKey
	QuoteTokenProgram     solana.PublicKey
	PoolBaseTokenAccount  solana.PublicKey
	PoolQuoteTokenAccount solana.PublicKey
	BaseReserve           uint64
	QuoteReserve          uint64
	// CoinCreator повторяет поле coin_creator аккаунта пула; ненулевой ключ
	// включает creator fee, vault-аккаунты выводятся из него.
	CoinCreator solana.PublicKey
	// AutoWrapSOL оборачивает SOL перед свопом и закрывает WSOL ATA после.
	AutoWrapSOL bool
}

func (p *Params) hasCreatorFee() bool { return !p.CoinCreator.IsZero() }

func (p *Params) quoteIsWSOL() bool { return p.QuoteMint.Equals(spl.WSOLMint) }

// onChainBuy: сделка ложится на инструкцию buy программы, когда платим
// quote-активом.
func (p *Params) onChainBuy(side types.Side) bool {
	if p.quoteIsWSOL() {
		return side == types.SideBuy
	}
	return side == types.SideSell
}

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

// tokenMint возвращает не-WSOL сторону пула.
func (p *Params) tokenMint() (solana.PublicKey, solana.PublicKey) {
	if p.quoteIsWSOL() {
		return p.BaseMint, p.baseProgram()
	}
	return p.QuoteMint, p.quoteProgram()
}

// DEX реализует протокол PumpSwap для реестра.
type DEX struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *DEX {
	return &DEX{logger: logger.Named("pumpswap")}
}

func (d *DEX) Name() string             { return "PumpSwap" }
func (d *DEX) Protocol() types.Protocol { return types.ProtocolPumpSwap }

func (d *DEX) params(req *types.TradeRequest) (*Params, error) {
	p, ok := req.Params.(*Params)
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: expected *pumpswap.Params, got %T", types.ErrInvalidParams, req.Params)
	}
	if !p.quoteIsWSOL() && !p.BaseMint.Equals(spl.WSOLMint) {
		return nil, fmt.Errorf("%w: pool has no WSOL side", types.ErrInvalidParams)
	}
	return p, nil
}

// Quote считает номинальный выход сделки без границ slippage.
func (d *DEX) Quote(req *types.TradeRequest) (*types.Quote, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}
	if p.onChainBuy(req.Side) {
		return BuyQuote(req.AmountIn, p.BaseReserve, p.QuoteReserve, p.hasCreatorFee())
	}
	return SellQuote(req.AmountIn, p.BaseReserve, p.QuoteReserve, p.hasCreatorFee())
}

// BuildBuy: SOL → токен. Опционально оборачивает SOL вокруг свопа и всегда
// создаёт ATA покупаемого токена (идемпотентно).
func (d *DEX) BuildBuy(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}

	var data []byte
	var wrapLamports uint64
	if p.onChainBuy(req.Side) {
		quote, err := BuyQuote(req.AmountIn, p.BaseReserve, p.QuoteReserve, p.hasCreatorFee())
		if err != nil {
			return nil, err
		}
		maxQuoteIn := types.MaxAmountWithSlippage(req.AmountIn, req.SlippageBps)
		data = swapData(buyDiscriminator, quote.AmountOut, maxQuoteIn)
		wrapLamports = maxQuoteIn
	} else {
		// WSOL на base-стороне: покупка токена = on-chain sell базы.
		quote, err := SellQuote(req.AmountIn, p.BaseReserve, p.QuoteReserve, p.hasCreatorFee())
		if err != nil {
			return nil, err
		}
		minQuoteOut := types.MinAmountWithSlippage(quote.AmountOut, req.SlippageBps)
		data = swapData(sellDiscriminator, req.AmountIn, minQuoteOut)
		wrapLamports = req.AmountIn
	}

	instructions := make([]solana.Instruction, 0, 6)
	if p.AutoWrapSOL {
		wrap, _, err := spl.WrapSOLInstructions(payer, wrapLamports)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, wrap...)
	}

	mint, program := p.tokenMint()
	create, err := spl.CreateATAIdempotentInstruction(payer, payer, mint, program)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, create)

	swap, err := buildSwapInstruction(payer, p, p.onChainBuy(req.Side), data)
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
		zap.String("pool", p.Pool.String()),
		zap.Uint64("amount_in", req.AmountIn),
		zap.Int("instructions", len(instructions)))
	return instructions, nil
}

// BuildSell: токен → SOL. WSOL ATA создаётся всегда: принимающая сторона
// нужна даже без auto-wrap.
func (d *DEX) BuildSell(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error) {
	p, err := d.params(req)
	if err != nil {
		return nil, err
	}

	var data []byte
	if p.onChainBuy(req.Side) {
		// WSOL на base-стороне: продажа токена = on-chain buy базы.
		quote, err := BuyQuote(req.AmountIn, p.BaseReserve, p.QuoteReserve, p.hasCreatorFee())
		if err != nil {
			return nil, err
		}
		maxQuoteIn := types.MaxAmountWithSlippage(req.AmountIn, req.SlippageBps)
		data = swapData(buyDiscriminator, quote.AmountOut, maxQuoteIn)
	} else {
		quote, err := SellQuote(req.AmountIn, p.BaseReserve, p.QuoteReserve, p.hasCreatorFee())
		if err != nil {
			return nil, err
		}
		minQuoteOut := types.MinAmountWithSlippage(quote.AmountOut, req.SlippageBps)
		data = swapData(sellDiscriminator, req.AmountIn, minQuoteOut)
	}

	createWSOL, err := spl.CreateATAIdempotentInstruction(payer, payer, spl.WSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}

	swap, err := buildSwapInstruction(payer, p, p.onChainBuy(req.Side), data)
	if err != nil {
		return nil, err
	}

	instructions := []solana.Instruction{createWSOL, swap}
	if p.AutoWrapSOL {
		closeWSOL, err := spl.UnwrapSOLInstruction(payer)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, closeWSOL)
	}

	d.logger.Debug("Собраны инструкции продажи",
		zap.String("pool", p.Pool.String()),
		zap.Uint64("amount_in", req.AmountIn),
		zap.Int("instructions", len(instructions)))
	return instructions, nil
}

// DeriveCoinCreatorVault выводит authority и ATA хранилища creator fee.
// Для пулов без создателя PDA выводится из нулевого ключа: программа
// всё равно требует эти аккаунты в списке.
func DeriveCoinCreatorVault(creator, quoteMint, quoteTokenProgram solana.PublicKey) (authority, ata solana.PublicKey, err error) {
	authority, _, err = solana.FindProgramAddress(
		[][]byte{[]byte("creator_vault"), creator.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive coin creator vault authority: %w", err)
	}
	ata, err = spl.AssociatedTokenAddress(authority, quoteMint, quoteTokenProgram)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive coin creator vault ata: %w", err)
	}
	return authority, ata, nil
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
