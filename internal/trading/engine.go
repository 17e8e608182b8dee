// =============================
// File: internal/trading/engine.go
// =============================

// Package trading собирает сделку целиком: инструкции протокола от
// билдера, compute budget, durable nonce, чаевые ускорителю, middleware,
// компиляция с lookup-таблицами, подпись и гонка по сервисам доставки.
package trading

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/cache"
	"github.com/rovshanmuradov/soltrade/internal/dex"
	"github.com/rovshanmuradov/soltrade/internal/middleware"
	"github.com/rovshanmuradov/soltrade/internal/spl"
	"github.com/rovshanmuradov/soltrade/internal/swqos"
	"github.com/rovshanmuradov/soltrade/internal/types"
	"github.com/rovshanmuradov/soltrade/internal/wallet"
)

// RPCClient сужает RPC-поверхность до вызовов, которые потребляет движок.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) ([]*rpc.SignatureStatusesResult, error)
	GetTokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error)
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
}

// Options собирает зависимости движка. Wallet, RPC, Registry и Racer
// обязательны.
type Options struct {
	Wallet   *wallet.Wallet
	RPC      RPCClient
	Registry *dex.Registry
	Racer    *swqos.Racer
	// Middleware применяется к полному набору инструкций перед компиляцией.
	Middleware *middleware.Pipeline
	// Nonce включает durable-nonce путь для покупок с req.UseNonce.
	Nonce *cache.NonceCache
	// Lookups нужен запросам с LookupTable.
	Lookups *cache.LookupTableCache
	// PriorityFee служит значением по умолчанию; req.PriorityFee его
	// перекрывает.
	PriorityFee    *types.PriorityFee
	ConfirmTimeout time.Duration
	Logger         *zap.Logger
}

const defaultConfirmTimeout = 30 * time.Second

// Engine исполняет сделки: Buy/Sell строят и рассылают транзакцию по всем
// сервисам доставки, возвращая первый успех.
type Engine struct {
	wallet         *wallet.Wallet
	rpc            RPCClient
	registry       *dex.Registry
	racer          *swqos.Racer
	pipeline       *middleware.Pipeline
	nonce          *cache.NonceCache
	lookups        *cache.LookupTableCache
	priorityFee    *types.PriorityFee
	confirmTimeout time.Duration
	logger         *zap.Logger
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Wallet == nil {
		return nil, errors.New("wallet is required")
	}
	if opts.RPC == nil {
		return nil, errors.New("rpc client is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("dex registry is required")
	}
	if opts.Racer == nil || len(opts.Racer.Clients()) == 0 {
		return nil, errors.New("at least one delivery client is required")
	}
	if opts.PriorityFee == nil {
		opts.PriorityFee = types.DefaultPriorityFee()
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = defaultConfirmTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Engine{
		wallet:         opts.Wallet,
		rpc:            opts.RPC,
		registry:       opts.Registry,
		racer:          opts.Racer,
		pipeline:       opts.Middleware,
		nonce:          opts.Nonce,
		lookups:        opts.Lookups,
		priorityFee:    opts.PriorityFee,
		confirmTimeout: opts.ConfirmTimeout,
		logger:         opts.Logger.Named("trading"),
	}, nil
}

// Buy покупает req.Mint за req.AmountIn лампортов SOL.
func (e *Engine) Buy(ctx context.Context, req *types.TradeRequest) (*types.TradeResult, error) {
	return e.trade(ctx, req, true)
}

// Sell продаёт req.AmountIn токенов req.Mint.
func (e *Engine) Sell(ctx context.Context, req *types.TradeRequest) (*types.TradeResult, error) {
	return e.trade(ctx, req, false)
}

// SellByPercent продаёт процент [1..100] текущего остатка токен-аккаунта.
func (e *Engine) SellByPercent(ctx context.Context, req *types.TradeRequest, percent uint8) (*types.TradeResult, error) {
	if percent < 1 || percent > 100 {
		return nil, fmt.Errorf("%w: percent must be within [1, 100], got %d", types.ErrInvalidParams, percent)
	}
	if req.Mint.IsZero() {
		return nil, fmt.Errorf("%w: mint is required", types.ErrInvalidParams)
	}

	ata, err := e.wallet.GetATA(req.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive token account: %w", err)
	}
	held, err := e.rpc.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	if held == 0 {
		return nil, fmt.Errorf("%w: no tokens to sell", types.ErrInsufficientBalance)
	}

	amount := percentOf(held, percent)
	if amount == 0 {
		return nil, fmt.Errorf("%w: %d%% of %d tokens", types.ErrAmountTooSmall, percent, held)
	}
	req.AmountIn = amount
	return e.Sell(ctx, req)
}

// SellAll продаёт весь остаток токен-аккаунта.
func (e *Engine) SellAll(ctx context.Context, req *types.TradeRequest) (*types.TradeResult, error) {
	return e.SellByPercent(ctx, req, 100)
}

func percentOf(amount uint64, percent uint8) uint64 {
	hi, lo := bits.Mul64(amount, uint64(percent))
	out, _ := bits.Div64(hi, lo, 100)
	return out
}

func (e *Engine) validate(req *types.TradeRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", types.ErrInvalidParams)
	}
	if req.Mint.IsZero() {
		return fmt.Errorf("%w: mint is required", types.ErrInvalidParams)
	}
	if req.AmountIn == 0 {
		return fmt.Errorf("%w: amount is zero", types.ErrInvalidAmount)
	}
	if req.SlippageBps > 10_000 {
		return fmt.Errorf("%w: slippage %d bps exceeds 100%%", types.ErrInvalidParams, req.SlippageBps)
	}
	return nil
}

func (e *Engine) trade(ctx context.Context, req *types.TradeRequest, buy bool) (*types.TradeResult, error) {
	start := time.Now()
	if err := e.validate(req); err != nil {
		return nil, err
	}

	d, err := e.registry.Get(req.Protocol)
	if err != nil {
		return nil, err
	}

	payer := e.wallet.PublicKey
	var business []solana.Instruction
	if buy {
		req.Side = types.SideBuy
		business, err = d.BuildBuy(payer, req)
	} else {
		req.Side = types.SideSell
		business, err = d.BuildSell(payer, req)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s instructions: %w", req.Side, err)
	}

	fee := e.priorityFee
	if req.PriorityFee != nil {
		fee = req.PriorityFee
	}

	// Durable nonce задействуется только на покупках: там идёт гонка с
	// остальным рынком и цена повторного исполнения высока.
	if req.UseNonce && e.nonce == nil {
		return nil, fmt.Errorf("%w: nonce requested but nonce cache is not configured", types.ErrInvalidConfig)
	}
	nonceActive := buy && req.UseNonce

	var blockhash solana.Hash
	if nonceActive {
		blockhash, err = e.nonceHash(ctx)
	} else {
		blockhash, err = e.rpc.GetLatestBlockhash(ctx)
	}
	if err != nil {
		return nil, err
	}

	var tables map[solana.PublicKey]solana.PublicKeySlice
	if req.LookupTable != nil {
		if e.lookups == nil {
			return nil, fmt.Errorf("%w: lookup table requested but lookup cache is not configured", types.ErrInvalidConfig)
		}
		tables, err = e.lookups.Tables(ctx, *req.LookupTable)
		if err != nil {
			return nil, err
		}
	}

	buyTips := fee.EffectiveBuyTipFees(len(e.racer.Clients()))

	res, err := e.racer.Race(ctx, func(ctx context.Context, client swqos.Client, i int) (*solana.Transaction, error) {
		tipSOL := fee.SellTipFee
		if buy {
			tipSOL = buyTips[i]
		}
		return e.assemble(ctx, client, assembly{
			business:  business,
			fee:       fee,
			buy:       buy,
			nonce:     nonceActive,
			blockhash: blockhash,
			tables:    tables,
			tipSOL:    tipSOL,
		})
	})
	if err != nil {
		return nil, err
	}
	if nonceActive {
		// Победившая отправка потребит nonce; проигравшие с тем же
		// значением откажутся сами.
		e.nonce.MarkUsed()
	}

	result := &types.TradeResult{
		Signature: res.Signature,
		Service:   res.Service.String(),
		Elapsed:   time.Since(start),
	}
	e.logger.Info("Сделка отправлена",
		zap.String("side", string(req.Side)),
		zap.String("mint", req.Mint.String()),
		zap.String("service", result.Service),
		zap.String("signature", result.Signature.String()),
		zap.Duration("elapsed", result.Elapsed))

	if req.WaitConfirmed {
		slot, err := e.waitConfirmation(ctx, res.Signature)
		if err != nil {
			// Подпись уже в сети: вернуть её вместе с ошибкой подтверждения.
			return result, fmt.Errorf("transaction %s sent but not confirmed: %w", res.Signature, err)
		}
		result.Confirmed = true
		result.Slot = slot
		e.logger.Info("Транзакция подтверждена",
			zap.String("signature", result.Signature.String()),
			zap.Uint64("slot", slot))
	}
	return result, nil
}

// assembly несёт параметры сборки транзакции под конкретного клиента гонки.
type assembly struct {
	business  []solana.Instruction
	fee       *types.PriorityFee
	buy       bool
	nonce     bool
	blockhash solana.Hash
	tables    map[solana.PublicKey]solana.PublicKeySlice
	tipSOL    float64
}

func (e *Engine) assemble(ctx context.Context, client swqos.Client, a assembly) (*solana.Transaction, error) {
	instructions := make([]solana.Instruction, 0, len(a.business)+5)

	if a.nonce {
		instructions = append(instructions, spl.AdvanceNonceInstruction(e.nonce.Account(), e.wallet.PublicKey))
	}

	// Default-клиент идёт в обычный RPC и несёт RPC-бюджет; ускорители
	// получают tip-бюджет.
	rpcBudget := client.Service() == swqos.ServiceDefault
	instructions = append(instructions, a.fee.ComputeBudgetInstructions(rpcBudget, a.buy)...)
	instructions = append(instructions, a.business...)

	if client.Service().RequiresTip() {
		tipAccount, err := client.TipAccount()
		if err != nil {
			return nil, err
		}
		if lamports := types.SolToLamports(a.tipSOL); lamports > 0 {
			instructions = append(instructions, spl.SystemTransferInstruction(e.wallet.PublicKey, tipAccount, lamports))
		}
	}

	if e.pipeline != nil {
		out, err := e.pipeline.Apply(ctx, instructions)
		if err != nil {
			return nil, err
		}
		instructions = out
	}

	opts := []solana.TransactionOption{solana.TransactionPayer(e.wallet.PublicKey)}
	if len(a.tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(a.tables))
	}
	tx, err := solana.NewTransaction(instructions, a.blockhash, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := e.wallet.SignTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// nonceHash возвращает готовое значение nonce, один раз обновив кэш из
// сети, если значение ещё не готово или уже потрачено.
func (e *Engine) nonceHash(ctx context.Context) (solana.Hash, error) {
	hash, err := e.nonce.Hash()
	if err == nil {
		return hash, nil
	}
	if refreshErr := e.RefreshNonce(ctx); refreshErr != nil {
		return solana.Hash{}, fmt.Errorf("%w (refresh failed: %v)", err, refreshErr)
	}
	return e.nonce.Hash()
}

// RefreshNonce подтягивает текущее значение nonce-аккаунта из сети.
func (e *Engine) RefreshNonce(ctx context.Context) error {
	if e.nonce == nil {
		return fmt.Errorf("%w: nonce cache is not configured", types.ErrInvalidConfig)
	}
	data, err := e.rpc.GetAccountData(ctx, e.nonce.Account())
	if err != nil {
		return fmt.Errorf("failed to fetch nonce account: %w", err)
	}
	hash, err := cache.ParseNonceHash(data)
	if err != nil {
		return err
	}
	e.nonce.Update(hash)
	return nil
}
