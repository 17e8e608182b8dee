package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/cache"
	"github.com/rovshanmuradov/soltrade/internal/config"
	"github.com/rovshanmuradov/soltrade/internal/dex"
	"github.com/rovshanmuradov/soltrade/internal/dex/pumpfun"
	"github.com/rovshanmuradov/soltrade/internal/logger"
	"github.com/rovshanmuradov/soltrade/internal/middleware"
	"github.com/rovshanmuradov/soltrade/internal/swqos"
	"github.com/rovshanmuradov/soltrade/internal/trading"
	"github.com/rovshanmuradov/soltrade/internal/types"
	"github.com/rovshanmuradov/soltrade/internal/wallet"
	solrpc "github.com/rovshanmuradov/soltrade/pkg/blockchain/solana"
)

const privateKeyEnv = "SOLTRADE_PRIVATE_KEY"

func main() {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "Path to config file")
		protocol    = flag.String("protocol", "pumpfun", "Protocol: pumpfun (others need pool accounts via the SDK)")
		mintStr     = flag.String("mint", "", "Token mint address (required)")
		side        = flag.String("side", "buy", "Trade side: buy or sell")
		solAmount   = flag.Float64("sol", 0, "SOL to spend on a buy")
		tokens      = flag.Uint64("tokens", 0, "Raw token units to sell")
		percent     = flag.Uint("percent", 0, "Percent of token balance to sell (1-100)")
		sellAll     = flag.Bool("all", false, "Sell the whole token balance")
		slippageBps = flag.Uint64("slippage-bps", 500, "Slippage tolerance in basis points")
		walletFile  = flag.String("wallet-file", "", "Path to a JSON keypair file (falls back to "+privateKeyEnv+")")
		closeATA    = flag.Bool("close-ata", false, "Close the token account after selling everything")
		wait        = flag.Bool("wait", true, "Wait for confirmation")
	)
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *mintStr == "" {
		log.Fatalf("-mint is required")
	}
	mint, err := solana.PublicKeyFromBase58(*mintStr)
	if err != nil {
		log.Fatalf("Invalid mint: %v", err)
	}

	proto, err := types.ParseProtocol(*protocol)
	if err != nil {
		log.Fatalf("Invalid protocol: %v", err)
	}
	if proto != types.ProtocolPumpFun {
		log.Fatalf("Mint-only trading works for pumpfun; %s needs pool accounts wired through the SDK API", proto)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, cleanup, err := logger.Init(cfg.DebugLogging, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer cleanup()

	w, err := loadWallet(*walletFile)
	if err != nil {
		log.Fatalf("Failed to load wallet: %v", err)
	}
	appLogger.Info("Wallet loaded", zap.String("pubkey", w.String()))

	client, err := solrpc.NewClient(cfg.RPCList, appLogger)
	if err != nil {
		log.Fatalf("Failed to create RPC client: %v", err)
	}

	swqosConfigs, err := cfg.SwqosConfigs()
	if err != nil {
		log.Fatalf("Invalid swqos config: %v", err)
	}
	clients := make([]swqos.Client, 0, len(swqosConfigs))
	for _, sc := range swqosConfigs {
		sender, err := swqos.NewClient(sc, appLogger)
		if err != nil {
			log.Fatalf("Failed to create swqos client: %v", err)
		}
		clients = append(clients, sender)
	}

	pipeline := middleware.NewPipeline(appLogger)
	if cfg.DebugLogging {
		pipeline.Add(middleware.NewLogging(appLogger))
	}

	engine, err := trading.NewEngine(trading.Options{
		Wallet:         w,
		RPC:            client,
		Registry:       dex.NewRegistry(appLogger),
		Racer:          swqos.NewRacer(clients, appLogger),
		Middleware:     pipeline,
		Lookups:        cache.NewLookupTableCache(client.GetAccountData, appLogger),
		PriorityFee:    &cfg.PriorityFee,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         appLogger,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	params, err := fetchPumpFunParams(rootCtx, client, mint, *closeATA)
	if err != nil {
		log.Fatalf("Failed to fetch bonding curve: %v", err)
	}

	req := &types.TradeRequest{
		Protocol:      proto,
		Mint:          mint,
		SlippageBps:   *slippageBps,
		Params:        params,
		WaitConfirmed: *wait,
	}

	var result *types.TradeResult
	switch strings.ToLower(*side) {
	case "buy":
		if *solAmount <= 0 {
			log.Fatalf("-sol must be positive for a buy")
		}
		req.Side = types.SideBuy
		req.AmountIn = types.SolToLamports(*solAmount)
		result, err = engine.Buy(rootCtx, req)
	case "sell":
		req.Side = types.SideSell
		switch {
		case *sellAll:
			result, err = engine.SellAll(rootCtx, req)
		case *percent > 0:
			if *percent > 100 {
				log.Fatalf("-percent must be within 1-100")
			}
			result, err = engine.SellByPercent(rootCtx, req, uint8(*percent))
		case *tokens > 0:
			req.AmountIn = *tokens
			result, err = engine.Sell(rootCtx, req)
		default:
			log.Fatalf("Specify -tokens, -percent or -all for a sell")
		}
	default:
		log.Fatalf("Invalid -side %q: want buy or sell", *side)
	}
	if err != nil {
		log.Fatalf("Trade failed: %v", err)
	}

	appLogger.Info("Trade complete",
		zap.String("signature", result.Signature.String()),
		zap.String("service", result.Service),
		zap.Uint64("slot", result.Slot),
		zap.Bool("confirmed", result.Confirmed),
		zap.Duration("elapsed", result.Elapsed))
	fmt.Println(result.Signature.String())
}

// loadWallet prefers an explicit keypair file and falls back to the
// base58 key from the environment.
func loadWallet(path string) (*wallet.Wallet, error) {
	if path != "" {
		return wallet.FromFile(path)
	}
	if key := os.Getenv(privateKeyEnv); key != "" {
		return wallet.New(key)
	}
	return nil, fmt.Errorf("no wallet: pass -wallet-file or set %s", privateKeyEnv)
}

// fetchPumpFunParams reads the bonding curve account so a trade needs
// nothing beyond the mint address.
func fetchPumpFunParams(ctx context.Context, client *solrpc.Client, mint solana.PublicKey, closeATA bool) (*pumpfun.Params, error) {
	bondingCurve, associated, err := pumpfun.DeriveBondingCurve(mint)
	if err != nil {
		return nil, err
	}
	data, err := client.GetAccountData(ctx, bondingCurve)
	if err != nil {
		return nil, fmt.Errorf("bonding curve account %s: %w", bondingCurve, err)
	}
	curve, err := pumpfun.DecodeBondingCurve(data)
	if err != nil {
		return nil, err
	}
	if curve.Complete {
		return nil, fmt.Errorf("bonding curve for %s is complete, token trades on pumpswap now", mint)
	}
	return &pumpfun.Params{
		BondingCurve:           bondingCurve,
		AssociatedBondingCurve: associated,
		Creator:                curve.Creator,
		Curve:                  curve,
		CloseTokenAccount:      closeATA,
	}, nil
}
