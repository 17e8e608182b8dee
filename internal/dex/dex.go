// =============================
// File: internal/dex/dex.go
// =============================
// Package dex объявляет единый интерфейс торговых протоколов и их реестр.
package dex

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/dex/bonk"
	"github.com/rovshanmuradov/soltrade/internal/dex/pumpfun"
	"github.com/rovshanmuradov/soltrade/internal/dex/pumpswap"
	"github.com/rovshanmuradov/soltrade/internal/dex/raydiumamm"
	"github.com/rovshanmuradov/soltrade/internal/dex/raydiumcpmm"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

// DEX объединяет протоколы: котировка и сборка инструкций
// покупки/продажи. Реализации не держат состояния между вызовами,
// весь контекст сделки приходит в запросе.
type DEX interface {
	Name() string
	Protocol() types.Protocol
	Quote(req *types.TradeRequest) (*types.Quote, error)
	BuildBuy(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error)
	BuildSell(payer solana.PublicKey, req *types.TradeRequest) ([]solana.Instruction, error)
}

var (
	_ DEX = (*pumpfun.DEX)(nil)
	_ DEX = (*pumpswap.DEX)(nil)
	_ DEX = (*bonk.DEX)(nil)
	_ DEX = (*raydiumcpmm.DEX)(nil)
	_ DEX = (*raydiumamm.DEX)(nil)
)

// Registry раздаёт реализации по тегу протокола. Множество закрыто:
// реестр заполняется целиком при создании и дальше не меняется.
type Registry struct {
	logger *zap.Logger
	dexes  map[types.Protocol]DEX
}

func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger: logger.Named("dex_registry"),
		dexes:  make(map[types.Protocol]DEX),
	}
	for _, d := range []DEX{
		pumpfun.New(logger),
		pumpswap.New(logger),
		bonk.New(logger),
		raydiumcpmm.New(logger),
		raydiumamm.New(logger),
	} {
		r.dexes[d.Protocol()] = d
	}
	return r
}

// Get возвращает реализацию протокола. Неизвестный тег считается ошибкой
// конфигурации, fallback'а нет.
func (r *Registry) Get(p types.Protocol) (DEX, error) {
	d, ok := r.dexes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownProtocol, p)
	}
	return d, nil
}

// List возвращает реализации в стабильном порядке протоколов.
func (r *Registry) List() []DEX {
	out := make([]DEX, 0, len(r.dexes))
	for _, p := range types.Protocols() {
		if d, ok := r.dexes[p]; ok {
			out = append(out, d)
		}
	}
	return out
}
