// ==================================
// File: internal/types/trade.go
// ==================================
package types

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Side направляет сделку: покупка за SOL или продажа токена.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

const LamportsPerSOL = 1_000_000_000

// SolToLamports переводит величину из конфига (SOL, float) в lamports.
// Плавающая точка допустима только здесь: дальше весь расчётный путь
// целочисленный.
func SolToLamports(sol float64) uint64 {
	if sol <= 0 {
		return 0
	}
	return uint64(sol * LamportsPerSOL)
}

// TradeRequest описывает одну сделку. Собирается на каждый вызов и не
// переиспользуется: Protocol и Side фиксированы с момента создания.
type TradeRequest struct {
	Protocol    Protocol
	Side        Side
	Mint        solana.PublicKey
	AmountIn    uint64 // lamports при покупке, единицы токена при продаже
	SlippageBps uint64

	// Параметры конкретного протокола (*pumpfun.Params и т.д.),
	// билдер протокола проверяет тип сам.
	Params any

	// Переопределения на один вызов.
	PriorityFee *PriorityFee
	LookupTable *solana.PublicKey
	UseNonce    bool // durable nonce вместо свежего blockhash (только покупка)
	UseSeedATA  bool // seed-деривация токен-аккаунта вместо стандартной ATA

	WaitConfirmed bool
}

// TradeResult описывает итог гонки отправки.
type TradeResult struct {
	Signature solana.Signature
	Service   string // сервис, принявший транзакцию первым
	Slot      uint64
	Confirmed bool
	Elapsed   time.Duration
}

// MaxAmountWithSlippage возвращает верхнюю границу затрат для покупки:
// amount + amount*bps/10000.
func MaxAmountWithSlippage(amount, slippageBps uint64) uint64 {
	return amount + amount*slippageBps/10_000
}

// MinAmountWithSlippage возвращает нижнюю границу выхода для продажи:
// amount - amount*bps/10000.
func MinAmountWithSlippage(amount, slippageBps uint64) uint64 {
	return amount - amount*slippageBps/10_000
}
