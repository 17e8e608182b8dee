package types

import "errors"

// Ошибки расчёта: неконсистентный снапшот пула или непригодная величина.
// Всегда возвращаются вызывающему, никогда не "подрезаются" молча.
var (
	ErrInvalidPoolState = errors.New("invalid pool state")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrAmountTooSmall   = errors.New("amount too small after rounding")
)

// Ошибки сборки транзакции.
var (
	ErrSlippageExceeded     = errors.New("slippage tolerance exceeded")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrUnsupportedOperation = errors.New("operation not supported by protocol")
	ErrInvalidParams        = errors.New("invalid protocol params")
	ErrUnknownProtocol      = errors.New("unknown protocol")
)

// ErrInvalidConfig помечает ошибки конфигурации, обнаруженные до запуска.
var ErrInvalidConfig = errors.New("invalid config")

// Quote несёт номинальный результат калькулятора: выход и удержанную
// комиссию.
// Границы slippage накладывает билдер, не калькулятор.
type Quote struct {
	AmountOut uint64
	Fee       uint64
}
