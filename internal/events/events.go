// =============================
// File: internal/events/events.go
// =============================
// Package events декодирует сырые байты программных логов в типизированные
// события пяти протоколов и раздаёт их подписчикам с сохранением порядка.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

// Kind задаёт вид события внутри протокола.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTrade
	KindCreate
	KindComplete
	KindBuy
	KindSell
	KindCreatePool
	KindPoolCreate
	KindSwap
	KindSwapBaseIn
)

var kindNames = map[Kind]string{
	KindTrade:      "trade",
	KindCreate:     "create",
	KindComplete:   "complete",
	KindBuy:        "buy",
	KindSell:       "sell",
	KindCreatePool: "create_pool",
	KindPoolCreate: "pool_create",
	KindSwap:       "swap",
	KindSwapBaseIn: "swap_base_in",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Provenance описывает происхождение события: где в цепочке оно было
// испущено. Program обязателен для декодирования: anchor-дискриминаторы
// считаются от имени события и совпадают у одноимённых событий разных
// программ.
type Provenance struct {
	Slot      uint64
	Signature solana.Signature
	// Index нумерует события внутри транзакции по порядку.
	Index int
	// Program хранит программу, испустившую лог.
	Program solana.PublicKey
}

// UnifiedEvent представляет декодированное событие. После декодирования
// не меняется; каждый подписчик получает его ровно один раз в порядке
// прибытия.
type UnifiedEvent struct {
	Protocol types.Protocol
	Kind     Kind
	Provenance
	// Payload указывает на структуру события (*PumpFunTrade и т.п.).
	Payload any
}

// DecodeError отмечает узнанный дискриминатор с повреждённым или
// усечённым телом. Неузнанные дискриминаторы ошибкой не считаются и
// просто пропускаются.
type DecodeError struct {
	Protocol types.Protocol
	Kind     Kind
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s %s event: %v", e.Protocol, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrDispatcherClosed возвращается на публикацию или подписку после остановки.
var ErrDispatcherClosed = errors.New("event dispatcher is closed")

// Handler обрабатывает событие. Ошибка логируется и не останавливает доставку.
type Handler interface {
	Handle(ctx context.Context, event *UnifiedEvent) error
}

// HandlerFunc адаптирует функцию под Handler.
type HandlerFunc func(ctx context.Context, event *UnifiedEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event *UnifiedEvent) error {
	return f(ctx, event)
}
