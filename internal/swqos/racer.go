// =============================
// File: internal/swqos/racer.go
// =============================
package swqos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// EndpointError описывает провал одного сервиса доставки.
type EndpointError struct {
	Service  Service
	Endpoint string
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Service, e.Endpoint, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// AggregateError возвращается гонкой, когда провалились все эндпоинты.
// Единичный провал при живом победителе ошибкой не считается.
type AggregateError struct {
	Reasons []EndpointError
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Reasons))
	for i := range e.Reasons {
		parts[i] = e.Reasons[i].Error()
	}
	return fmt.Sprintf("all %d delivery endpoints failed: %s", len(e.Reasons), strings.Join(parts, "; "))
}

func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Reasons))
	for i := range e.Reasons {
		errs[i] = &e.Reasons[i]
	}
	return errs
}

// BuildFunc собирает транзакцию под конкретного клиента гонки: размер
// чаевых и tip-аккаунт различаются от сервиса к сервису, поэтому каждому
// участнику нужна своя подписанная копия.
type BuildFunc func(ctx context.Context, client Client, index int) (*solana.Transaction, error)

// Result описывает исход выигравшей отправки.
type Result struct {
	Signature solana.Signature
	Service   Service
	Endpoint  string
	Elapsed   time.Duration
}

// Racer рассылает транзакцию всем клиентам параллельно и отдаёт первый
// успех. Проигравшие отправки не отменяются: дубликат подписи в сети
// безвреден, а отмена в полёте лишь добавила бы задержку победителю.
type Racer struct {
	clients []Client
	logger  *zap.Logger
}

func NewRacer(clients []Client, logger *zap.Logger) *Racer {
	return &Racer{
		clients: clients,
		logger:  logger.Named("racer"),
	}
}

// Clients возвращает участников гонки в порядке регистрации.
func (r *Racer) Clients() []Client { return r.clients }

// Race строит и отправляет транзакцию через каждого клиента. Возвращает
// первый успех; если провалились все, возвращается *AggregateError со
// всеми причинами.
func (r *Racer) Race(ctx context.Context, build BuildFunc) (*Result, error) {
	if len(r.clients) == 0 {
		return nil, fmt.Errorf("no delivery clients configured")
	}

	type outcome struct {
		res *Result
		err *EndpointError
	}
	// Буфер на всех участников: проигравшие дописывают результат и
	// завершаются, даже когда победитель уже вернулся вызывающему.
	results := make(chan outcome, len(r.clients))
	start := time.Now()

	for i, client := range r.clients {
		go func() {
			tx, err := build(ctx, client, i)
			if err != nil {
				results <- outcome{err: &EndpointError{
					Service:  client.Service(),
					Endpoint: client.Endpoint(),
					Err:      fmt.Errorf("build transaction: %w", err),
				}}
				return
			}
			sig, err := client.SendTransaction(ctx, tx)
			if err != nil {
				results <- outcome{err: &EndpointError{
					Service:  client.Service(),
					Endpoint: client.Endpoint(),
					Err:      err,
				}}
				return
			}
			results <- outcome{res: &Result{
				Signature: sig,
				Service:   client.Service(),
				Endpoint:  client.Endpoint(),
				Elapsed:   time.Since(start),
			}}
		}()
	}

	agg := &AggregateError{}
	for range r.clients {
		select {
		case out := <-results:
			if out.res != nil {
				r.logger.Info("Гонка выиграна",
					zap.String("service", out.res.Service.String()),
					zap.String("signature", out.res.Signature.String()),
					zap.Duration("elapsed", out.res.Elapsed))
				return out.res, nil
			}
			r.logger.Debug("Эндпоинт выбыл из гонки",
				zap.String("service", out.err.Service.String()),
				zap.Error(out.err.Err))
			agg.Reasons = append(agg.Reasons, *out.err)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, agg
}
