// =============================
// File: internal/middleware/middleware.go
// =============================
// Package middleware применяет упорядоченные преобразования к набору
// инструкций перед подписанием: compute budget, чаевые, сквозные политики.
package middleware

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Middleware преобразует набор инструкций. Может добавлять, убирать и
// переставлять инструкции; имя попадает в диагностику ошибок.
type Middleware interface {
	Name() string
	Process(ctx context.Context, instructions []solana.Instruction) ([]solana.Instruction, error)
}

// Func адаптирует функцию под Middleware.
type Func struct {
	name string
	fn   func(ctx context.Context, instructions []solana.Instruction) ([]solana.Instruction, error)
}

func NewFunc(name string, fn func(ctx context.Context, instructions []solana.Instruction) ([]solana.Instruction, error)) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Process(ctx context.Context, instructions []solana.Instruction) ([]solana.Instruction, error) {
	return f.fn(ctx, instructions)
}

// Pipeline применяет middleware строго в порядке регистрации. Каждый
// получает выход предыдущего; первая ошибка прерывает сборку целиком,
// частично преобразованный набор наружу не выходит.
type Pipeline struct {
	logger      *zap.Logger
	middlewares []Middleware
}

func NewPipeline(logger *zap.Logger) *Pipeline {
	return &Pipeline{logger: logger.Named("middleware")}
}

// Add добавляет middleware в конец цепочки и возвращает pipeline,
// так что вызовы компонуются слева направо.
func (p *Pipeline) Add(mw Middleware) *Pipeline {
	p.middlewares = append(p.middlewares, mw)
	return p
}

func (p *Pipeline) Len() int { return len(p.middlewares) }

// Apply прогоняет набор через цепочку. Пустая цепочка возвращает набор
// как есть.
func (p *Pipeline) Apply(ctx context.Context, instructions []solana.Instruction) ([]solana.Instruction, error) {
	for _, mw := range p.middlewares {
		var err error
		before := len(instructions)
		instructions, err = mw.Process(ctx, instructions)
		if err != nil {
			return nil, fmt.Errorf("middleware %q: %w", mw.Name(), err)
		}
		p.logger.Debug("Middleware применён",
			zap.String("name", mw.Name()),
			zap.Int("instructions_before", before),
			zap.Int("instructions_after", len(instructions)))
	}
	return instructions, nil
}
