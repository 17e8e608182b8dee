// =============================
// File: internal/middleware/builtin.go
// =============================
package middleware

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/spl"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

// ComputeBudget вставляет compute-budget инструкции в начало набора.
type ComputeBudget struct {
	fee *types.PriorityFee
	rpc bool
	buy bool
}

func NewComputeBudget(fee *types.PriorityFee, rpc, buy bool) *ComputeBudget {
	if fee == nil {
		fee = types.DefaultPriorityFee()
	}
	return &ComputeBudget{fee: fee, rpc: rpc, buy: buy}
}

func (m *ComputeBudget) Name() string { return "compute_budget" }

func (m *ComputeBudget) Process(_ context.Context, instructions []solana.Instruction) ([]solana.Instruction, error) {
	return append(m.fee.ComputeBudgetInstructions(m.rpc, m.buy), instructions...), nil
}

// Tip добавляет перевод чаевых в конец набора. Нулевая сумма ничего не
// добавляет.
type Tip struct {
	from     solana.PublicKey
	to       solana.PublicKey
	lamports uint64
}

func NewTip(from, to solana.PublicKey, lamports uint64) *Tip {
	return &Tip{from: from, to: to, lamports: lamports}
}

func (m *Tip) Name() string { return "tip" }

func (m *Tip) Process(_ context.Context, instructions []solana.Instruction) ([]solana.Instruction, error) {
	if m.lamports == 0 {
		return instructions, nil
	}
	return append(instructions, spl.SystemTransferInstruction(m.from, m.to, m.lamports)), nil
}

// Logging пишет состав набора в debug-лог и возвращает его без изменений.
type Logging struct {
	logger *zap.Logger
}

func NewLogging(logger *zap.Logger) *Logging {
	return &Logging{logger: logger.Named("instructions")}
}

func (m *Logging) Name() string { return "logging" }

func (m *Logging) Process(_ context.Context, instructions []solana.Instruction) ([]solana.Instruction, error) {
	programs := make([]string, len(instructions))
	for i, instruction := range instructions {
		programs[i] = instruction.ProgramID().String()
	}
	m.logger.Debug("Набор инструкций",
		zap.Int("count", len(instructions)),
		zap.Strings("programs", programs))
	return instructions, nil
}
