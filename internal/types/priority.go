package types

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// PriorityFee задаёт compute-budget параметры и чаевые ускорителям.
// Tip* применяется при отправке через SWQOS-сервисы, RPC* при прямой
// отправке в RPC. Чаевые выражены в SOL (единственное место с float).
type PriorityFee struct {
	TipUnitLimit uint32  `mapstructure:"tip_unit_limit"`
	TipUnitPrice uint64  `mapstructure:"tip_unit_price"`
	RPCUnitLimit uint32  `mapstructure:"rpc_unit_limit"`
	RPCUnitPrice uint64  `mapstructure:"rpc_unit_price"`
	BuyTipFee    float64 `mapstructure:"buy_tip_fee"`
	// BuyTipFees задаёт чаевые по эндпоинтам в порядке их конфигурации.
	// Недостающий хвост дополняется последним значением, см. EffectiveBuyTipFees.
	BuyTipFees    []float64 `mapstructure:"buy_tip_fees"`
	SellTipFee    float64   `mapstructure:"sell_tip_fee"`
	DataSizeLimit uint32    `mapstructure:"data_size_limit"`
}

// DefaultPriorityFee возвращает рабочие значения по умолчанию.
func DefaultPriorityFee() *PriorityFee {
	return &PriorityFee{
		TipUnitLimit:  190_000,
		TipUnitPrice:  1_000_000,
		RPCUnitLimit:  500_000,
		RPCUnitPrice:  500_000,
		BuyTipFee:     0.001,
		SellTipFee:    0.0001,
		DataSizeLimit: 256 * 1024,
	}
}

// EffectiveBuyTipFees нормализует BuyTipFees под количество эндпоинтов n:
// короткий список дополняется повтором последнего значения, пустой
// повтором BuyTipFee, длинный усекается. Нормализация, не ошибка.
func (pf *PriorityFee) EffectiveBuyTipFees(n int) []float64 {
	if n <= 0 {
		return nil
	}
	fees := make([]float64, 0, n)
	fees = append(fees, pf.BuyTipFees...)
	if len(fees) > n {
		return fees[:n]
	}
	fill := pf.BuyTipFee
	if len(fees) > 0 {
		fill = fees[len(fees)-1]
	}
	for len(fees) < n {
		fees = append(fees, fill)
	}
	return fees
}

// ComputeBudgetInstructions собирает пару (price, limit) под способ отправки,
// для покупок дополнительно ограничивая объём загружаемых аккаунтов.
func (pf *PriorityFee) ComputeBudgetInstructions(rpc bool, buy bool) []solana.Instruction {
	unitLimit, unitPrice := pf.TipUnitLimit, pf.TipUnitPrice
	if rpc {
		unitLimit, unitPrice = pf.RPCUnitLimit, pf.RPCUnitPrice
	}

	var instructions []solana.Instruction
	if buy && pf.DataSizeLimit > 0 {
		instructions = append(instructions, loadedAccountsDataSizeLimitInstruction(pf.DataSizeLimit))
	}
	if unitPrice > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(unitPrice).Build())
	}
	if unitLimit > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitLimitInstruction(unitLimit).Build())
	}
	return instructions
}

// SetLoadedAccountsDataSizeLimit (дискриминатор 4) отсутствует в используемой
// версии solana-go, поэтому инструкция собирается вручную.
func loadedAccountsDataSizeLimitInstruction(limit uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 4
	binary.LittleEndian.PutUint32(data[1:], limit)
	return solana.NewInstruction(computebudget.ProgramID, []*solana.AccountMeta{}, data)
}
