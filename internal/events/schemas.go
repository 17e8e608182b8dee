// =============================
// File: internal/events/schemas.go
// =============================
package events

import "github.com/gagliardetto/solana-go"

// Схемы событий повторяют опубликованные интерфейсы программ. Декодер
// читает только перечисленные поля: новые версии программ дописывают
// хвостовые поля, и лишние байты в конце не считаются ошибкой.

// PumpFunTrade описывает сделку на бондинг-кривой pump.fun.
type PumpFunTrade struct {
	Mint                 solana.PublicKey
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 solana.PublicKey
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
}

// PumpFunCreate фиксирует запуск нового токена на pump.fun.
type PumpFunCreate struct {
	Name         string
	Symbol       string
	URI          string
	Mint         solana.PublicKey
	BondingCurve solana.PublicKey
	User         solana.PublicKey
}

// PumpFunComplete сообщает, что кривая заполнена и токен готов к миграции.
type PumpFunComplete struct {
	User         solana.PublicKey
	Mint         solana.PublicKey
	BondingCurve solana.PublicKey
	Timestamp    int64
}

// PumpSwapBuy описывает покупку base за quote на пуле PumpSwap.
type PumpSwapBuy struct {
	Timestamp                        int64
	BaseAmountOut                    uint64
	MaxQuoteAmountIn                 uint64
	UserBaseTokenReserves            uint64
	UserQuoteTokenReserves           uint64
	PoolBaseTokenReserves            uint64
	PoolQuoteTokenReserves           uint64
	QuoteAmountIn                    uint64
	LPFeeBasisPoints                 uint64
	LPFee                            uint64
	ProtocolFeeBasisPoints           uint64
	ProtocolFee                      uint64
	QuoteAmountInWithLPFee           uint64
	UserQuoteAmountIn                uint64
	Pool                             solana.PublicKey
	User                             solana.PublicKey
	UserBaseTokenAccount             solana.PublicKey
	UserQuoteTokenAccount            solana.PublicKey
	ProtocolFeeRecipient             solana.PublicKey
	ProtocolFeeRecipientTokenAccount solana.PublicKey
}

// PumpSwapSell описывает продажу base за quote на пуле PumpSwap.
type PumpSwapSell struct {
	Timestamp                        int64
	BaseAmountIn                     uint64
	MinQuoteAmountOut                uint64
	UserBaseTokenReserves            uint64
	UserQuoteTokenReserves           uint64
	PoolBaseTokenReserves            uint64
	PoolQuoteTokenReserves           uint64
	QuoteAmountOut                   uint64
	LPFeeBasisPoints                 uint64
	LPFee                            uint64
	ProtocolFeeBasisPoints           uint64
	ProtocolFee                      uint64
	QuoteAmountOutWithoutLPFee       uint64
	UserQuoteAmountOut               uint64
	Pool                             solana.PublicKey
	User                             solana.PublicKey
	UserBaseTokenAccount             solana.PublicKey
	UserQuoteTokenAccount            solana.PublicKey
	ProtocolFeeRecipient             solana.PublicKey
	ProtocolFeeRecipientTokenAccount solana.PublicKey
}

// PumpSwapCreatePool фиксирует создание пула PumpSwap.
type PumpSwapCreatePool struct {
	Timestamp             int64
	Index                 uint16
	Creator               solana.PublicKey
	BaseMint              solana.PublicKey
	QuoteMint             solana.PublicKey
	BaseMintDecimals      uint8
	QuoteMintDecimals     uint8
	BaseAmountIn          uint64
	QuoteAmountIn         uint64
	PoolBaseAmount        uint64
	PoolQuoteAmount       uint64
	MinimumLiquidity      uint64
	InitialLiquidity      uint64
	LPTokenAmountOut      uint64
	PoolBump              uint8
	Pool                  solana.PublicKey
	LPMint                solana.PublicKey
	UserBaseTokenAccount  solana.PublicKey
	UserQuoteTokenAccount solana.PublicKey
}

// BonkTrade описывает сделку на кривой LaunchLab. TradeDirection: 0 покупка,
// 1 продажа.
type BonkTrade struct {
	PoolState       solana.PublicKey
	TotalBaseSell   uint64
	VirtualBase     uint64
	VirtualQuote    uint64
	RealBaseBefore  uint64
	RealQuoteBefore uint64
	RealBaseAfter   uint64
	RealQuoteAfter  uint64
	AmountIn        uint64
	AmountOut       uint64
	ProtocolFee     uint64
	PlatformFee     uint64
	ShareFee        uint64
	TradeDirection  uint8
	PoolStatus      uint8
}

// BonkPoolCreate фиксирует создание пула LaunchLab. Параметры кривой и
// вестинга идут хвостом и здесь не читаются.
type BonkPoolCreate struct {
	PoolState solana.PublicKey
	Creator   solana.PublicKey
	Config    solana.PublicKey
	Decimals  uint8
	Name      string
	Symbol    string
	URI       string
}

// RaydiumCpmmSwap представляет своп на пуле Raydium CPMM.
type RaydiumCpmmSwap struct {
	PoolID            solana.PublicKey
	InputVaultBefore  uint64
	OutputVaultBefore uint64
	InputAmount       uint64
	OutputAmount      uint64
	InputTransferFee  uint64
	OutputTransferFee uint64
	BaseInput         bool
}

// RaydiumAmmV4SwapBaseIn повторяет запись ray_log свопа swap_base_in.
type RaydiumAmmV4SwapBaseIn struct {
	AmountIn   uint64
	MinimumOut uint64
	Direction  uint64
	UserSource uint64
	PoolCoin   uint64
	PoolPc     uint64
	OutAmount  uint64
}
