package pumpswap

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/spl"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

// normalPool: WSOL на quote-стороне, как у пулов после миграции с Pump.fun.
func normalPool(mint solana.PublicKey) *Params {
	return &Params{
		Pool:                  solana.NewWallet().PublicKey(),
		BaseMint:              mint,
		QuoteMint:             spl.WSOLMint,
		PoolBaseTokenAccount:  solana.NewWallet().PublicKey(),
		PoolQuoteTokenAccount: solana.NewWallet().PublicKey(),
		BaseReserve:           testBaseReserve,
		QuoteReserve:          testQuoteReserve,
	}
}

// flippedPool: WSOL на base-стороне.
func flippedPool(mint solana.PublicKey) *Params {
	p := normalPool(mint)
	p.BaseMint = spl.WSOLMint
	p.QuoteMint = mint
	return p
}

func TestBuildBuyNormalPool(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := normalPool(mint)

	d := New(zap.NewNop())
	req := &types.TradeRequest{
		Protocol:    types.ProtocolPumpSwap,
		Side:        types.SideBuy,
		Mint:        mint,
		AmountIn:    1_000_000_000,
		SlippageBps: 300,
		Params:      p,
	}

	instructions, err := d.BuildBuy(payer, req)
	require.NoError(t, err)
	require.Len(t, instructions, 2, "create ATA + swap")
	assert.Equal(t, spl.AssociatedTokenProgramID, instructions[0].ProgramID())

	swap := instructions[1]
	assert.Equal(t, ProgramID, swap.ProgramID())

	data, err := swap.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	assert.Equal(t, buyDiscriminator, data[0:8])
	assert.Equal(t, uint64(32_180_209_158_434), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(1_030_000_000), binary.LittleEndian.Uint64(data[16:24]))

	userBase, err := spl.AssociatedTokenAddress(payer, p.BaseMint, solana.TokenProgramID)
	require.NoError(t, err)
	userQuote, err := spl.AssociatedTokenAddress(payer, p.QuoteMint, solana.TokenProgramID)
	require.NoError(t, err)
	feeATA, err := spl.AssociatedTokenAddress(FeeRecipient, p.QuoteMint, solana.TokenProgramID)
	require.NoError(t, err)
	vaultAuthority, vaultATA, err := DeriveCoinCreatorVault(solana.PublicKey{}, p.QuoteMint, solana.TokenProgramID)
	require.NoError(t, err)
	userVolume, err := DeriveUserVolumeAccumulator(payer)
	require.NoError(t, err)

	accounts := swap.Accounts()
	// 19 фиксированных + пара аккумуляторов объёма + fee config/program.
	require.Len(t, accounts, 23)
	want := []solana.PublicKey{
		p.Pool,
		payer,
		GlobalAccount,
		p.BaseMint,
		p.QuoteMint,
		userBase,
		userQuote,
		p.PoolBaseTokenAccount,
		p.PoolQuoteTokenAccount,
		FeeRecipient,
		feeATA,
		solana.TokenProgramID,
		solana.TokenProgramID,
		solana.SystemProgramID,
		spl.AssociatedTokenProgramID,
		EventAuthority,
		ProgramID,
		vaultATA,
		vaultAuthority,
		GlobalVolumeAccumulator,
		userVolume,
		FeeConfig,
		FeeProgramID,
	}
	for i, key := range want {
		assert.Equal(t, key, accounts[i].PublicKey, "account #%d", i)
	}

	assert.False(t, accounts[0].IsWritable)
	assert.True(t, accounts[1].IsSigner)
	assert.True(t, accounts[1].IsWritable)
	assert.True(t, accounts[5].IsWritable)
	assert.True(t, accounts[7].IsWritable)
	assert.True(t, accounts[10].IsWritable)
	assert.True(t, accounts[17].IsWritable)
	assert.False(t, accounts[18].IsWritable)
	assert.True(t, accounts[19].IsWritable)
	assert.True(t, accounts[20].IsWritable)
}

func TestBuildBuyAutoWrap(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := normalPool(mint)
	p.AutoWrapSOL = true

	d := New(zap.NewNop())
	req := &types.TradeRequest{
		Side:        types.SideBuy,
		Mint:        mint,
		AmountIn:    1_000_000_000,
		SlippageBps: 300,
		Params:      p,
	}

	instructions, err := d.BuildBuy(payer, req)
	require.NoError(t, err)
	// wrap (create + transfer + sync) + create ATA + swap + close WSOL.
	require.Len(t, instructions, 6)

	transfer := instructions[1]
	assert.Equal(t, solana.SystemProgramID, transfer.ProgramID())
	data, err := transfer.Data()
	require.NoError(t, err)
	// Оборачиваем максимум с учётом slippage.
	assert.Equal(t, uint64(1_030_000_000), binary.LittleEndian.Uint64(data[4:12]))

	last := instructions[5]
	assert.Equal(t, solana.TokenProgramID, last.ProgramID())
	data, err = last.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, data)
}

func TestBuildSellNormalPool(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := normalPool(mint)

	d := New(zap.NewNop())
	req := &types.TradeRequest{
		Side:        types.SideSell,
		Mint:        mint,
		AmountIn:    30_000_000_000_000,
		SlippageBps: 300,
		Params:      p,
	}

	instructions, err := d.BuildSell(payer, req)
	require.NoError(t, err)
	require.Len(t, instructions, 2, "create WSOL ATA + swap")
	assert.Equal(t, spl.AssociatedTokenProgramID, instructions[0].ProgramID())

	swap := instructions[1]
	data, err := swap.Data()
	require.NoError(t, err)
	assert.Equal(t, sellDiscriminator, data[0:8])
	assert.Equal(t, uint64(30_000_000_000_000), binary.LittleEndian.Uint64(data[8:16]))
	// min_quote_out: номинальные 871_601_940 минус 3%.
	assert.Equal(t, uint64(845_453_882), binary.LittleEndian.Uint64(data[16:24]))

	// on-chain sell идёт без аккумуляторов объёма.
	require.Len(t, swap.Accounts(), 21)
	assert.Equal(t, FeeConfig, swap.Accounts()[19].PublicKey)
	assert.Equal(t, FeeProgramID, swap.Accounts()[20].PublicKey)
}

func TestBuildFlippedPool(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := flippedPool(mint)

	d := New(zap.NewNop())

	// Покупка токена при WSOL-базе превращается в on-chain sell.
	buy, err := d.BuildBuy(payer, &types.TradeRequest{
		Side:        types.SideBuy,
		Mint:        mint,
		AmountIn:    30_000_000_000_000,
		SlippageBps: 300,
		Params:      p,
	})
	require.NoError(t, err)
	swap := buy[len(buy)-1]
	data, err := swap.Data()
	require.NoError(t, err)
	assert.Equal(t, sellDiscriminator, data[0:8])
	assert.Len(t, swap.Accounts(), 21)

	// Продажа токена превращается в on-chain buy с аккумуляторами объёма.
	sell, err := d.BuildSell(payer, &types.TradeRequest{
		Side:        types.SideSell,
		Mint:        mint,
		AmountIn:    1_000_000_000,
		SlippageBps: 300,
		Params:      p,
	})
	require.NoError(t, err)
	swap = sell[1]
	data, err = swap.Data()
	require.NoError(t, err)
	assert.Equal(t, buyDiscriminator, data[0:8])
	assert.Len(t, swap.Accounts(), 23)
}

func TestParamsValidation(t *testing.T) {
	d := New(zap.NewNop())
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	_, err := d.Quote(&types.TradeRequest{Side: types.SideBuy, AmountIn: 1})
	assert.ErrorIs(t, err, types.ErrInvalidParams)

	// Пул без WSOL-стороны не поддерживается.
	p := normalPool(mint)
	p.QuoteMint = solana.NewWallet().PublicKey()
	_, err = d.BuildBuy(payer, &types.TradeRequest{
		Side:     types.SideBuy,
		Mint:     mint,
		AmountIn: 1_000_000_000,
		Params:   p,
	})
	assert.ErrorIs(t, err, types.ErrInvalidParams)
}
