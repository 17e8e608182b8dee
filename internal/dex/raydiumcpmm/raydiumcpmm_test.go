package raydiumcpmm

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

func TestSwap(t *testing.T) {
	// WSOL на base-стороне: 30 SOL против 1 млрд токенов.
	quote, err := Swap(1_000_000_000, 30_000_000_000, 1_000_000_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(32_180_014_517_299), quote.AmountOut)
	assert.Equal(t, uint64(2_500_000), quote.Fee)

	// Обратное направление.
	quote, err = Swap(30_000_000_000_000, 1_000_000_000_000_000, 30_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(871_665_412), quote.AmountOut)
	assert.Equal(t, uint64(75_000_000_000), quote.Fee)
}

func TestSwapFeeAlwaysCharged(t *testing.T) {
	quote, err := Swap(1_000_000_000, 30_000_000_000, 1_000_000_000_000_000)
	require.NoError(t, err)
	assert.Less(t, quote.AmountOut, uint64(32_258_064_516_129))
	assert.NotZero(t, quote.Fee)
}

func TestSwapInvalidInput(t *testing.T) {
	_, err := Swap(0, 30_000_000_000, 1_000_000_000_000_000)
	assert.ErrorIs(t, err, types.ErrInvalidAmount)

	// Вход целиком уходит в округление комиссии.
	_, err = Swap(1, 30_000_000_000, 1_000_000_000_000_000)
	assert.ErrorIs(t, err, types.ErrAmountTooSmall)

	_, err = Swap(1_000_000_000, 0, 1_000_000_000_000_000)
	assert.ErrorIs(t, err, types.ErrInvalidPoolState)

	_, err = Swap(1_000_000_000, 30_000_000_000, 0)
	assert.ErrorIs(t, err, types.ErrInvalidPoolState)
}

func wsolBasePool(mint solana.PublicKey) *Params {
	return &Params{
		BaseMint:     spl.WSOLMint,
		QuoteMint:    mint,
		BaseReserve:  30_000_000_000,
		QuoteReserve: 1_000_000_000_000_000,
	}
}

func TestBuildBuyInstructions(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := wsolBasePool(mint)

	d := New(zap.NewNop())
	req := &types.TradeRequest{
		Protocol:    types.ProtocolRaydiumCpmm,
		Side:        types.SideBuy,
		Mint:        mint,
		AmountIn:    1_000_000_000,
		SlippageBps: 300,
		Params:      p,
	}

	instructions, err := d.BuildBuy(payer, req)
	require.NoError(t, err)
	require.Len(t, instructions, 2, "create ATA + swap")

	swap := instructions[1]
	assert.Equal(t, ProgramID, swap.ProgramID())

	data, err := swap.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	assert.Equal(t, swapBaseInputDiscriminator, data[0:8])
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(data[8:16]))
	// minimum_amount_out: номинальные 32_180_014_517_299 минус 3%.
	assert.Equal(t, uint64(31_214_614_081_781), binary.LittleEndian.Uint64(data[16:24]))

	pool, err := DerivePool(DefaultAmmConfig, p.BaseMint, p.QuoteMint)
	require.NoError(t, err)
	wsolVault, err := DeriveVault(pool, spl.WSOLMint)
	require.NoError(t, err)
	mintVault, err := DeriveVault(pool, mint)
	require.NoError(t, err)
	observation, err := DeriveObservationState(pool)
	require.NoError(t, err)
	wsolATA, err := spl.AssociatedTokenAddress(payer, spl.WSOLMint, solana.TokenProgramID)
	require.NoError(t, err)
	mintATA, err := spl.AssociatedTokenAddress(payer, mint, solana.TokenProgramID)
	require.NoError(t, err)

	accounts := swap.Accounts()
	require.Len(t, accounts, 13)
	want := []solana.PublicKey{
		payer,
		Authority,
		DefaultAmmConfig,
		pool,
		wsolATA,
		mintATA,
		wsolVault,
		mintVault,
		solana.TokenProgramID,
		solana.TokenProgramID,
		spl.WSOLMint,
		mint,
		observation,
	}
	for i, key := range want {
		assert.Equal(t, key, accounts[i].PublicKey, "account #%d", i)
	}

	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[3].IsWritable)
	assert.True(t, accounts[4].IsWritable)
	assert.False(t, accounts[8].IsWritable)
	assert.True(t, accounts[12].IsWritable)
}

func TestBuildSellFlipsDirection(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := wsolBasePool(mint)

	d := New(zap.NewNop())
	instructions, err := d.BuildSell(payer, &types.TradeRequest{
		Side:        types.SideSell,
		Mint:        mint,
		AmountIn:    30_000_000_000_000,
		SlippageBps: 300,
		Params:      p,
	})
	require.NoError(t, err)
	require.Len(t, instructions, 1)

	swap := instructions[0]
	data, err := swap.Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(30_000_000_000_000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(845_515_450), binary.LittleEndian.Uint64(data[16:24]))

	mintATA, err := spl.AssociatedTokenAddress(payer, mint, solana.TokenProgramID)
	require.NoError(t, err)
	wsolATA, err := spl.AssociatedTokenAddress(payer, spl.WSOLMint, solana.TokenProgramID)
	require.NoError(t, err)

	// Входом служит токен, выходом WSOL.
	accounts := swap.Accounts()
	assert.Equal(t, mintATA, accounts[4].PublicKey)
	assert.Equal(t, wsolATA, accounts[5].PublicKey)
	assert.Equal(t, mint, accounts[10].PublicKey)
	assert.Equal(t, spl.WSOLMint, accounts[11].PublicKey)
}

func TestBuildBuyAutoWrap(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := wsolBasePool(mint)
	p.AutoWrapSOL = true

	d := New(zap.NewNop())
	instructions, err := d.BuildBuy(payer, &types.TradeRequest{
		Side:        types.SideBuy,
		Mint:        mint,
		AmountIn:    1_000_000_000,
		SlippageBps: 300,
		Params:      p,
	})
	require.NoError(t, err)
	// wrap (3) + create ATA + swap + close.
	require.Len(t, instructions, 6)
}

func TestExplicitAccountsOverrideDerivation(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := wsolBasePool(mint)
	p.PoolState = solana.NewWallet().PublicKey()
	p.BaseVault = solana.NewWallet().PublicKey()
	p.QuoteVault = solana.NewWallet().PublicKey()
	p.ObservationState = solana.NewWallet().PublicKey()

	d := New(zap.NewNop())
	instructions, err := d.BuildBuy(payer, &types.TradeRequest{
		Side:        types.SideBuy,
		Mint:        mint,
		AmountIn:    1_000_000_000,
		SlippageBps: 300,
		Params:      p,
	})
	require.NoError(t, err)

	accounts := instructions[1].Accounts()
	assert.Equal(t, p.PoolState, accounts[3].PublicKey)
	// WSOL на base-стороне: input vault = BaseVault.
	assert.Equal(t, p.BaseVault, accounts[6].PublicKey)
	assert.Equal(t, p.QuoteVault, accounts[7].PublicKey)
	assert.Equal(t, p.ObservationState, accounts[12].PublicKey)
}

func TestParamsValidation(t *testing.T) {
	d := New(zap.NewNop())
	mint := solana.NewWallet().PublicKey()

	_, err := d.Quote(&types.TradeRequest{Side: types.SideBuy, AmountIn: 1})
	assert.ErrorIs(t, err, types.ErrInvalidParams)

	_, err = d.Quote(&types.TradeRequest{
		Side:     types.SideBuy,
		Mint:     mint,
		AmountIn: 1,
		Params: &Params{
			BaseMint:  solana.NewWallet().PublicKey(),
			QuoteMint: mint,
		},
	})
	assert.ErrorIs(t, err, types.ErrInvalidParams)
}
