package pumpswap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/soltrade/internal/types"
)

const (
	testBaseReserve  uint64 = 1_000_000_000_000_000
	testQuoteReserve uint64 = 30_000_000_000
)

func TestBuyQuote(t *testing.T) {
	tests := []struct {
		name       string
		quoteIn    uint64
		creatorFee bool
		wantOut    uint64
		wantFee    uint64
	}{
		{
			name:    "One SOL, 25 bps",
			quoteIn: 1_000_000_000,
			wantOut: 32_180_209_158_434,
			wantFee: 2_493_766,
		},
		{
			name:       "One SOL with creator fee",
			quoteIn:    1_000_000_000,
			creatorFee: true,
			wantOut:    32_164_683_175_349,
			wantFee:    2_991_027,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := BuyQuote(tt.quoteIn, testBaseReserve, testQuoteReserve, tt.creatorFee)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, quote.AmountOut)
			assert.Equal(t, tt.wantFee, quote.Fee)
		})
	}
}

func TestBuyQuoteFeeAlwaysCharged(t *testing.T) {
	// Наивный constant-product без комиссии даёт строго больше.
	quote, err := BuyQuote(1_000_000_000, testBaseReserve, testQuoteReserve, false)
	require.NoError(t, err)
	assert.Less(t, quote.AmountOut, uint64(32_258_064_516_129))
	assert.NotZero(t, quote.Fee)
}

func TestSellQuote(t *testing.T) {
	quote, err := SellQuote(30_000_000_000_000, testBaseReserve, testQuoteReserve, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(871_601_940), quote.AmountOut)
	assert.Equal(t, uint64(2_184_467), quote.Fee)

	withCreator, err := SellQuote(30_000_000_000_000, testBaseReserve, testQuoteReserve, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(871_165_046), withCreator.AmountOut)
	assert.Less(t, withCreator.AmountOut, quote.AmountOut)
}

func TestQuoteInvalidInput(t *testing.T) {
	_, err := BuyQuote(0, testBaseReserve, testQuoteReserve, false)
	assert.ErrorIs(t, err, types.ErrInvalidAmount)

	_, err = SellQuote(0, testBaseReserve, testQuoteReserve, false)
	assert.ErrorIs(t, err, types.ErrInvalidAmount)

	// Одна base-единица не окупает даже округление комиссии.
	_, err = SellQuote(1, testBaseReserve, testQuoteReserve, false)
	assert.ErrorIs(t, err, types.ErrAmountTooSmall)
}

func TestQuoteZeroReserves(t *testing.T) {
	_, err := BuyQuote(1_000_000_000, 0, testQuoteReserve, false)
	assert.ErrorIs(t, err, types.ErrInvalidPoolState)

	_, err = BuyQuote(1_000_000_000, testBaseReserve, 0, false)
	assert.ErrorIs(t, err, types.ErrInvalidPoolState)

	_, err = SellQuote(1_000_000, 0, 0, false)
	assert.ErrorIs(t, err, types.ErrInvalidPoolState)
}
