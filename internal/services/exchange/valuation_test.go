package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBalances(t *testing.T) {
	prices := map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(50000),
		"ETHUSDC": decimal.NewFromInt(2500),
	}
	lookup := func(symbol string) (decimal.Decimal, bool) {
		p, ok := prices[symbol]
		return p, ok
	}

	holdings := []holding{
		{asset: "BTC", free: decimal.RequireFromString("0.1"), locked: decimal.RequireFromString("0.02")},
		{asset: "ETH", free: decimal.NewFromInt(2)},
		{asset: "USDC", free: decimal.NewFromInt(300)},
		{asset: "DUST", free: decimal.NewFromInt(1000)},
		{asset: "USDT", free: decimal.NewFromInt(3)},
	}

	balances := buildBalances(holdings, decimal.NewFromInt(5), lookup)

	require.Len(t, balances, 3)
	assert.Equal(t, "BTC", balances[0].Asset)
	assert.True(t, balances[0].Quantity.Equal(decimal.RequireFromString("0.12")))
	assert.True(t, balances[0].USDValue.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, "ETH", balances[1].Asset)
	assert.True(t, balances[1].USDValue.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "USDC", balances[2].Asset)
	assert.True(t, balances[2].USDValue.Equal(decimal.NewFromInt(300)))
}

func TestFloorToStep(t *testing.T) {
	got := floorToStep(decimal.RequireFromString("0.123456"), decimal.RequireFromString("0.001"))
	assert.True(t, got.Equal(decimal.RequireFromString("0.123")))

	unchanged := floorToStep(decimal.RequireFromString("1.5"), decimal.Zero)
	assert.True(t, unchanged.Equal(decimal.RequireFromString("1.5")))
}
