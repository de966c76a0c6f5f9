//go:build integration

package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Public endpoints only: go test -tags=integration ./internal/services/exchange/...
func TestBinanceGateway_PublicMarketData_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	g := NewBinanceGateway(binance.NewClient("", ""), zap.NewNop(), time.Minute)
	ctx := context.Background()

	pairs, err := g.TradeablePairs(ctx)
	require.NoError(t, err)
	_, ok := pairs.Lookup("BTC", "USDT")
	assert.True(t, ok, "BTCUSDT should be tradeable")

	price, err := g.Price(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, price.GreaterThan(decimal.Zero))
	t.Logf("BTCUSDT price: %s", price)
}
