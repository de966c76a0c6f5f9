package exchange

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/storage/simstate"
	"go.uber.org/zap"
)

func newTestMarket() *StaticMarket {
	m := NewStaticMarket()
	m.SetPrice(domain.NewPair("BTC", "USDT"), decimal.NewFromInt(50000))
	m.SetPrice(domain.NewPair("ETH", "USDT"), decimal.NewFromInt(2500))

	return m
}

func newTestSimulator(t *testing.T, dir string) *SimulateGateway {
	t.Helper()

	store, err := simstate.NewStore(dir, "test")
	require.NoError(t, err)

	g, err := NewSimulateGateway(newTestMarket(), map[string]decimal.Decimal{
		"USDT": decimal.NewFromInt(10000),
		"BTC":  decimal.NewFromFloat(0.2),
	}, store, zap.NewNop())
	require.NoError(t, err)

	return g
}

func TestSimulateGateway_BuyWithQuoteAmount(t *testing.T) {
	g := newTestSimulator(t, t.TempDir())
	ctx := context.Background()

	res, err := g.SubmitMarketOrder(ctx, domain.OrderRequest{
		Pair:          domain.NewPair("ETH", "USDT"),
		Side:          domain.SideBuy,
		QuoteQuantity: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	assert.True(t, res.Received().Equal(decimal.NewFromFloat(0.4)))
	assert.True(t, res.Fills[0].Commission.Equal(decimal.RequireFromString("0.0004")))
	assert.Equal(t, "ETH", res.Fills[0].CommissionAsset)

	balances, err := g.Balances(ctx, decimal.Zero)
	require.NoError(t, err)

	eth, ok := balances.Find("ETH")
	require.True(t, ok)
	assert.True(t, eth.Quantity.Equal(decimal.RequireFromString("0.3996")))

	usdt, ok := balances.Find("USDT")
	require.True(t, ok)
	assert.True(t, usdt.Quantity.Equal(decimal.NewFromInt(9000)))
}

func TestSimulateGateway_SellBase(t *testing.T) {
	g := newTestSimulator(t, t.TempDir())
	ctx := context.Background()

	res, err := g.SubmitMarketOrder(ctx, domain.OrderRequest{
		Pair:     domain.NewPair("BTC", "USDT"),
		Side:     domain.SideSell,
		Quantity: decimal.NewFromFloat(0.1),
	})
	require.NoError(t, err)
	assert.True(t, res.Received().Equal(decimal.NewFromInt(5000)))
	assert.True(t, res.Fills[0].Commission.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "USDT", res.Fills[0].CommissionAsset)

	balances, err := g.Balances(ctx, decimal.Zero)
	require.NoError(t, err)
	usdt, _ := balances.Find("USDT")
	assert.True(t, usdt.Quantity.Equal(decimal.NewFromInt(14995)))
}

func TestSimulateGateway_Rejections(t *testing.T) {
	g := newTestSimulator(t, t.TempDir())
	ctx := context.Background()

	_, err := g.SubmitMarketOrder(ctx, domain.OrderRequest{
		Pair:     domain.NewPair("BTC", "USDT"),
		Side:     domain.SideSell,
		Quantity: decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOrderRejected))

	var rejected *domain.OrderRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, int64(insufficientBalanceCode), rejected.Code)

	_, err = g.SubmitMarketOrder(ctx, domain.OrderRequest{
		Pair:     domain.NewPair("BTC", "ETH"),
		Side:     domain.SideSell,
		Quantity: decimal.NewFromFloat(0.1),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOrderRejected))
}

func TestSimulateGateway_RestoresWallet(t *testing.T) {
	dir := t.TempDir()
	g := newTestSimulator(t, dir)

	_, err := g.SubmitMarketOrder(context.Background(), domain.OrderRequest{
		Pair:     domain.NewPair("BTC", "USDT"),
		Side:     domain.SideSell,
		Quantity: decimal.NewFromFloat(0.2),
	})
	require.NoError(t, err)

	restored := newTestSimulator(t, dir)
	balances, err := restored.Balances(context.Background(), decimal.Zero)
	require.NoError(t, err)

	_, hasBTC := balances.Find("BTC")
	assert.False(t, hasBTC)
	usdt, _ := balances.Find("USDT")
	assert.True(t, usdt.Quantity.Equal(decimal.NewFromInt(19990)))
}
