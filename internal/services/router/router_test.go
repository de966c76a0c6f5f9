package router

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	gatewaymock "github.com/vadiminshakov/folio/mocks/gateway"
)

func spotPairs() domain.PairSet {
	return domain.NewPairSet(
		domain.NewPair("BTC", "USDT"),
		domain.NewPair("ETH", "USDT"),
		domain.NewPair("ETH", "BTC"),
		domain.NewPair("SOL", "USDC"),
		domain.NewPair("BTC", "USDC"),
		domain.NewPair("USDC", "USDT"),
	)
}

func orderMatching(symbol string, side domain.Side, qty, quoteQty string) interface{} {
	return mock.MatchedBy(func(req domain.OrderRequest) bool {
		if req.Pair.Symbol() != symbol || req.Side != side {
			return false
		}
		if qty != "" && !req.Quantity.Equal(decimal.RequireFromString(qty)) {
			return false
		}
		if quoteQty != "" && !req.QuoteQuantity.Equal(decimal.RequireFromString(quoteQty)) {
			return false
		}
		return true
	})
}

func TestFindPath(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		expected string
		pathType domain.PathType
		sides    []domain.Side
	}{
		{name: "direct sell", from: "BTC", to: "USDT", expected: "BTC->USDT", pathType: domain.PathDirect, sides: []domain.Side{domain.SideSell}},
		{name: "direct buy", from: "USDT", to: "ETH", expected: "USDT->ETH", pathType: domain.PathDirect, sides: []domain.Side{domain.SideBuy}},
		{name: "cross pair buy", from: "BTC", to: "ETH", expected: "BTC->ETH", pathType: domain.PathDirect, sides: []domain.Side{domain.SideBuy}},
		{name: "lower case input", from: "eth", to: "btc", expected: "ETH->BTC", pathType: domain.PathDirect, sides: []domain.Side{domain.SideSell}},
		{name: "via usdc", from: "SOL", to: "BTC", expected: "SOL->USDC->BTC", pathType: domain.PathTriangular, sides: []domain.Side{domain.SideSell, domain.SideBuy}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := gatewaymock.NewGateway(t)
			gw.On("TradeablePairs", mock.Anything).Return(spotPairs(), nil)

			path, err := New(gw, nil).FindPath(context.Background(), tt.from, tt.to)
			require.NoError(t, err)
			require.NotNil(t, path)

			assert.Equal(t, tt.expected, path.String())
			assert.Equal(t, tt.pathType, path.Type)
			require.Len(t, path.Legs, len(tt.sides))
			for i, side := range tt.sides {
				assert.Equal(t, side, path.Legs[i].Side)
			}
		})
	}
}

func TestFindPath_IntermediatePreference(t *testing.T) {
	pairs := domain.NewPairSet(
		domain.NewPair("ADA", "USDT"),
		domain.NewPair("ADA", "BTC"),
		domain.NewPair("DOT", "USDT"),
		domain.NewPair("DOT", "BTC"),
	)

	path := findPath(pairs, "ADA", "DOT", DefaultIntermediates)
	require.NotNil(t, path)
	assert.Equal(t, "USDT", path.Intermediate)

	path = findPath(pairs, "ADA", "DOT", []string{"BTC", "USDT"})
	require.NotNil(t, path)
	assert.Equal(t, "BTC", path.Intermediate)
}

func TestFindPath_NoRoute(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("TradeablePairs", mock.Anything).Return(domain.NewPairSet(domain.NewPair("BTC", "USDT")), nil)

	r := New(gw, nil)

	path, err := r.FindPath(context.Background(), "XMR", "BTC")
	require.NoError(t, err)
	assert.Nil(t, path)

	path, err = r.FindPath(context.Background(), "BTC", "btc")
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindPath_SkipsIntermediateEqualToEndpoint(t *testing.T) {
	pairs := domain.NewPairSet(domain.NewPair("BTC", "USDC"))

	assert.Nil(t, findPath(pairs, "USDT", "BTC", DefaultIntermediates))
}

func TestExecute_Direct(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("TradeablePairs", mock.Anything).Return(spotPairs(), nil)
	gw.On("SubmitMarketOrder", mock.Anything, orderMatching("BTCUSDT", domain.SideSell, "0.1", "")).
		Return(&domain.OrderResult{
			OrderID: "1",
			Pair:    domain.NewPair("BTC", "USDT"),
			Side:    domain.SideSell,
			Fills: []domain.Fill{
				{Quantity: decimal.RequireFromString("0.1"), Price: decimal.NewFromInt(50000), Commission: decimal.NewFromInt(5), CommissionAsset: "USDT"},
			},
		}, nil).Once()

	res, err := New(gw, nil).Execute(context.Background(), "BTC", "USDT", decimal.RequireFromString("0.1"))
	require.NoError(t, err)

	assert.Equal(t, domain.PathDirect, res.Path.Type)
	assert.True(t, res.ReceivedAmount.Equal(decimal.NewFromInt(5000)))
	assert.True(t, res.Fees["USDT"].Equal(decimal.NewFromInt(5)))
	assert.True(t, res.TotalFeeUSD.Equal(decimal.NewFromInt(5)))
	assert.Len(t, res.Orders, 1)
}

func TestExecute_TriangularSpendsMarginOfFirstLeg(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("TradeablePairs", mock.Anything).Return(domain.NewPairSet(
		domain.NewPair("BTC", "USDT"),
		domain.NewPair("SOL", "USDT"),
	), nil)

	gw.On("SubmitMarketOrder", mock.Anything, orderMatching("BTCUSDT", domain.SideSell, "0.02", "")).
		Return(&domain.OrderResult{
			Pair: domain.NewPair("BTC", "USDT"),
			Side: domain.SideSell,
			Fills: []domain.Fill{
				{Quantity: decimal.RequireFromString("0.02"), Price: decimal.NewFromInt(50000), Commission: decimal.NewFromInt(1), CommissionAsset: "USDT"},
			},
		}, nil).Once()
	// 1000 USDT received, 999 spent on the second leg
	gw.On("SubmitMarketOrder", mock.Anything, orderMatching("SOLUSDT", domain.SideBuy, "", "999")).
		Return(&domain.OrderResult{
			Pair: domain.NewPair("SOL", "USDT"),
			Side: domain.SideBuy,
			Fills: []domain.Fill{
				{Quantity: decimal.RequireFromString("9.99"), Price: decimal.NewFromInt(100), Commission: decimal.RequireFromString("0.01"), CommissionAsset: "SOL"},
			},
		}, nil).Once()
	gw.On("Price", mock.Anything, "SOLUSDT").Return(decimal.NewFromInt(100), nil).Once()

	res, err := New(gw, nil, WithLegDelay(time.Millisecond)).
		Execute(context.Background(), "BTC", "SOL", decimal.RequireFromString("0.02"))
	require.NoError(t, err)

	assert.Equal(t, domain.PathTriangular, res.Path.Type)
	assert.Equal(t, "BTC->USDT->SOL", res.Path.String())
	assert.True(t, res.ReceivedAmount.Equal(decimal.RequireFromString("9.99")))
	assert.Len(t, res.Orders, 2)
	// 1 USDT + 0.01 SOL * 100
	assert.True(t, res.TotalFeeUSD.Equal(decimal.NewFromInt(2)), res.TotalFeeUSD.String())
}

func TestExecute_Rejected(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("TradeablePairs", mock.Anything).Return(spotPairs(), nil)
	gw.On("SubmitMarketOrder", mock.Anything, mock.Anything).
		Return(nil, &domain.OrderRejectedError{Symbol: "ETHBTC", Code: -2010, Reason: "insufficient balance"}).Once()

	_, err := New(gw, nil).Execute(context.Background(), "BTC", "ETH", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)

	var rejected *domain.OrderRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, int64(-2010), rejected.Code)
}

func TestExecute_NoPath(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("TradeablePairs", mock.Anything).Return(spotPairs(), nil)

	_, err := New(gw, nil).Execute(context.Background(), "XMR", "ETH", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrNoConversionPath)
}

func TestExecute_InvalidInput(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	r := New(gw, nil)

	_, err := r.Execute(context.Background(), "BTC", "BTC", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrSameAsset)

	_, err = r.Execute(context.Background(), "BTC", "ETH", decimal.Zero)
	assert.Error(t, err)
}

func TestExecute_CancelledBetweenLegs(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("TradeablePairs", mock.Anything).Return(domain.NewPairSet(
		domain.NewPair("BTC", "USDT"),
		domain.NewPair("SOL", "USDT"),
	), nil)

	ctx, cancel := context.WithCancel(context.Background())
	gw.On("SubmitMarketOrder", mock.Anything, orderMatching("BTCUSDT", domain.SideSell, "", "")).
		Run(func(mock.Arguments) { cancel() }).
		Return(&domain.OrderResult{
			Pair:  domain.NewPair("BTC", "USDT"),
			Side:  domain.SideSell,
			Fills: []domain.Fill{{Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)}},
		}, nil).Once()

	_, err := New(gw, nil, WithLegDelay(time.Second)).Execute(ctx, "BTC", "SOL", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuote(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("TradeablePairs", mock.Anything).Return(spotPairs(), nil)
	gw.On("Price", mock.Anything, "BTCUSDT").Return(decimal.NewFromInt(50000), nil)
	gw.On("Price", mock.Anything, "ETHBTC").Return(decimal.RequireFromString("0.05"), nil)

	r := New(gw, nil)

	out, err := r.Quote(context.Background(), "BTC", "USDT", decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(100000)))

	out, err = r.Quote(context.Background(), "BTC", "ETH", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(20)))

	out, err = r.Quote(context.Background(), "USDT", "USDT", decimal.NewFromInt(7))
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(7)))
}

func TestQuote_TriangularChainsLegPrices(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("TradeablePairs", mock.Anything).Return(domain.NewPairSet(
		domain.NewPair("BTC", "USDT"),
		domain.NewPair("ETH", "USDT"),
	), nil)
	gw.On("Price", mock.Anything, "BTCUSDT").Return(decimal.NewFromInt(50000), nil).Once()
	gw.On("Price", mock.Anything, "ETHUSDT").Return(decimal.NewFromInt(2500), nil).Once()

	out, err := New(gw, nil).Quote(context.Background(), "BTC", "ETH", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(20)), "got %s", out)
}

func TestFeeValuer(t *testing.T) {
	gw := gatewaymock.NewGateway(t)
	gw.On("Price", mock.Anything, "BNBUSDT").Return(decimal.NewFromInt(300), nil)
	gw.On("Price", mock.Anything, "XYZUSDT").Return(decimal.Zero, domain.ErrPriceUnavailable)
	gw.On("Price", mock.Anything, "USDTXYZ").Return(decimal.NewFromInt(4), nil)
	gw.On("Price", mock.Anything, "FOOUSDT").Return(decimal.Zero, domain.ErrPriceUnavailable)
	gw.On("Price", mock.Anything, "USDTFOO").Return(decimal.Zero, domain.ErrPriceUnavailable)

	fv := NewFeeValuer(gw, "USDT", nil)
	ctx := context.Background()

	assert.True(t, fv.Value(ctx, "USDC", decimal.NewFromInt(3)).Equal(decimal.NewFromInt(3)))
	assert.True(t, fv.Value(ctx, "BNB", decimal.RequireFromString("0.01")).Equal(decimal.NewFromInt(3)))
	assert.True(t, fv.Value(ctx, "XYZ", decimal.NewFromInt(8)).Equal(decimal.NewFromInt(2)))
	assert.True(t, fv.Value(ctx, "FOO", decimal.NewFromInt(8)).IsZero())

	total := fv.Total(ctx, map[string]decimal.Decimal{
		"USDT": decimal.NewFromInt(1),
		"BNB":  decimal.RequireFromString("0.01"),
	})
	assert.True(t, total.Equal(decimal.NewFromInt(4)))
}
