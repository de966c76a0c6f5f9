package rebalancing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/storage/conversions"
	converterMock "github.com/vadiminshakov/folio/mocks/converter"
)

func decimalEq(expected string) interface{} {
	want := decimal.RequireFromString(expected)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(want)
	})
}

func conversionResult(from, to, received, fee string, pathType domain.PathType) *domain.ConversionResult {
	leg := domain.DirectPath{Pair: domain.NewPair(from, to), Side: domain.SideSell}
	path := domain.NewDirectPath(leg)
	if pathType == domain.PathTriangular {
		path = domain.NewTriangularPath("USDT",
			domain.DirectPath{Pair: domain.NewPair(from, "USDT"), Side: domain.SideSell},
			domain.DirectPath{Pair: domain.NewPair(to, "USDT"), Side: domain.SideBuy},
		)
	}

	return &domain.ConversionResult{
		From:           from,
		To:             to,
		Path:           path,
		ReceivedAmount: decimal.RequireFromString(received),
		TotalFeeUSD:    decimal.RequireFromString(fee),
	}
}

func newHistory(t *testing.T) *conversions.WALStore {
	t.Helper()

	store, err := conversions.NewWALStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestReferenceAsset(t *testing.T) {
	assert.Equal(t, "USDT", ReferenceAsset(nil))
	assert.Equal(t, "USDT", ReferenceAsset(domain.Balances{{Asset: "BTC", USDValue: usd(100)}}))
	assert.Equal(t, "USDC", ReferenceAsset(domain.Balances{
		{Asset: "USDT", USDValue: usd(10)},
		{Asset: "USDC", USDValue: usd(500)},
		{Asset: "BTC", USDValue: usd(10000)},
	}))
}

func TestExecutor_Execute(t *testing.T) {
	balances := domain.Balances{
		{Asset: "BTC", Quantity: pct("0.2"), USDValue: usd(10000)},
		{Asset: "USDT", Quantity: usd(2000), USDValue: usd(2000)},
	}
	plan := &domain.Plan{Actions: []domain.RebalanceAction{
		{Asset: "BTC", Side: domain.SideSell, USDAmount: usd(3000)},
		{Asset: "ETH", Side: domain.SideBuy, USDAmount: usd(2500)},
		{Asset: "USDT", Side: domain.SideBuy, USDAmount: usd(500)},
	}}

	router := converterMock.NewConverter(t)
	// 3000 USD at 50000 per BTC
	router.On("Execute", mock.Anything, "BTC", "USDT", decimalEq("0.06")).
		Return(conversionResult("BTC", "USDT", "3000", "3", domain.PathDirect), nil).Once()
	router.On("Execute", mock.Anything, "USDT", "ETH", decimalEq("2500")).
		Return(conversionResult("USDT", "ETH", "1", "2.5", domain.PathDirect), nil).Once()

	history := newHistory(t)
	report, err := NewExecutor(router, history, 0, nil).Execute(context.Background(), plan, balances)
	require.NoError(t, err)

	assert.Equal(t, "USDT", report.ReferenceAsset)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 3, report.Succeeded())
	assert.True(t, report.Results[2].Skipped)
	assert.True(t, report.Results[2].FeesUSD.IsZero())
	assert.Equal(t, "BTC->USDT", report.Results[0].Path)
	assert.True(t, report.TotalFeesUSD.Equal(pct("5.5")))

	records, err := history.List(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, domain.ConversionSuccess, r.Status)
		assert.NotEmpty(t, r.ID)
	}
}

func TestExecutor_FailuresAreIsolated(t *testing.T) {
	balances := domain.Balances{
		{Asset: "ETH", Quantity: pct("2"), USDValue: usd(5000)},
		{Asset: "USDC", Quantity: usd(5000), USDValue: usd(5000)},
	}
	plan := &domain.Plan{Actions: []domain.RebalanceAction{
		{Asset: "BTC", Side: domain.SideSell, USDAmount: usd(1000)},
		{Asset: "ETH", Side: domain.SideSell, USDAmount: usd(1000)},
		{Asset: "SOL", Side: domain.SideBuy, USDAmount: usd(800)},
	}}

	router := converterMock.NewConverter(t)
	router.On("Execute", mock.Anything, "ETH", "USDC", decimalEq("0.4")).
		Return(nil, &domain.OrderRejectedError{Symbol: "ETHUSDC", Code: -2010, Reason: "insufficient balance"}).Once()
	router.On("Execute", mock.Anything, "USDC", "SOL", decimalEq("800")).
		Return(conversionResult("USDC", "SOL", "4", "0.8", domain.PathTriangular), nil).Once()

	history := newHistory(t)
	report, err := NewExecutor(router, history, 0, nil).Execute(context.Background(), plan, balances)
	require.NoError(t, err)

	assert.Equal(t, "USDC", report.ReferenceAsset)
	require.Len(t, report.Results, 3)

	assert.False(t, report.Results[0].Success)
	assert.Equal(t, "Asset BTC not found in portfolio", report.Results[0].Message)

	assert.False(t, report.Results[1].Success)
	assert.Contains(t, report.Results[1].Message, "insufficient balance")

	assert.True(t, report.Results[2].Success)
	assert.Equal(t, "USDC->USDT->SOL", report.Results[2].Path)
	assert.True(t, report.TotalFeesUSD.Equal(pct("0.8")))

	records, err := history.List(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// newest first
	assert.Equal(t, domain.ConversionSuccess, records[0].Status)
	assert.Equal(t, domain.PathTriangular, records[0].PathType)
	assert.Equal(t, domain.ConversionFailed, records[1].Status)
	assert.NotEmpty(t, records[1].Error)
}

func TestExecutor_Cancelled(t *testing.T) {
	router := converterMock.NewConverter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &domain.Plan{Actions: []domain.RebalanceAction{{Asset: "ETH", Side: domain.SideBuy, USDAmount: usd(10)}}}
	report, err := NewExecutor(router, nil, DefaultActionDelay, nil).Execute(ctx, plan, nil)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Empty(t, report.Results)
}
