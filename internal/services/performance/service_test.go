package performance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/storage/metricscache"
	"github.com/vadiminshakov/folio/internal/storage/timeseries"
)

func newTestService(t *testing.T) (*Service, *timeseries.WALStore) {
	t.Helper()

	store, err := timeseries.NewWALStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewService(store, metricscache.NewMemory(0), nil), store
}

func appendSnapshots(t *testing.T, store *timeseries.WALStore, snapshots ...domain.Snapshot) {
	t.Helper()

	for _, s := range snapshots {
		_, err := store.AppendSnapshot(s)
		require.NoError(t, err)
	}
}

func TestService_InsufficientData(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.ComputeTWR(ctx, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, err = svc.PerformanceMetrics(ctx, 30)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	pnl, err := svc.ComputePnL(ctx, nil)
	require.NoError(t, err)
	assert.True(t, pnl.InsufficientData)
	assert.True(t, pnl.PnL.IsZero())

	appendSnapshots(t, store, snap(0, "1000"))
	require.NoError(t, svc.Invalidate(ctx))

	_, err = svc.ComputeTWR(ctx, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	pnl, err = svc.ComputePnL(ctx, nil)
	require.NoError(t, err)
	assert.True(t, pnl.InsufficientData)
	assert.True(t, pnl.CurrentValue.Equal(decimal.NewFromInt(1000)))
}

func TestService_TWRAndPnL(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	appendSnapshots(t, store, snap(0, "10000"), snap(10*day, "10500"))

	twr, err := svc.ComputeTWR(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, twr.TWRPercent().Equal(decimal.NewFromInt(5)))

	metrics, err := svc.PerformanceMetrics(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, metrics.Days)
	assert.True(t, metrics.StartValue.Equal(decimal.NewFromInt(10000)))
	assert.True(t, metrics.EndValue.Equal(decimal.NewFromInt(10500)))

	pnl, err := svc.ComputePnL(ctx, nil)
	require.NoError(t, err)
	assert.False(t, pnl.InsufficientData)
	assert.True(t, pnl.PnL.Equal(decimal.NewFromInt(500)))
	assert.True(t, pnl.PnLPercent.Equal(decimal.NewFromInt(5)))
}

func TestService_PerformanceMetricsWindow(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	appendSnapshots(t, store, snap(0, "1000"), snap(20*day, "2000"), snap(25*day, "2200"), snap(30*day, "2420"))

	res, err := svc.PerformanceMetrics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Days)
	assert.True(t, res.StartValue.Equal(decimal.NewFromInt(2200)))
	assert.True(t, res.TWR.Equal(decimal.RequireFromString("0.1")))

	_, err = svc.PerformanceMetrics(ctx, -1)
	assert.Error(t, err)
}

func TestService_PnLWindowWithWithdrawal(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	appendSnapshots(t, store, snap(0, "5000"), snap(20*day, "10000"), snap(30*day, "9000"))
	require.NoError(t, store.AppendCashFlow(flow(t, 5*day, "3000", domain.CashFlowDeposit)))
	require.NoError(t, store.AppendCashFlow(flow(t, 25*day, "2000", domain.CashFlowWithdrawal)))

	days := 15
	pnl, err := svc.ComputePnL(ctx, &days)
	require.NoError(t, err)

	assert.True(t, pnl.InitialValue.Equal(decimal.NewFromInt(10000)))
	assert.True(t, pnl.TotalDeposits.IsZero())
	assert.True(t, pnl.TotalWithdrawals.Equal(decimal.NewFromInt(2000)))
	assert.True(t, pnl.PnL.Equal(decimal.NewFromInt(1000)))
	assert.True(t, pnl.PnLPercent.Equal(decimal.RequireFromString("12.5")))
}

func TestService_CacheInvalidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	appendSnapshots(t, store, snap(0, "1000"), snap(day, "1100"))

	res, err := svc.PerformanceMetrics(ctx, 0)
	require.NoError(t, err)
	assert.True(t, res.TWR.Equal(decimal.RequireFromString("0.1")))

	appendSnapshots(t, store, snap(2*day, "1210"))

	res, err = svc.PerformanceMetrics(ctx, 0)
	require.NoError(t, err)
	assert.True(t, res.TWR.Equal(decimal.RequireFromString("0.1")), "cached value expected before invalidation")

	require.NoError(t, svc.Invalidate(ctx))

	res, err = svc.PerformanceMetrics(ctx, 0)
	require.NoError(t, err)
	assert.True(t, res.TWR.Equal(decimal.RequireFromString("0.21")))
}

// appendingStore runs onSnapshots once, before the first snapshot read.
type appendingStore struct {
	*timeseries.WALStore
	once        sync.Once
	onSnapshots func()
}

func (s *appendingStore) Snapshots(start, end time.Time) ([]domain.Snapshot, error) {
	s.once.Do(s.onSnapshots)

	return s.WALStore.Snapshots(start, end)
}

func TestService_InvalidateDuringComputeDropsStaleResult(t *testing.T) {
	_, wal := newTestService(t)
	ctx := context.Background()
	appendSnapshots(t, wal, snap(0, "1000"), snap(day, "1100"))

	store := &appendingStore{WALStore: wal}
	svc := NewService(store, metricscache.NewMemory(0), nil)
	store.onSnapshots = func() {
		appendSnapshots(t, wal, snap(2*day, "1210"))
		require.NoError(t, svc.Invalidate(ctx))
	}

	res, err := svc.PerformanceMetrics(ctx, 0)
	require.NoError(t, err)
	assert.True(t, res.TWR.Equal(decimal.RequireFromString("0.1")))

	res, err = svc.PerformanceMetrics(ctx, 0)
	require.NoError(t, err)
	assert.True(t, res.TWR.Equal(decimal.RequireFromString("0.21")), "got %s", res.TWR)
}

func TestService_StatsAndHistory(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	twr := decimal.RequireFromString("4.5")
	appendSnapshots(t, store,
		snap(0, "1000"),
		domain.Snapshot{Timestamp: t0.Add(3 * day), TotalValueUSD: decimal.NewFromInt(1045), TWR: &twr},
	)
	require.NoError(t, store.AppendCashFlow(flow(t, day, "100", domain.CashFlowDeposit)))
	require.NoError(t, store.AppendCashFlow(flow(t, 2*day, "100", domain.CashFlowWithdrawal)))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TrackingDays)
	assert.Equal(t, 2, stats.SnapshotCount)
	assert.Equal(t, 2, stats.CashFlowCount)
	assert.True(t, stats.TotalDeposits.Equal(decimal.NewFromInt(100)))
	assert.True(t, stats.TotalWithdrawals.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, stats.FirstSnapshot)
	assert.True(t, stats.FirstSnapshot.Equal(t0))

	points, err := svc.TWRHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[0].TWRPercent.IsZero())
	assert.True(t, points[1].TWRPercent.Equal(twr))

	points, err = svc.TWRHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestService_Memoize(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Memoize(ctx, snap(0, "10000"))
	require.NoError(t, err)
	assert.Nil(t, first.TWR)
	assert.Nil(t, first.PnL)

	appendSnapshots(t, store, first)
	require.NoError(t, store.AppendCashFlow(flow(t, day, "2000", domain.CashFlowWithdrawal)))

	memo, err := svc.Memoize(ctx, snap(2*day, "9000"))
	require.NoError(t, err)
	require.NotNil(t, memo.TWR)
	require.NotNil(t, memo.PnL)
	require.NotNil(t, memo.PnLPercent)
	assert.True(t, memo.TWR.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, memo.PnL.Equal(decimal.NewFromInt(1000)))
	assert.True(t, memo.PnLPercent.Equal(decimal.RequireFromString("12.5")))
}
