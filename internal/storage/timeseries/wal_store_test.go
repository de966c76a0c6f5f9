package timeseries

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, dir string) *WALStore {
	t.Helper()

	store, err := NewWALStore(dir, zap.NewNop())
	require.NoError(t, err)

	return store
}

func snapshotAt(offset time.Duration, value int64) domain.Snapshot {
	return domain.Snapshot{Timestamp: t0.Add(offset), TotalValueUSD: decimal.NewFromInt(value)}
}

func TestWALStore_SnapshotsWindow(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	for i, v := range []int64{10000, 10200, 10500} {
		_, err := store.AppendSnapshot(snapshotAt(time.Duration(i)*24*time.Hour, v))
		require.NoError(t, err)
	}

	all, err := store.Snapshots(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	window, err := store.Snapshots(t0.Add(24*time.Hour), t0.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.True(t, window[0].TotalValueUSD.Equal(decimal.NewFromInt(10200)))
	assert.True(t, window[1].TotalValueUSD.Equal(decimal.NewFromInt(10500)))

	first, err := store.FirstSnapshot()
	require.NoError(t, err)
	assert.True(t, first.Timestamp.Equal(t0))

	last, err := store.LastSnapshot()
	require.NoError(t, err)
	assert.True(t, last.TotalValueUSD.Equal(decimal.NewFromInt(10500)))
}

func TestWALStore_KeepsTimestampOrder(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	_, err := store.AppendSnapshot(snapshotAt(2*time.Hour, 3))
	require.NoError(t, err)
	_, err = store.AppendSnapshot(snapshotAt(time.Hour, 2))
	require.NoError(t, err)

	cf1, err := domain.NewCashFlow(t0.Add(3*time.Hour), decimal.NewFromInt(100), domain.CashFlowDeposit, "")
	require.NoError(t, err)
	cf2, err := domain.NewCashFlow(t0.Add(time.Hour), decimal.NewFromInt(50), domain.CashFlowWithdrawal, "")
	require.NoError(t, err)
	require.NoError(t, store.AppendCashFlow(cf1))
	require.NoError(t, store.AppendCashFlow(cf2))

	snapshots, err := store.Snapshots(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.True(t, snapshots[0].Timestamp.Before(snapshots[1].Timestamp))

	flows, err := store.CashFlows(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.True(t, flows[0].AmountUSD.Equal(decimal.NewFromInt(-50)))

	records, err := store.SnapshotsAfter(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(2), records[0].Index)
}

func TestWALStore_ReplaysOnOpen(t *testing.T) {
	dir := t.TempDir()

	store := newTestStore(t, dir)
	_, err := store.AppendSnapshot(snapshotAt(0, 1000))
	require.NoError(t, err)
	cf, err := domain.NewCashFlow(t0.Add(time.Minute), decimal.NewFromInt(500), domain.CashFlowDeposit, "salary")
	require.NoError(t, err)
	require.NoError(t, store.AppendCashFlow(cf))
	_, err = store.AppendSnapshot(snapshotAt(time.Hour, 1500))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := newTestStore(t, dir)
	defer reopened.Close()

	snapshots, err := reopened.Snapshots(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.True(t, snapshots[1].TotalValueUSD.Equal(decimal.NewFromInt(1500)))

	flows, err := reopened.CashFlows(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "salary", flows[0].Note)
	assert.Equal(t, uint64(2), reopened.CurrentIndex())
}

func TestWALStore_EmptyStore(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	first, err := store.FirstSnapshot()
	require.NoError(t, err)
	assert.Nil(t, first)

	last, err := store.LastSnapshot()
	require.NoError(t, err)
	assert.Nil(t, last)
}
