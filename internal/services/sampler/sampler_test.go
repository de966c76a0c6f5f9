package sampler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/pkg/retrier"
)

type fakeEngine struct {
	refreshCalls  atomic.Int32
	snapshotCalls atomic.Int32
	refreshErrs   []error
	snapshotErr   error
}

func (f *fakeEngine) RefreshBalances(context.Context) (domain.Balances, error) {
	n := int(f.refreshCalls.Add(1))
	if n <= len(f.refreshErrs) && f.refreshErrs[n-1] != nil {
		return nil, f.refreshErrs[n-1]
	}

	return domain.Balances{{Asset: "USDT", Quantity: decimal.NewFromInt(10), USDValue: decimal.NewFromInt(10)}}, nil
}

func (f *fakeEngine) TakeSnapshot(context.Context) (*domain.SnapshotRecord, error) {
	f.snapshotCalls.Add(1)
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}

	return &domain.SnapshotRecord{Index: 1, Snapshot: domain.Snapshot{TotalValueUSD: decimal.NewFromInt(10)}}, nil
}

func fastRetrier() *retrier.Retrier {
	return retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(time.Millisecond))
}

func TestBalanceRefreshJob_RetriesTransientErrors(t *testing.T) {
	engine := &fakeEngine{refreshErrs: []error{errors.New("timeout"), errors.New("timeout")}}

	err := NewBalanceRefreshJob(engine, fastRetrier(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), engine.refreshCalls.Load())
}

func TestSnapshotJob_TooSoonIsNotRetried(t *testing.T) {
	engine := &fakeEngine{snapshotErr: errors.Wrap(domain.ErrSnapshotTooSoon, "last snapshot 1m ago")}

	err := NewSnapshotJob(engine, fastRetrier(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), engine.snapshotCalls.Load())
}

func TestSnapshotJob_FailureSurfaces(t *testing.T) {
	engine := &fakeEngine{snapshotErr: errors.New("gateway down")}

	err := NewSnapshotJob(engine, fastRetrier(), nil).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(4), engine.snapshotCalls.Load())
}

func TestScheduler_RunsJobs(t *testing.T) {
	engine := &fakeEngine{}
	s := New(nil)

	require.NoError(t, s.AddJob("@every 1s", NewSnapshotJob(engine, nil, nil)))
	assert.Error(t, s.AddJob("not a schedule", NewBalanceRefreshJob(engine, nil, nil)))

	require.NoError(t, s.RunNow(NewBalanceRefreshJob(engine, nil, nil)))
	assert.Equal(t, int32(1), engine.refreshCalls.Load())

	s.Start()
	assert.Eventually(t, func() bool {
		return engine.snapshotCalls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

type panickingJob struct {
	runs atomic.Int32
}

func (j *panickingJob) Name() string { return "panicking" }

func (j *panickingJob) Run(context.Context) error {
	j.runs.Add(1)
	panic("cannot create decimal")
}

func TestScheduler_RecoversPanickingJob(t *testing.T) {
	job := &panickingJob{}
	s := New(nil)

	err := s.RunNow(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicking panicked")

	require.NoError(t, s.AddJob("@every 1s", job))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return job.runs.Load() > 2
	}, 4*time.Second, 50*time.Millisecond)
}
