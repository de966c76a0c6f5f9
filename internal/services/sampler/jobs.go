package sampler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/pkg/retrier"
	"go.uber.org/zap"
)

type balanceRefresher interface {
	RefreshBalances(ctx context.Context) (domain.Balances, error)
}

type snapshotTaker interface {
	TakeSnapshot(ctx context.Context) (*domain.SnapshotRecord, error)
}

// permanent errors are the engine refusing the operation; retrying cannot help.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrSnapshotTooSoon) ||
		errors.Is(err, domain.ErrEmptyPortfolio) ||
		errors.Is(err, context.Canceled)
}

// BalanceRefreshJob replaces the cached balances with a fresh gateway read.
type BalanceRefreshJob struct {
	engine  balanceRefresher
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewBalanceRefreshJob creates the job. r may be nil to disable retries.
func NewBalanceRefreshJob(engine balanceRefresher, r *retrier.Retrier, logger *zap.Logger) *BalanceRefreshJob {
	if r == nil {
		r = retrier.New(retrier.WithMaxRetries(0))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BalanceRefreshJob{engine: engine, retrier: r, logger: logger}
}

// Name returns the job name.
func (j *BalanceRefreshJob) Name() string { return "refresh-balances" }

// Run fetches balances, retrying transient gateway failures.
func (j *BalanceRefreshJob) Run(ctx context.Context) error {
	balances, err := retrier.DoWithData(j.retrier, ctx, func(ctx context.Context) (domain.Balances, error) {
		balances, err := j.engine.RefreshBalances(ctx)
		if permanent(err) {
			return nil, retrier.Permanent(err)
		}
		return balances, err
	})
	if err != nil {
		return errors.Wrap(err, "refresh balances")
	}

	j.logger.Debug("balances refreshed",
		zap.Int("assets", len(balances)),
		zap.String("total_usd", balances.Total().String()))

	return nil
}

// SnapshotJob appends a portfolio snapshot.
type SnapshotJob struct {
	engine  snapshotTaker
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewSnapshotJob creates the job. r may be nil to disable retries.
func NewSnapshotJob(engine snapshotTaker, r *retrier.Retrier, logger *zap.Logger) *SnapshotJob {
	if r == nil {
		r = retrier.New(retrier.WithMaxRetries(0))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SnapshotJob{engine: engine, retrier: r, logger: logger}
}

// Name returns the job name.
func (j *SnapshotJob) Name() string { return "take-snapshot" }

// Run takes a snapshot. A snapshot refused for being too close to the
// previous one, or for an empty portfolio, is not a failure.
func (j *SnapshotJob) Run(ctx context.Context) error {
	record, err := retrier.DoWithData(j.retrier, ctx, func(ctx context.Context) (*domain.SnapshotRecord, error) {
		record, err := j.engine.TakeSnapshot(ctx)
		if permanent(err) {
			return nil, retrier.Permanent(err)
		}
		return record, err
	})
	switch {
	case errors.Is(err, domain.ErrSnapshotTooSoon):
		j.logger.Debug("snapshot skipped, previous one is too recent")
		return nil
	case errors.Is(err, domain.ErrEmptyPortfolio):
		j.logger.Warn("snapshot skipped, portfolio is empty")
		return nil
	case err != nil:
		return errors.Wrap(err, "take snapshot")
	}

	j.logger.Info("snapshot taken",
		zap.Uint64("index", record.Index),
		zap.String("total_usd", record.Snapshot.TotalValueUSD.String()))

	return nil
}
