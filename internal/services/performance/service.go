package performance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

const (
	twrCachePrefix = "twr:"
	pnlCachePrefix = "pnl:"
)

type snapshotStore interface {
	Snapshots(start, end time.Time) ([]domain.Snapshot, error)
	CashFlows(start, end time.Time) ([]domain.CashFlow, error)
	FirstSnapshot() (*domain.Snapshot, error)
	LastSnapshot() (*domain.Snapshot, error)
}

type metricsCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Service answers performance queries over the timeseries store, memoizing
// results in the metrics cache until the next invalidation.
type Service struct {
	store  snapshotStore
	cache  metricsCache
	logger *zap.Logger

	// generation is bumped by Invalidate; results computed under an older
	// generation are not cached.
	mu         sync.Mutex
	generation uint64
}

// NewService creates a performance service. cache may be nil.
func NewService(store snapshotStore, cache metricsCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{store: store, cache: cache, logger: logger}
}

// ComputeTWR returns the time-weighted return over [start, end].
// Zero bounds are open-ended.
func (s *Service) ComputeTWR(ctx context.Context, start, end time.Time) (*domain.TWRResult, error) {
	key := fmt.Sprintf("%swindow:%d:%d", twrCachePrefix, unixOrZero(start), unixOrZero(end))

	var cached domain.TWRResult
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	gen := s.currentGeneration()
	res, err := s.twr(start, end)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, gen, key, res)

	return res, nil
}

// PerformanceMetrics returns the TWR of the trailing days ending at the
// latest snapshot, or of the whole history when days is zero.
func (s *Service) PerformanceMetrics(ctx context.Context, days int) (*domain.TWRResult, error) {
	if days < 0 {
		return nil, errors.Errorf("days must not be negative, got %d", days)
	}

	key := fmt.Sprintf("%sdays:%d", twrCachePrefix, days)

	var cached domain.TWRResult
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	gen := s.currentGeneration()
	first, err := s.store.FirstSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load first snapshot")
	}
	last, err := s.store.LastSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load last snapshot")
	}
	if first == nil || last == nil {
		return nil, domain.ErrInsufficientData
	}

	start, end := first.Timestamp, last.Timestamp
	if days > 0 {
		start = end.Add(-time.Duration(days) * day)
	}

	res, err := s.twr(start, end)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, gen, key, res)

	return res, nil
}

func (s *Service) twr(start, end time.Time) (*domain.TWRResult, error) {
	snapshots, err := s.store.Snapshots(start, end)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load snapshots")
	}
	if len(snapshots) < 2 {
		return nil, domain.ErrInsufficientData
	}

	flows, err := s.store.CashFlows(start, end)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cash flows")
	}

	return computeTWR(snapshots, flows, start, end)
}

// ComputePnL returns profit and loss over the trailing windowDays, or since
// inception when windowDays is nil or zero. An empty history yields a zero
// result flagged as insufficient data.
func (s *Service) ComputePnL(ctx context.Context, windowDays *int) (*domain.PnLResult, error) {
	days := 0
	if windowDays != nil {
		days = *windowDays
	}
	if days < 0 {
		return nil, errors.Errorf("days must not be negative, got %d", days)
	}

	key := fmt.Sprintf("%sdays:%d", pnlCachePrefix, days)

	var cached domain.PnLResult
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	gen := s.currentGeneration()
	snapshots, err := s.store.Snapshots(time.Time{}, time.Time{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load snapshots")
	}
	if len(snapshots) == 0 {
		return &domain.PnLResult{InsufficientData: true}, nil
	}

	current := snapshots[len(snapshots)-1]
	initial := initialSnapshot(snapshots, current.Timestamp, days)

	flows, err := s.store.CashFlows(initial.Timestamp, current.Timestamp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cash flows")
	}

	res := computePnL(initial, current, flows)
	s.toCache(ctx, gen, key, res)

	return res, nil
}

// Stats summarizes the recorded history.
func (s *Service) Stats(_ context.Context) (*domain.TrackingStats, error) {
	snapshots, err := s.store.Snapshots(time.Time{}, time.Time{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load snapshots")
	}
	flows, err := s.store.CashFlows(time.Time{}, time.Time{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cash flows")
	}

	deposits, withdrawals := splitFlows(flows)
	stats := &domain.TrackingStats{
		SnapshotCount:    len(snapshots),
		CashFlowCount:    len(flows),
		TotalDeposits:    deposits,
		TotalWithdrawals: withdrawals,
	}

	if len(snapshots) > 0 {
		first, last := snapshots[0].Timestamp, snapshots[len(snapshots)-1].Timestamp
		stats.FirstSnapshot = &first
		stats.LastSnapshot = &last
		stats.TrackingDays = wholeDays(first, last)
	}

	return stats, nil
}

// TWRHistory returns the memoized from-inception TWR of every snapshot in
// the trailing days (all history when days is zero).
func (s *Service) TWRHistory(_ context.Context, days int) ([]domain.TWRPoint, error) {
	last, err := s.store.LastSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load last snapshot")
	}
	if last == nil {
		return []domain.TWRPoint{}, nil
	}

	var start time.Time
	if days > 0 {
		start = last.Timestamp.Add(-time.Duration(days) * day)
	}

	snapshots, err := s.store.Snapshots(start, time.Time{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load snapshots")
	}

	points := make([]domain.TWRPoint, 0, len(snapshots))
	for _, snap := range snapshots {
		twr := decimal.Zero
		if snap.TWR != nil {
			twr = *snap.TWR
		}
		points = append(points, domain.TWRPoint{
			Timestamp:     snap.Timestamp,
			TWRPercent:    twr,
			TotalValueUSD: snap.TotalValueUSD,
		})
	}

	return points, nil
}

// Memoize fills the from-inception TWR (percent), P&L and P&L percent of a
// snapshot about to be appended, as if it were the latest one.
func (s *Service) Memoize(_ context.Context, candidate domain.Snapshot) (domain.Snapshot, error) {
	history, err := s.store.Snapshots(time.Time{}, candidate.Timestamp)
	if err != nil {
		return candidate, errors.Wrap(err, "failed to load snapshots")
	}
	if len(history) == 0 {
		return candidate, nil
	}

	flows, err := s.store.CashFlows(history[0].Timestamp, candidate.Timestamp)
	if err != nil {
		return candidate, errors.Wrap(err, "failed to load cash flows")
	}

	snapshots := append(history, candidate)

	if res, err := computeTWR(snapshots, flows, time.Time{}, time.Time{}); err == nil {
		twr := res.TWRPercent().Round(2)
		candidate.TWR = &twr
	}

	pnl := computePnL(snapshots[0], candidate, flows)
	pnlPercent := pnl.PnLPercent.Round(2)
	candidate.PnL = &pnl.PnL
	candidate.PnLPercent = &pnlPercent

	return candidate, nil
}

// Invalidate drops every cached TWR and P&L result.
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.cache == nil {
		return nil
	}

	for _, prefix := range []string{twrCachePrefix, pnlCachePrefix} {
		if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
			return errors.Wrapf(err, "failed to drop cached %s entries", prefix)
		}
	}

	return nil
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}

	found, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("metrics cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}

	return found
}

func (s *Service) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generation
}

// toCache stores value unless the cache was invalidated after gen was taken.
func (s *Service) toCache(ctx context.Context, gen uint64, key string, value any) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("dropping stale metrics result", zap.String("key", key))
		return
	}

	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("metrics cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.Unix()
}
