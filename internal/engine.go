package internal

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/events"
	"github.com/vadiminshakov/folio/internal/services/performance"
	"github.com/vadiminshakov/folio/internal/services/rebalancing"
	"github.com/vadiminshakov/folio/internal/services/router"
	"github.com/vadiminshakov/folio/internal/services/sampler"
	"github.com/vadiminshakov/folio/internal/storage/conversions"
	"github.com/vadiminshakov/folio/internal/storage/metricscache"
	"github.com/vadiminshakov/folio/internal/storage/settings"
	"github.com/vadiminshakov/folio/internal/storage/timeseries"
	"github.com/vadiminshakov/folio/pkg/retrier"
)

const balancesCacheKey = "balances:current"

type timeseriesStore interface {
	AppendSnapshot(snapshot domain.Snapshot) (domain.SnapshotRecord, error)
	AppendCashFlow(cf domain.CashFlow) error
	Snapshots(start, end time.Time) ([]domain.Snapshot, error)
	CashFlows(start, end time.Time) ([]domain.CashFlow, error)
	FirstSnapshot() (*domain.Snapshot, error)
	LastSnapshot() (*domain.Snapshot, error)
	SnapshotsAfter(index uint64) ([]domain.SnapshotRecord, error)
	CurrentIndex() uint64
	Close() error
}

type conversionStore interface {
	Save(record domain.ConversionRecord) (domain.ConversionRecord, error)
	List(limit int) ([]domain.ConversionRecord, error)
	Close() error
}

type allocationStore interface {
	Load() (domain.AllocationTarget, error)
	Save(targets domain.AllocationTarget) error
}

type cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Engine ties the gateway, stores and calculators together and exposes the
// portfolio operations used by the HTTP API and the CLI.
type Engine struct {
	conf        config.Config
	gateway     gateway
	store       timeseriesStore
	history     conversionStore
	allocations allocationStore
	cache       cache
	performance *performance.Service
	router      *router.Router
	executor    *rebalancing.Executor
	broadcaster *events.Broadcaster
	logger      *zap.Logger
	now         func() time.Time

	// snapshotMu serializes TakeSnapshot so the spacing check and the append
	// see the same last snapshot.
	snapshotMu sync.Mutex
}

// engineDeps collaborators of an Engine; used directly by tests.
type engineDeps struct {
	conf        config.Config
	gateway     gateway
	store       timeseriesStore
	history     conversionStore
	allocations allocationStore
	cache       cache
	logger      *zap.Logger
	now         func() time.Time
}

// NewEngine opens the stores under conf.DataDir and builds an engine over
// the exchange client returned by NewClient.
func NewEngine(ctx context.Context, conf config.Config, client any, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	gw, err := newGateway(client, conf, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gateway")
	}

	store, err := timeseries.NewWALStore(filepath.Join(conf.DataDir, "timeseries"), logger.Named("timeseries"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open timeseries store")
	}

	history, err := conversions.NewWALStore(filepath.Join(conf.DataDir, "conversions"), logger.Named("conversions"))
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "failed to open conversion history")
	}

	allocations, err := settings.NewStore(filepath.Join(conf.DataDir, "settings", "allocation.json"))
	if err != nil {
		_ = store.Close()
		_ = history.Close()
		return nil, errors.Wrap(err, "failed to open settings store")
	}

	metrics, err := newCache(ctx, conf.Cache)
	if err != nil {
		_ = store.Close()
		_ = history.Close()
		return nil, err
	}

	return newEngine(engineDeps{
		conf:        conf,
		gateway:     gw,
		store:       store,
		history:     history,
		allocations: allocations,
		cache:       metrics,
		logger:      logger,
	}), nil
}

func newCache(ctx context.Context, conf config.CacheConfig) (cache, error) {
	if conf.Backend == config.CacheRedis {
		c, err := metricscache.NewRedis(ctx, metricscache.RedisConfig{
			Addr:      conf.RedisAddr,
			Password:  conf.RedisPassword,
			DB:        conf.RedisDB,
			Namespace: conf.RedisNamespace,
			TTL:       conf.TTL,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect metrics cache")
		}
		return c, nil
	}

	return metricscache.NewMemory(conf.TTL), nil
}

func newEngine(deps engineDeps) *Engine {
	logger := deps.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.now
	if now == nil {
		now = time.Now
	}

	r := router.New(deps.gateway, logger.Named("router"),
		router.WithIntermediates(deps.conf.Intermediates...),
		router.WithLegDelay(deps.conf.LegDelay),
		router.WithReportingAsset(deps.conf.ReportingAsset),
	)

	return &Engine{
		conf:        deps.conf,
		gateway:     deps.gateway,
		store:       deps.store,
		history:     deps.history,
		allocations: deps.allocations,
		cache:       deps.cache,
		performance: performance.NewService(deps.store, deps.cache, logger.Named("performance")),
		router:      r,
		executor:    rebalancing.NewExecutor(r, deps.history, deps.conf.ActionDelay, logger.Named("executor")),
		broadcaster: events.NewBroadcaster(256),
		logger:      logger,
		now:         now,
	}
}

// Run schedules balance refreshes and snapshots until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	s := sampler.New(e.logger)
	retry := retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(2*time.Second))

	refresh := sampler.NewBalanceRefreshJob(e, retry, e.logger.Named("sampler"))
	if err := s.AddJob(e.conf.BalanceRefreshSchedule, refresh); err != nil {
		return err
	}
	if err := s.AddJob(e.conf.SnapshotSchedule, sampler.NewSnapshotJob(e, retry, e.logger.Named("sampler"))); err != nil {
		return err
	}

	if err := s.RunNow(refresh); err != nil {
		e.logger.Warn("initial balance refresh failed", zap.Error(err))
	}

	s.Start()
	<-ctx.Done()
	s.Stop()

	return ctx.Err()
}

// Close releases the stores.
func (e *Engine) Close() error {
	var firstErr error
	for _, closer := range []interface{ Close() error }{e.store, e.history, e.cache} {
		if closer == nil {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Events returns the broadcaster of engine state changes.
func (e *Engine) Events() *events.Broadcaster {
	return e.broadcaster
}

// Balances returns the cached balances, fetching them when the cache is cold.
func (e *Engine) Balances(ctx context.Context) (domain.Balances, error) {
	var cached domain.Balances
	found, err := e.cache.Get(ctx, balancesCacheKey, &cached)
	if err != nil {
		e.logger.Warn("balance cache read failed", zap.Error(err))
	}
	if found {
		return cached, nil
	}

	return e.RefreshBalances(ctx)
}

// RefreshBalances reads balances from the gateway and replaces the cached copy.
func (e *Engine) RefreshBalances(ctx context.Context) (domain.Balances, error) {
	balances, err := e.gateway.Balances(ctx, e.conf.MinBalanceUSD)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch balances")
	}

	if err := e.cache.Set(ctx, balancesCacheKey, balances); err != nil {
		e.logger.Warn("balance cache write failed", zap.Error(err))
	}
	e.broadcaster.Publish(events.Event{Kind: events.BalancesRefreshed, Timestamp: e.now(), Balances: balances})

	return balances, nil
}

// TakeSnapshot records the current portfolio value together with its
// from-inception TWR and P&L.
func (e *Engine) TakeSnapshot(ctx context.Context) (*domain.SnapshotRecord, error) {
	e.snapshotMu.Lock()
	defer e.snapshotMu.Unlock()

	now := e.now().UTC()

	last, err := e.store.LastSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load last snapshot")
	}
	if last != nil && now.Sub(last.Timestamp) < e.conf.MinSnapshotInterval {
		return nil, errors.Wrapf(domain.ErrSnapshotTooSoon, "last snapshot taken %s ago, minimum interval is %s",
			now.Sub(last.Timestamp).Truncate(time.Second), e.conf.MinSnapshotInterval)
	}

	balances, err := e.RefreshBalances(ctx)
	if err != nil {
		return nil, err
	}
	total := balances.Total()
	if !total.IsPositive() {
		return nil, domain.ErrEmptyPortfolio
	}

	snapshot, err := e.performance.Memoize(ctx, domain.Snapshot{Timestamp: now, TotalValueUSD: total})
	if err != nil {
		return nil, err
	}

	record, err := e.store.AppendSnapshot(snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store snapshot")
	}

	e.invalidate(ctx)
	e.broadcaster.Publish(events.Event{Kind: events.SnapshotAppended, Timestamp: now, Snapshot: &record})

	e.logger.Info("snapshot recorded",
		zap.Uint64("index", record.Index),
		zap.String("total_usd", total.String()))

	return &record, nil
}

// RecordCashFlow stores a deposit or withdrawal of amountUSD.
func (e *Engine) RecordCashFlow(ctx context.Context, amountUSD decimal.Decimal, kind domain.CashFlowKind, note string) (*domain.CashFlow, error) {
	cf, err := domain.NewCashFlow(e.now().UTC(), amountUSD, kind, note)
	if err != nil {
		return nil, err
	}

	if err := e.store.AppendCashFlow(cf); err != nil {
		return nil, errors.Wrap(err, "failed to store cash flow")
	}

	e.invalidate(ctx)
	e.broadcaster.Publish(events.Event{Kind: events.CashFlowRecorded, Timestamp: cf.Timestamp, CashFlow: &cf})

	e.logger.Info("cash flow recorded", zap.String("kind", string(cf.Kind)), zap.String("amount_usd", cf.AmountUSD.String()))

	return &cf, nil
}

func (e *Engine) invalidate(ctx context.Context) {
	if err := e.performance.Invalidate(ctx); err != nil {
		e.logger.Warn("metrics cache invalidation failed", zap.Error(err))
	}
}

// Snapshots lists snapshots in [start, end]; zero bounds are open.
func (e *Engine) Snapshots(_ context.Context, start, end time.Time) ([]domain.Snapshot, error) {
	return e.store.Snapshots(start, end)
}

// SnapshotsAfter lists snapshots written after index, for streaming.
func (e *Engine) SnapshotsAfter(_ context.Context, index uint64) ([]domain.SnapshotRecord, error) {
	return e.store.SnapshotsAfter(index)
}

// CurrentSnapshotIndex number of the latest snapshot written.
func (e *Engine) CurrentSnapshotIndex() uint64 {
	return e.store.CurrentIndex()
}

// CashFlows lists cash flows in [start, end]; zero bounds are open.
func (e *Engine) CashFlows(_ context.Context, start, end time.Time) ([]domain.CashFlow, error) {
	return e.store.CashFlows(start, end)
}

// ComputeTWR time-weighted return over [start, end].
func (e *Engine) ComputeTWR(ctx context.Context, start, end time.Time) (*domain.TWRResult, error) {
	return e.performance.ComputeTWR(ctx, start, end)
}

// PerformanceMetrics TWR over the trailing days, or all history when days is zero.
func (e *Engine) PerformanceMetrics(ctx context.Context, days int) (*domain.TWRResult, error) {
	return e.performance.PerformanceMetrics(ctx, days)
}

// ComputePnL profit and loss over the trailing days, or since inception when nil.
func (e *Engine) ComputePnL(ctx context.Context, days *int) (*domain.PnLResult, error) {
	return e.performance.ComputePnL(ctx, days)
}

// Stats summary of the tracked history.
func (e *Engine) Stats(ctx context.Context) (*domain.TrackingStats, error) {
	return e.performance.Stats(ctx)
}

// TWRHistory memoized TWR per snapshot for charting.
func (e *Engine) TWRHistory(ctx context.Context, days int) ([]domain.TWRPoint, error) {
	return e.performance.TWRHistory(ctx, days)
}

// Allocation returns the saved target allocation. On first use it falls back
// to the configured allocation, then to the current holdings, and saves it.
func (e *Engine) Allocation(ctx context.Context) (domain.AllocationTarget, error) {
	targets, err := e.allocations.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load allocation")
	}
	if len(targets) > 0 {
		return targets, nil
	}

	targets = e.conf.Allocation
	if len(targets) == 0 {
		balances, err := e.Balances(ctx)
		if err != nil {
			return nil, err
		}
		targets, err = rebalancing.CurrentAllocation(balances)
		if errors.Is(err, domain.ErrEmptyPortfolio) {
			return nil, errors.Wrap(domain.ErrNoAllocation, "portfolio is empty")
		}
		if err != nil {
			return nil, err
		}
	}

	if err := e.allocations.Save(targets); err != nil {
		return nil, errors.Wrap(err, "failed to save allocation")
	}
	e.logger.Info("allocation initialized", zap.Strings("assets", targets.Assets()))

	return targets, nil
}

// SetAllocation validates and saves new target percentages.
func (e *Engine) SetAllocation(_ context.Context, targets domain.AllocationTarget) error {
	targets = targets.Normalize()
	if err := targets.Validate(); err != nil {
		return err
	}

	return e.allocations.Save(targets)
}

// PlanRebalance plans against fresh balances. nil targets use the saved allocation.
func (e *Engine) PlanRebalance(ctx context.Context, targets domain.AllocationTarget) (*domain.Plan, error) {
	plan, _, err := e.plan(ctx, targets)
	return plan, err
}

func (e *Engine) plan(ctx context.Context, targets domain.AllocationTarget) (*domain.Plan, domain.Balances, error) {
	if len(targets) == 0 {
		var err error
		if targets, err = e.Allocation(ctx); err != nil {
			return nil, nil, err
		}
	}

	balances, err := e.RefreshBalances(ctx)
	if err != nil {
		return nil, nil, err
	}

	plan, err := rebalancing.Plan(balances, targets)
	if err != nil {
		return nil, nil, err
	}

	return plan, balances, nil
}

// ExecuteRebalance plans against fresh balances and executes every action.
func (e *Engine) ExecuteRebalance(ctx context.Context, targets domain.AllocationTarget) (*domain.ExecutionReport, error) {
	plan, balances, err := e.plan(ctx, targets)
	if err != nil {
		return nil, err
	}

	report, err := e.executor.Execute(ctx, plan, balances)
	if report != nil {
		e.broadcaster.Publish(events.Event{Kind: events.RebalanceExecuted, Timestamp: e.now(), Report: report})
	}
	if err != nil {
		return report, err
	}

	if _, err := e.RefreshBalances(ctx); err != nil {
		e.logger.Warn("balance refresh after rebalancing failed", zap.Error(err))
	}

	return report, nil
}

// Convert converts amount of from into to through the router and records it.
func (e *Engine) Convert(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.ConversionResult, error) {
	res, err := e.router.Execute(ctx, from, to, amount)

	record := domain.ConversionRecord{
		Timestamp: e.now(),
		FromAsset: domain.NormalizeAsset(from),
		ToAsset:   domain.NormalizeAsset(to),
		Amount:    amount,
		Status:    domain.ConversionSuccess,
	}
	if err != nil {
		record.Status = domain.ConversionFailed
		record.Error = err.Error()
	} else {
		record.ResultAmount = res.ReceivedAmount
		record.FeeUSD = res.TotalFeeUSD
		record.PathType = res.Path.Type
	}
	if _, serr := e.history.Save(record); serr != nil {
		e.logger.Error("failed to record conversion", zap.Error(serr))
	}

	return res, err
}

// Quote estimates a conversion at current prices.
func (e *Engine) Quote(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, *domain.ConversionPath, error) {
	path, err := e.router.FindPath(ctx, from, to)
	if err != nil {
		return decimal.Zero, nil, err
	}

	out, err := e.router.Quote(ctx, from, to, amount)
	if err != nil {
		return decimal.Zero, nil, err
	}

	return out, path, nil
}

// ConversionHistory most recent conversion records, newest first.
func (e *Engine) ConversionHistory(_ context.Context, limit int) ([]domain.ConversionRecord, error) {
	return e.history.List(limit)
}
