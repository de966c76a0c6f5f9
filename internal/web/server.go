// Package web exposes the engine over a JSON HTTP API with an SSE stream of
// snapshots and portfolio events.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/events"
)

const (
	snapshotPollInterval = 2 * time.Second
	heartbeatInterval    = 30 * time.Second
	requestTimeout       = 2 * time.Minute
	shutdownTimeout      = 5 * time.Second
)

// engine portfolio operations served over HTTP.
type engine interface {
	Balances(ctx context.Context) (domain.Balances, error)
	TakeSnapshot(ctx context.Context) (*domain.SnapshotRecord, error)
	Snapshots(ctx context.Context, start, end time.Time) ([]domain.Snapshot, error)
	SnapshotsAfter(ctx context.Context, index uint64) ([]domain.SnapshotRecord, error)
	RecordCashFlow(ctx context.Context, amountUSD decimal.Decimal, kind domain.CashFlowKind, note string) (*domain.CashFlow, error)
	CashFlows(ctx context.Context, start, end time.Time) ([]domain.CashFlow, error)
	PerformanceMetrics(ctx context.Context, days int) (*domain.TWRResult, error)
	ComputePnL(ctx context.Context, days *int) (*domain.PnLResult, error)
	Stats(ctx context.Context) (*domain.TrackingStats, error)
	TWRHistory(ctx context.Context, days int) ([]domain.TWRPoint, error)
	Allocation(ctx context.Context) (domain.AllocationTarget, error)
	SetAllocation(ctx context.Context, targets domain.AllocationTarget) error
	PlanRebalance(ctx context.Context, targets domain.AllocationTarget) (*domain.Plan, error)
	ExecuteRebalance(ctx context.Context, targets domain.AllocationTarget) (*domain.ExecutionReport, error)
	ConversionHistory(ctx context.Context, limit int) ([]domain.ConversionRecord, error)
	Events() *events.Broadcaster
}

// Server HTTP front of the engine.
type Server struct {
	addr         string
	engine       engine
	router       *chi.Mux
	logger       *zap.Logger
	pollInterval time.Duration
	heartbeat    time.Duration
}

// NewServer creates the server and registers its routes.
func NewServer(addr string, e engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		addr:         addr,
		engine:       e,
		router:       chi.NewRouter(),
		logger:       logger,
		pollInterval: snapshotPollInterval,
		heartbeat:    heartbeatInterval,
	}
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// the stream is long-lived, everything else gets a deadline
		r.Get("/performance/snapshots/stream", s.handleSnapshotStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/portfolio/balances", s.handleBalances)

			r.Route("/performance", func(r chi.Router) {
				r.Get("/snapshots", s.handleListSnapshots)
				r.Post("/snapshots", s.handleTakeSnapshot)
				r.Get("/cashflows", s.handleListCashFlows)
				r.Post("/cashflows", s.handleRecordCashFlow)
				r.Get("/twr/{days}", s.handleTWR)
				r.Get("/pnl/{days}", s.handlePnL)
				r.Get("/stats", s.handleStats)
				r.Get("/twr-history", s.handleTWRHistory)
			})

			r.Route("/rebalancing", func(r chi.Router) {
				r.Get("/allocation", s.handleGetAllocation)
				r.Post("/allocation", s.handleSetAllocation)
				r.Post("/plan", s.handlePlan)
				r.Post("/execute", s.handleExecute)
			})

			r.Get("/conversions/history", s.handleConversionHistory)
		})
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}

	return nil
}
