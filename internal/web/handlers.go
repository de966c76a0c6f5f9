package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	maxBodyBytes        = 1 << 20
)

type balancesResponse struct {
	Balances      domain.Balances `json:"balances"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
}

type twrResponse struct {
	Days              int              `json:"days"`
	Start             time.Time        `json:"start"`
	End               time.Time        `json:"end"`
	TWRPercent        decimal.Decimal  `json:"twr_percent"`
	AnnualizedPercent *decimal.Decimal `json:"annualized_percent,omitempty"`
	Periods           int              `json:"periods"`
	SkippedPeriods    int              `json:"skipped_periods"`
	StartValue        decimal.Decimal  `json:"start_value"`
	EndValue          decimal.Decimal  `json:"end_value"`
}

type pnlResponse struct {
	*domain.PnLResult
	Days  int    `json:"days"`
	Error string `json:"error,omitempty"`
}

type cashFlowRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
	Note   string          `json:"note"`
}

type allocationRequest struct {
	Targets domain.AllocationTarget `json:"targets"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.engine.Balances(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	balances.SortByValue()

	s.writeJSON(w, http.StatusOK, balancesResponse{Balances: balances, TotalValueUSD: balances.Total()})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshots, err := s.engine.Snapshots(r.Context(), start, end)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots, "count": len(snapshots)})
}

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	record, err := s.engine.TakeSnapshot(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{"index": record.Index, "snapshot": record.Snapshot})
}

func (s *Server) handleListCashFlows(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flows, err := s.engine.CashFlows(r.Context(), start, end)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"cash_flows": flows, "count": len(flows)})
}

func (s *Server) handleRecordCashFlow(w http.ResponseWriter, r *http.Request) {
	var req cashFlowRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, err := domain.ParseCashFlowKind(req.Type)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		s.writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	cf, err := s.engine.RecordCashFlow(r.Context(), req.Amount, kind, req.Note)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, cf)
}

func (s *Server) handleTWR(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(chi.URLParam(r, "days"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.PerformanceMetrics(r.Context(), days)
	if errors.Is(err, domain.ErrInsufficientData) {
		s.writeJSON(w, http.StatusOK, map[string]any{"days": days, "error": insufficientDataMessage})
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, twrResponse{
		Days:              days,
		Start:             res.Start,
		End:               res.End,
		TWRPercent:        res.TWRPercent().Round(4),
		AnnualizedPercent: roundPtr(res.AnnualizedPercent(), 4),
		Periods:           res.Periods,
		SkippedPeriods:    res.SkippedPeriods,
		StartValue:        res.StartValue,
		EndValue:          res.EndValue,
	})
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(chi.URLParam(r, "days"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.ComputePnL(r.Context(), &days)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := pnlResponse{PnLResult: res, Days: days}
	if res.InsufficientData {
		resp.Error = insufficientDataMessage
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTWRHistory(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		var err error
		if days, err = parseDays(raw); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	points, err := s.engine.TWRHistory(r.Context(), days)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"days": days, "points": points})
}

func (s *Server) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	targets, err := s.engine.Allocation(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, allocationRequest{Targets: targets})
}

func (s *Server) handleSetAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.SetAllocation(r.Context(), req.Targets); err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, allocationRequest{Targets: req.Targets.Normalize()})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	targets, err := optionalTargets(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := s.engine.PlanRebalance(r.Context(), targets)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	targets, err := optionalTargets(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.engine.ExecuteRebalance(r.Context(), targets)
	if err != nil && report == nil {
		s.writeEngineError(w, err)
		return
	}
	if err != nil {
		// aborted midway, report what did run
		s.logger.Warn("rebalance aborted", zap.Error(err))
		s.writeJSON(w, http.StatusOK, map[string]any{"report": report, "error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (s *Server) handleConversionHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.engine.ConversionHistory(r.Context(), limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"conversions": records, "count": len(records)})
}

const insufficientDataMessage = "Not enough data: at least two snapshots are required"

// writeEngineError maps domain errors to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAllocation),
		errors.Is(err, domain.ErrSameAsset):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyPortfolio),
		errors.Is(err, domain.ErrNoAllocation),
		errors.Is(err, domain.ErrNoConversionPath):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSnapshotTooSoon):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}

	s.writeError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "invalid request body")
	}

	return nil
}

// optionalTargets reads an allocation override; an empty body means the saved allocation.
func optionalTargets(w http.ResponseWriter, r *http.Request) (domain.AllocationTarget, error) {
	if r.ContentLength == 0 {
		return nil, nil
	}

	var req allocationRequest
	if err := decodeBody(w, r, &req); err != nil {
		// chunked requests carry no ContentLength
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	return req.Targets, nil
}

// parseDays accepts a non-negative integer or "all" (zero).
func parseDays(raw string) (int, error) {
	if strings.EqualFold(raw, "all") {
		return 0, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0, errors.Errorf("invalid days %q: expected a non-negative integer or \"all\"", raw)
	}

	return days, nil
}

// parseWindow reads optional RFC 3339 from/to query bounds.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	var start, end time.Time
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, errors.Wrap(err, "invalid from")
		}
		start = ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, errors.Wrap(err, "invalid to")
		}
		end = ts
	}

	return start, end, nil
}

func roundPtr(d *decimal.Decimal, places int32) *decimal.Decimal {
	if d == nil {
		return nil
	}
	rounded := d.Round(places)

	return &rounded
}
