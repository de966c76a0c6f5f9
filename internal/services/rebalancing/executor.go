package rebalancing

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultActionDelay pause between consecutive actions.
const DefaultActionDelay = time.Second

type converter interface {
	Execute(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.ConversionResult, error)
}

type conversionHistory interface {
	Save(record domain.ConversionRecord) (domain.ConversionRecord, error)
}

// Executor carries out plan actions one at a time, settling every trade
// against a single stablecoin.
type Executor struct {
	router  converter
	history conversionHistory
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// NewExecutor creates an executor pacing actions at most one per delay.
// history may be nil.
func NewExecutor(router converter, history conversionHistory, delay time.Duration, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &Executor{
		router:  router,
		history: history,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}
}

// ReferenceAsset returns the held stablecoin with the largest USD value,
// or USDT when none is held.
func ReferenceAsset(balances domain.Balances) string {
	reference := domain.DefaultReferenceAsset
	best := decimal.Zero

	for _, b := range balances {
		if !domain.IsStablecoin(b.Asset) {
			continue
		}
		if b.USDValue.GreaterThan(best) {
			best = b.USDValue
			reference = b.Asset
		}
	}

	return reference
}

// Execute runs every action of the plan. A failed action does not stop the
// remaining ones; only context cancellation aborts the batch, returning the
// results gathered so far.
func (e *Executor) Execute(ctx context.Context, plan *domain.Plan, balances domain.Balances) (*domain.ExecutionReport, error) {
	if plan == nil {
		return nil, errors.New("nil rebalancing plan")
	}

	report := &domain.ExecutionReport{
		ReferenceAsset: ReferenceAsset(balances),
		Results:        make([]domain.ActionResult, 0, len(plan.Actions)),
		TotalFeesUSD:   decimal.Zero,
		StartedAt:      e.now(),
	}

	logger := e.logger.With(zap.String("reference", report.ReferenceAsset))
	logger.Info("executing rebalancing plan", zap.Int("actions", len(plan.Actions)))

	for _, action := range plan.Actions {
		if err := e.limiter.Wait(ctx); err != nil {
			report.FinishedAt = e.now()
			return report, errors.Wrap(err, "rebalancing interrupted")
		}

		result := e.executeAction(ctx, action, balances, report.ReferenceAsset)
		if result.Success {
			report.TotalFeesUSD = report.TotalFeesUSD.Add(result.FeesUSD)
		}
		report.Results = append(report.Results, result)
	}

	report.FinishedAt = e.now()
	logger.Info("rebalancing finished",
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("total", len(report.Results)),
		zap.String("fees_usd", report.TotalFeesUSD.String()))

	return report, nil
}

func (e *Executor) executeAction(ctx context.Context, action domain.RebalanceAction, balances domain.Balances, reference string) domain.ActionResult {
	result := domain.ActionResult{
		Asset:     action.Asset,
		Side:      action.Side,
		USDAmount: action.USDAmount,
		FeesUSD:   decimal.Zero,
	}

	if action.Asset == reference {
		result.Success = true
		result.Skipped = true
		result.Message = fmt.Sprintf("%s is the settlement asset, nothing to convert", reference)
		return result
	}

	var from, to string
	var amount decimal.Decimal

	switch action.Side {
	case domain.SideSell:
		holding, ok := balances.Find(action.Asset)
		if !ok {
			result.Message = fmt.Sprintf("Asset %s not found in portfolio", action.Asset)
			return result
		}
		price := holding.Price()
		if !price.IsPositive() {
			result.Message = fmt.Sprintf("no price for %s", action.Asset)
			return result
		}
		from, to, amount = action.Asset, reference, action.USDAmount.DivRound(price, 16)
	case domain.SideBuy:
		from, to, amount = reference, action.Asset, action.USDAmount
	default:
		result.Message = fmt.Sprintf("unknown side %q", action.Side)
		return result
	}

	conversion, err := e.router.Execute(ctx, from, to, amount)
	if err != nil {
		e.logger.Warn("rebalancing action failed",
			zap.String("asset", action.Asset),
			zap.Stringer("side", action.Side),
			zap.Error(err))

		result.Message = err.Error()
		e.record(domain.ConversionRecord{
			Timestamp: e.now(),
			FromAsset: from,
			ToAsset:   to,
			Amount:    amount,
			Status:    domain.ConversionFailed,
			Error:     err.Error(),
		})

		return result
	}

	result.Success = true
	result.FeesUSD = conversion.TotalFeeUSD
	result.Path = conversion.Path.String()
	result.Message = fmt.Sprintf("converted %s %s into %s %s", amount.String(), from, conversion.ReceivedAmount.String(), to)

	e.record(domain.ConversionRecord{
		Timestamp:    e.now(),
		FromAsset:    from,
		ToAsset:      to,
		Amount:       amount,
		ResultAmount: conversion.ReceivedAmount,
		FeeUSD:       conversion.TotalFeeUSD,
		PathType:     conversion.Path.Type,
		Status:       domain.ConversionSuccess,
	})

	return result
}

func (e *Executor) record(record domain.ConversionRecord) {
	if e.history == nil {
		return
	}

	if _, err := e.history.Save(record); err != nil {
		e.logger.Error("failed to record conversion",
			zap.String("from", record.FromAsset),
			zap.String("to", record.ToAsset),
			zap.Error(err))
	}
}
