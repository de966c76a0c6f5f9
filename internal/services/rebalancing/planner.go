// Package rebalancing plans and executes trades that move a portfolio
// toward its target allocation.
package rebalancing

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	// holdings below this share are left out of the reported allocation
	reportingCutoff = decimal.NewFromInt(1)
	// drift below this fraction of the portfolio value is ignored
	driftThreshold = decimal.RequireFromString("0.005")
)

// Plan computes the buy and sell actions that bring balances to targets.
// Actions are ordered by USD amount, largest first.
func Plan(balances domain.Balances, targets domain.AllocationTarget) (*domain.Plan, error) {
	targets = targets.Normalize()
	if err := targets.Validate(); err != nil {
		return nil, err
	}

	total := balances.Total()
	if !total.IsPositive() {
		return nil, domain.ErrEmptyPortfolio
	}

	shares := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		shares[b.Asset] = shares[b.Asset].Add(b.USDValue.Div(total).Mul(hundred))
	}

	current := make(map[string]decimal.Decimal, len(shares))
	for asset, pct := range shares {
		if pct.GreaterThanOrEqual(reportingCutoff) {
			current[asset] = pct.Round(2)
		}
	}

	threshold := total.Mul(driftThreshold)
	actions := make([]domain.RebalanceAction, 0, len(targets))

	for _, asset := range targets.Assets() {
		diff := targets[asset].Sub(shares[asset]).Div(hundred).Mul(total)
		if diff.Abs().LessThanOrEqual(threshold) {
			continue
		}

		side := domain.SideBuy
		if diff.IsNegative() {
			side = domain.SideSell
		}
		actions = append(actions, domain.RebalanceAction{
			Asset:     asset,
			Side:      side,
			USDAmount: diff.Abs(),
		})
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].USDAmount.Equal(actions[j].USDAmount) {
			return actions[i].Asset < actions[j].Asset
		}
		return actions[i].USDAmount.GreaterThan(actions[j].USDAmount)
	})

	return &domain.Plan{
		Actions:           actions,
		CurrentAllocation: current,
		TargetAllocation:  targets,
		TotalValueUSD:     total,
		MinTradeUSD:       threshold,
	}, nil
}

// CurrentAllocation returns each holding's exact share of the portfolio in percent.
func CurrentAllocation(balances domain.Balances) (domain.AllocationTarget, error) {
	total := balances.Total()
	if !total.IsPositive() {
		return nil, errors.Wrap(domain.ErrEmptyPortfolio, "cannot derive allocation")
	}

	allocation := make(domain.AllocationTarget, len(balances))
	for _, b := range balances {
		if !b.USDValue.IsPositive() {
			continue
		}
		allocation[b.Asset] = allocation[b.Asset].Add(b.USDValue.Div(total).Mul(hundred))
	}

	return allocation, nil
}
