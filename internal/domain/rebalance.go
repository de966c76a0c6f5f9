package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RebalanceAction single planned buy or sell of an asset, sized in USD.
type RebalanceAction struct {
	Asset     string          `json:"asset"`
	Side      Side            `json:"side"`
	USDAmount decimal.Decimal `json:"usd_amount"`
}

// Plan ordered rebalancing actions with the allocation they were derived from.
type Plan struct {
	Actions           []RebalanceAction          `json:"actions"`
	CurrentAllocation map[string]decimal.Decimal `json:"current_allocation"`
	TargetAllocation  AllocationTarget           `json:"target_allocation"`
	TotalValueUSD     decimal.Decimal            `json:"total_value_usd"`
	MinTradeUSD       decimal.Decimal            `json:"min_trade_usd"`
}

// ActionResult outcome of one executed action.
type ActionResult struct {
	Asset     string          `json:"asset"`
	Side      Side            `json:"side"`
	USDAmount decimal.Decimal `json:"usd_amount"`
	Success   bool            `json:"success"`
	Skipped   bool            `json:"skipped,omitempty"`
	Message   string          `json:"message"`
	FeesUSD   decimal.Decimal `json:"fees_usd"`
	Path      string          `json:"path,omitempty"`
}

// ExecutionReport per-action outcomes of a plan execution.
type ExecutionReport struct {
	ReferenceAsset string          `json:"reference_asset"`
	Results        []ActionResult  `json:"results"`
	TotalFeesUSD   decimal.Decimal `json:"total_fees_usd"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}

// Succeeded number of successful actions.
func (r ExecutionReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}

	return n
}
