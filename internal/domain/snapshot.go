package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot total portfolio valuation at a point in time.
// TWR, PnL and PnLPercent memoize from-inception figures computed when the
// snapshot was taken; they are never read back by the calculators.
type Snapshot struct {
	Timestamp     time.Time        `json:"ts"`
	TotalValueUSD decimal.Decimal  `json:"total_value_usd"`
	TWR           *decimal.Decimal `json:"twr,omitempty"`
	PnL           *decimal.Decimal `json:"pnl,omitempty"`
	PnLPercent    *decimal.Decimal `json:"pnl_percent,omitempty"`
}

// SnapshotRecord bundles a snapshot with its position in the log.
type SnapshotRecord struct {
	Index    uint64
	Snapshot Snapshot
}

// InWindow reports whether ts lies within [start, end]. Zero bounds are open.
func InWindow(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}

	return true
}
