package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TWRResult time-weighted return over a window. TWR and Annualized are
// fractions (0.05 is 5%); Annualized is nil when not applicable.
type TWRResult struct {
	Start          time.Time        `json:"start"`
	End            time.Time        `json:"end"`
	Days           int              `json:"days"`
	TWR            decimal.Decimal  `json:"twr"`
	Annualized     *decimal.Decimal `json:"annualized,omitempty"`
	Periods        int              `json:"periods"`
	SkippedPeriods int              `json:"skipped_periods"`
	StartValue     decimal.Decimal  `json:"start_value"`
	EndValue       decimal.Decimal  `json:"end_value"`
}

// TWRPercent total return in percent.
func (r TWRResult) TWRPercent() decimal.Decimal {
	return r.TWR.Mul(hundred)
}

// AnnualizedPercent annualized return in percent, nil when not applicable.
func (r TWRResult) AnnualizedPercent() *decimal.Decimal {
	if r.Annualized == nil {
		return nil
	}
	pct := r.Annualized.Mul(hundred)

	return &pct
}

// PnLResult profit and loss over a window. InsufficientData is set when
// fewer than two snapshots back the figures.
type PnLResult struct {
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	InitialValue     decimal.Decimal `json:"initial_value"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	NetCashFlow      decimal.Decimal `json:"net_cash_flow"`
	InvestedCapital  decimal.Decimal `json:"invested_capital"`
	PnL              decimal.Decimal `json:"pnl"`
	PnLPercent       decimal.Decimal `json:"pnl_percent"`
	InsufficientData bool            `json:"insufficient_data"`
}

// TrackingStats overview of the recorded timeline.
type TrackingStats struct {
	TrackingDays     int             `json:"tracking_days"`
	SnapshotCount    int             `json:"snapshot_count"`
	CashFlowCount    int             `json:"cash_flow_count"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	FirstSnapshot    *time.Time      `json:"first_snapshot,omitempty"`
	LastSnapshot     *time.Time      `json:"last_snapshot,omitempty"`
}

// TWRPoint memoized from-inception return at a snapshot.
type TWRPoint struct {
	Timestamp     time.Time       `json:"ts"`
	TWRPercent    decimal.Decimal `json:"twr_percent"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
}
