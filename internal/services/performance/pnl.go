package performance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

// computePnL compares the current snapshot with the initial one, net of the
// cash flows between them. flows must already be filtered to the window.
func computePnL(initial, current domain.Snapshot, flows []domain.CashFlow) *domain.PnLResult {
	deposits, withdrawals := splitFlows(flows)
	net := deposits.Sub(withdrawals)

	pnl := current.TotalValueUSD.Sub(initial.TotalValueUSD).Sub(net)
	invested := initial.TotalValueUSD.Add(net)

	pnlPercent := decimal.Zero
	if invested.IsPositive() {
		pnlPercent = pnl.DivRound(invested, divisionDigits).Mul(hundred)
	}

	return &domain.PnLResult{
		StartDate:        initial.Timestamp,
		EndDate:          current.Timestamp,
		InitialValue:     initial.TotalValueUSD,
		CurrentValue:     current.TotalValueUSD,
		TotalDeposits:    deposits,
		TotalWithdrawals: withdrawals,
		NetCashFlow:      net,
		InvestedCapital:  invested,
		PnL:              pnl,
		PnLPercent:       pnlPercent,
		InsufficientData: !current.Timestamp.After(initial.Timestamp),
	}
}

// initialSnapshot picks the first snapshot at or after end minus days,
// falling back to the very first one.
func initialSnapshot(snapshots []domain.Snapshot, end time.Time, days int) domain.Snapshot {
	if days <= 0 {
		return snapshots[0]
	}

	from := end.Add(-time.Duration(days) * day)
	for _, s := range snapshots {
		if !s.Timestamp.Before(from) {
			return s
		}
	}

	return snapshots[0]
}

// splitFlows returns total deposits and total withdrawals, both non-negative.
func splitFlows(flows []domain.CashFlow) (decimal.Decimal, decimal.Decimal) {
	deposits, withdrawals := decimal.Zero, decimal.Zero
	for _, cf := range flows {
		if cf.IsDeposit() {
			deposits = deposits.Add(cf.AmountUSD)
		} else {
			withdrawals = withdrawals.Add(cf.AmountUSD.Abs())
		}
	}

	return deposits, withdrawals
}
