// Package performance computes time-weighted returns and profit and loss
// from portfolio snapshots and external cash flows.
package performance

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

const (
	day            = 24 * time.Hour
	daysPerYear    = 365
	divisionDigits = 16
)

var hundred = decimal.NewFromInt(100)

// event one point of the merged snapshot/cash-flow timeline.
type event struct {
	ts       time.Time
	snapshot *domain.Snapshot
	flow     decimal.Decimal
}

// computeTWR chains sub-period returns between consecutive snapshots.
// Cash flows between two snapshots adjust the starting value of the period
// they fall into. Inputs must already be filtered to the window and sorted.
func computeTWR(snapshots []domain.Snapshot, flows []domain.CashFlow, start, end time.Time) (*domain.TWRResult, error) {
	if len(snapshots) < 2 {
		return nil, domain.ErrInsufficientData
	}

	events := make([]event, 0, len(snapshots)-1+len(flows))
	for i := 1; i < len(snapshots); i++ {
		events = append(events, event{ts: snapshots[i].Timestamp, snapshot: &snapshots[i]})
	}
	for _, cf := range flows {
		events = append(events, event{ts: cf.Timestamp, flow: cf.AmountUSD})
	}
	// snapshots precede cash flows sharing a timestamp
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ts.Before(events[j].ts)
	})

	growth := decimal.NewFromInt(1)
	periodStart := snapshots[0].TotalValueUSD
	pending := decimal.Zero
	periods, skipped := 0, 0

	for _, e := range events {
		if e.snapshot == nil {
			pending = pending.Add(e.flow)
			continue
		}

		adjusted := periodStart.Add(pending)
		if adjusted.IsPositive() {
			r := e.snapshot.TotalValueUSD.Sub(adjusted).DivRound(adjusted, divisionDigits)
			growth = growth.Mul(decimal.NewFromInt(1).Add(r))
			periods++
		} else {
			skipped++
		}

		periodStart = e.snapshot.TotalValueUSD
		pending = decimal.Zero
	}

	if start.IsZero() {
		start = snapshots[0].Timestamp
	}
	if end.IsZero() {
		end = snapshots[len(snapshots)-1].Timestamp
	}

	total := growth.Sub(decimal.NewFromInt(1))
	days := wholeDays(start, end)

	return &domain.TWRResult{
		Start:          start,
		End:            end,
		Days:           days,
		TWR:            total,
		Annualized:     annualize(total, days),
		Periods:        periods,
		SkippedPeriods: skipped,
		StartValue:     snapshots[0].TotalValueUSD,
		EndValue:       snapshots[len(snapshots)-1].TotalValueUSD,
	}, nil
}

// annualize scales a total return to a yearly rate for windows of at most a
// year. Rates that overflow a float64 are reported as not applicable.
func annualize(total decimal.Decimal, days int) *decimal.Decimal {
	if days <= 0 || days > daysPerYear {
		return nil
	}

	base, _ := decimal.NewFromInt(1).Add(total).Float64()
	if base < 0 {
		return nil
	}

	annual := math.Pow(base, float64(daysPerYear)/float64(days)) - 1
	if math.IsInf(annual, 0) || math.IsNaN(annual) {
		return nil
	}

	rate := decimal.NewFromFloat(annual)

	return &rate
}

func wholeDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}

	return int(end.Sub(start) / day)
}
