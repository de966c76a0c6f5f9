package domain

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred             = decimal.NewFromInt(100)
	allocationTolerance = decimal.NewFromFloat(0.01)
)

// AllocationTarget target share of total portfolio value per asset, in percent.
type AllocationTarget map[string]decimal.Decimal

// Validate checks that no target is negative and the targets sum to 100 within 0.01.
func (a AllocationTarget) Validate() error {
	if len(a) == 0 {
		return errors.Wrap(ErrInvalidAllocation, "no targets")
	}

	sum := decimal.Zero
	for _, asset := range a.Assets() {
		pct := a[asset]
		if asset == "" {
			return errors.Wrap(ErrInvalidAllocation, "empty asset symbol")
		}
		if pct.IsNegative() {
			return errors.Wrapf(ErrInvalidAllocation, "negative target for %s: %s", asset, pct)
		}
		sum = sum.Add(pct)
	}

	if sum.Sub(hundred).Abs().GreaterThan(allocationTolerance) {
		return errors.Wrapf(ErrInvalidAllocation, "targets sum to %s%%, expected 100%%", sum)
	}

	return nil
}

// Assets returns the target assets sorted alphabetically.
func (a AllocationTarget) Assets() []string {
	assets := make([]string, 0, len(a))
	for asset := range a {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	return assets
}

// Normalize returns a copy with upper-cased asset symbols.
func (a AllocationTarget) Normalize() AllocationTarget {
	out := make(AllocationTarget, len(a))
	for asset, pct := range a {
		out[NormalizeAsset(asset)] = pct
	}

	return out
}
