package router

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

type priceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// FeeValuer converts commission amounts into the reporting asset using direct
// price lookups only. It never places orders.
type FeeValuer struct {
	prices    priceSource
	reporting string
	logger    *zap.Logger
}

// NewFeeValuer creates a valuer reporting in the given asset (USDT when empty).
func NewFeeValuer(prices priceSource, reporting string, logger *zap.Logger) *FeeValuer {
	if reporting == "" {
		reporting = domain.DefaultReferenceAsset
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FeeValuer{prices: prices, reporting: reporting, logger: logger}
}

// Value returns amount of asset expressed in the reporting asset. Stablecoins
// count at par; otherwise {asset}{reporting} or {reporting}{asset} is used.
// Unpriceable fees are logged and valued at zero.
func (f *FeeValuer) Value(ctx context.Context, asset string, amount decimal.Decimal) decimal.Decimal {
	if amount.IsZero() {
		return decimal.Zero
	}
	if asset == f.reporting || domain.IsStablecoin(asset) {
		return amount
	}

	if price, err := f.prices.Price(ctx, asset+f.reporting); err == nil && price.IsPositive() {
		return amount.Mul(price)
	}
	if price, err := f.prices.Price(ctx, f.reporting+asset); err == nil && price.IsPositive() {
		return amount.Div(price)
	}

	f.logger.Warn("cannot value fee, counting it as zero",
		zap.String("asset", asset),
		zap.String("amount", amount.String()),
		zap.String("reporting", f.reporting))

	return decimal.Zero
}

// Total sums the value of every fee asset.
func (f *FeeValuer) Total(ctx context.Context, fees map[string]decimal.Decimal) decimal.Decimal {
	assets := make([]string, 0, len(fees))
	for asset := range fees {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	total := decimal.Zero
	for _, asset := range assets {
		total = total.Add(f.Value(ctx, asset, fees[asset]))
	}

	return total
}

// aggregateFees sums commissions per asset over all fills of all orders.
func aggregateFees(orders []domain.OrderResult) map[string]decimal.Decimal {
	fees := make(map[string]decimal.Decimal)
	for _, o := range orders {
		for _, fill := range o.Fills {
			if fill.Commission.IsZero() || fill.CommissionAsset == "" {
				continue
			}
			fees[fill.CommissionAsset] = fees[fill.CommissionAsset].Add(fill.Commission)
		}
	}

	return fees
}
