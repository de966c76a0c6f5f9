// Package exchange implements exchange gateways: balances, tradeable pairs,
// prices and market orders for Binance, Bybit and a paper-trading simulator.
package exchange

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

// valuationQuotes quote assets tried, in order, when pricing a holding in USD.
var valuationQuotes = []string{"USDT", "USDC", "BUSD"}

type holding struct {
	asset  string
	free   decimal.Decimal
	locked decimal.Decimal
}

// priceLookup returns the last price for an exchange symbol.
type priceLookup func(symbol string) (decimal.Decimal, bool)

// usdValue values quantity of asset: stablecoins at par, otherwise via the
// first available {asset}{USD quote} ticker. Unpriced assets are worth zero.
func usdValue(asset string, quantity decimal.Decimal, lookup priceLookup) decimal.Decimal {
	if domain.IsStablecoin(asset) {
		return quantity
	}

	for _, quote := range valuationQuotes {
		price, ok := lookup(asset + quote)
		if ok && price.IsPositive() {
			return quantity.Mul(price)
		}
	}

	return decimal.Zero
}

// buildBalances values holdings and keeps those worth at least minUSD,
// ordered by value.
func buildBalances(holdings []holding, minUSD decimal.Decimal, lookup priceLookup) domain.Balances {
	balances := make(domain.Balances, 0, len(holdings))
	for _, h := range holdings {
		quantity := h.free.Add(h.locked)
		if !quantity.IsPositive() {
			continue
		}

		value := usdValue(h.asset, quantity, lookup)
		if value.LessThan(minUSD) {
			continue
		}

		balances = append(balances, domain.Balance{
			Asset:    h.asset,
			Quantity: quantity,
			Free:     h.free,
			Locked:   h.locked,
			USDValue: value,
		})
	}
	balances.SortByValue()

	return balances
}

// floorToStep rounds quantity down to a multiple of step. A non-positive step
// leaves the quantity untouched.
func floorToStep(quantity, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return quantity
	}

	return quantity.Div(step).Floor().Mul(step)
}
