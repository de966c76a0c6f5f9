package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Balance holding of a single asset valued in USD at fetch time.
type Balance struct {
	Asset    string          `json:"asset"`
	Quantity decimal.Decimal `json:"quantity"`
	Free     decimal.Decimal `json:"free"`
	Locked   decimal.Decimal `json:"locked"`
	USDValue decimal.Decimal `json:"usd_value"`
}

// Price implied USD price per unit, zero when the quantity is zero.
func (b Balance) Price() decimal.Decimal {
	if b.Quantity.IsZero() {
		return decimal.Zero
	}

	return b.USDValue.Div(b.Quantity)
}

// Balances list of holdings.
type Balances []Balance

// Total sum of USD values.
func (bs Balances) Total() decimal.Decimal {
	total := decimal.Zero
	for _, b := range bs {
		total = total.Add(b.USDValue)
	}

	return total
}

// Find returns the balance for the asset.
func (bs Balances) Find(asset string) (Balance, bool) {
	for _, b := range bs {
		if b.Asset == asset {
			return b, true
		}
	}

	return Balance{}, false
}

// SortByValue orders balances by USD value, largest first.
func (bs Balances) SortByValue() {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].USDValue.Equal(bs[j].USDValue) {
			return bs[i].Asset < bs[j].Asset
		}
		return bs[i].USDValue.GreaterThan(bs[j].USDValue)
	})
}
