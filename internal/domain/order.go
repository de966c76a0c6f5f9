package domain

import "github.com/shopspring/decimal"

// OrderRequest market order. Quantity is in the base asset; QuoteQuantity,
// when positive, is the quote amount to spend instead.
type OrderRequest struct {
	Pair          Pair
	Side          Side
	Quantity      decimal.Decimal
	QuoteQuantity decimal.Decimal
	ClientOrderID string
}

// Fill partial execution of an order.
type Fill struct {
	Quantity        decimal.Decimal `json:"qty"`
	Price           decimal.Decimal `json:"price"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commission_asset"`
}

// OrderResult executed market order.
type OrderResult struct {
	OrderID string `json:"order_id"`
	Pair    Pair   `json:"pair"`
	Side    Side   `json:"side"`
	Fills   []Fill `json:"fills"`
}

// ExecutedQuantity base asset quantity filled.
func (o OrderResult) ExecutedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, f := range o.Fills {
		total = total.Add(f.Quantity)
	}

	return total
}

// QuoteQuantity quote asset amount exchanged.
func (o OrderResult) QuoteQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, f := range o.Fills {
		total = total.Add(f.Quantity.Mul(f.Price))
	}

	return total
}

// Received amount of the target asset obtained by the order:
// quote proceeds for a SELL, base quantity for a BUY.
func (o OrderResult) Received() decimal.Decimal {
	if o.Side == SideSell {
		return o.QuoteQuantity()
	}

	return o.ExecutedQuantity()
}
