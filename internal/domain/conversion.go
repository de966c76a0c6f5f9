package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PathType kind of conversion route.
type PathType string

const (
	PathDirect     PathType = "direct"
	PathTriangular PathType = "triangular"
)

// DirectPath single market order on a tradeable pair.
// SELL spends the base asset, BUY spends the quote asset.
type DirectPath struct {
	Pair Pair `json:"pair"`
	Side Side `json:"side"`
}

// Symbol exchange symbol of the leg.
func (d DirectPath) Symbol() string {
	return d.Pair.Symbol()
}

// Source asset spent by the leg.
func (d DirectPath) Source() string {
	if d.Side == SideSell {
		return d.Pair.From
	}
	return d.Pair.To
}

// Target asset received by the leg.
func (d DirectPath) Target() string {
	if d.Side == SideSell {
		return d.Pair.To
	}
	return d.Pair.From
}

// ConversionPath route between two assets: one direct leg, or two legs
// sharing an intermediate asset.
type ConversionPath struct {
	Type         PathType     `json:"type"`
	Intermediate string       `json:"intermediate,omitempty"`
	Legs         []DirectPath `json:"legs"`
}

// NewDirectPath builds a single-leg path.
func NewDirectPath(leg DirectPath) *ConversionPath {
	return &ConversionPath{Type: PathDirect, Legs: []DirectPath{leg}}
}

// NewTriangularPath builds a two-leg path through intermediate.
func NewTriangularPath(intermediate string, leg1, leg2 DirectPath) *ConversionPath {
	return &ConversionPath{Type: PathTriangular, Intermediate: intermediate, Legs: []DirectPath{leg1, leg2}}
}

// String renders the route, e.g. BTC->USDT->ETH.
func (p *ConversionPath) String() string {
	if p == nil || len(p.Legs) == 0 {
		return ""
	}

	hops := []string{p.Legs[0].Source()}
	for _, leg := range p.Legs {
		hops = append(hops, leg.Target())
	}

	return strings.Join(hops, "->")
}

// ConversionResult outcome of an executed conversion.
type ConversionResult struct {
	From           string                     `json:"from"`
	To             string                     `json:"to"`
	Amount         decimal.Decimal            `json:"amount"`
	Path           *ConversionPath            `json:"path"`
	Orders         []OrderResult              `json:"orders"`
	ReceivedAmount decimal.Decimal            `json:"received_amount"`
	Fees           map[string]decimal.Decimal `json:"fees"`
	TotalFeeUSD    decimal.Decimal            `json:"total_fee_usd"`
}

// ConversionStatus outcome of a recorded conversion.
type ConversionStatus string

const (
	ConversionSuccess ConversionStatus = "SUCCESS"
	ConversionFailed  ConversionStatus = "FAILED"
)

// ConversionRecord history entry for a conversion attempt.
type ConversionRecord struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"ts"`
	FromAsset    string           `json:"from_asset"`
	ToAsset      string           `json:"to_asset"`
	Amount       decimal.Decimal  `json:"amount"`
	ResultAmount decimal.Decimal  `json:"result_amount"`
	FeeUSD       decimal.Decimal  `json:"fee_usd"`
	PathType     PathType         `json:"path_type,omitempty"`
	Status       ConversionStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
}
