package exchange

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

// StaticMarket fixed price table used by the simulator when running offline.
type StaticMarket struct {
	mu     sync.RWMutex
	pairs  domain.PairSet
	prices map[string]decimal.Decimal
}

// NewStaticMarket creates an empty market.
func NewStaticMarket() *StaticMarket {
	return &StaticMarket{
		pairs:  domain.NewPairSet(),
		prices: make(map[string]decimal.Decimal),
	}
}

// SetPrice lists the pair and sets its last price.
func (m *StaticMarket) SetPrice(pair domain.Pair, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pairs.Add(pair)
	m.prices[pair.Symbol()] = price
}

// TradeablePairs returns every listed pair.
func (m *StaticMarket) TradeablePairs(_ context.Context) (domain.PairSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(domain.PairSet, len(m.pairs))
	for symbol, p := range m.pairs {
		out[symbol] = p
	}

	return out, nil
}

// Price returns the configured price for the symbol.
func (m *StaticMarket) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "no price for %s", symbol)
	}

	return price, nil
}
