// Package clients constructs exchange API clients for the configured platform.
package clients

import (
	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

// SimulateClient paper trading account. Market data comes from the Binance
// public API unless a fixed price table is given.
type SimulateClient struct {
	binanceClient *binance.Client
	wallet        map[string]decimal.Decimal
	prices        map[domain.Pair]decimal.Decimal
	feeRate       decimal.Decimal
	stateDir      string
}

// NewSimulateClient creates a simulated account seeded with wallet on first use.
func NewSimulateClient(wallet map[string]decimal.Decimal, prices map[domain.Pair]decimal.Decimal, feeRate decimal.Decimal, stateDir string) *SimulateClient {
	c := &SimulateClient{
		wallet:   wallet,
		prices:   prices,
		feeRate:  feeRate,
		stateDir: stateDir,
	}
	if len(prices) == 0 {
		// public endpoints only
		c.binanceClient = binance.NewClient("", "")
	}

	return c
}

// GetBinanceClient returns the public market data client, nil with a fixed price table.
func (c *SimulateClient) GetBinanceClient() *binance.Client {
	return c.binanceClient
}

// Wallet initial balances.
func (c *SimulateClient) Wallet() map[string]decimal.Decimal {
	return c.wallet
}

// Prices fixed price table, empty when live prices are used.
func (c *SimulateClient) Prices() map[domain.Pair]decimal.Decimal {
	return c.prices
}

// FeeRate commission charged on every simulated fill.
func (c *SimulateClient) FeeRate() decimal.Decimal {
	return c.feeRate
}

// StateDir directory of the persisted paper wallet.
func (c *SimulateClient) StateDir() string {
	return c.stateDir
}
