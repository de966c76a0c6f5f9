package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/storage/simstate"
	"go.uber.org/zap"
)

// insufficientBalanceCode mirrors Binance's "account has insufficient balance" rejection.
const insufficientBalanceCode = -2010

var defaultSimulateFeeRate = decimal.RequireFromString("0.001")

type marketData interface {
	TradeablePairs(ctx context.Context) (domain.PairSet, error)
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// SimulateGateway paper-trading gateway: real or static market data, local wallet.
type SimulateGateway struct {
	mu      sync.Mutex
	market  marketData
	wallet  map[string]decimal.Decimal
	orders  int64
	feeRate decimal.Decimal
	store   *simstate.Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewSimulateGateway creates a simulator. A wallet persisted in store takes
// precedence over initial.
func NewSimulateGateway(market marketData, initial map[string]decimal.Decimal, store *simstate.Store, logger *zap.Logger) (*SimulateGateway, error) {
	if market == nil {
		return nil, errors.New("market data is required for SimulateGateway")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &SimulateGateway{
		market:  market,
		wallet:  make(map[string]decimal.Decimal, len(initial)),
		feeRate: defaultSimulateFeeRate,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
	for asset, amount := range initial {
		g.wallet[domain.NormalizeAsset(asset)] = amount
	}

	if err := g.restoreState(); err != nil {
		logger.Warn("failed to restore simulate state", zap.Error(err))
	}

	logger.Info("simulate init", zap.Int("assets", len(g.wallet)), zap.Int64("orders", g.orders))

	return g, nil
}

// WithFeeRate overrides the taker fee rate.
func (g *SimulateGateway) WithFeeRate(rate decimal.Decimal) *SimulateGateway {
	g.feeRate = rate
	return g
}

func (g *SimulateGateway) restoreState() error {
	if g.store == nil {
		return nil
	}

	state, err := g.store.Load()
	if err != nil || state == nil {
		return err
	}

	wallet, err := state.WalletAmounts()
	if err != nil {
		return err
	}
	g.wallet = wallet
	g.orders = state.Orders

	return nil
}

func (g *SimulateGateway) persist() {
	if g.store == nil {
		return
	}
	if err := g.store.Save(simstate.NewState(g.wallet, g.orders, g.now())); err != nil {
		g.logger.Warn("failed to persist simulate state", zap.Error(err))
	}
}

// TradeablePairs delegates to the market data source.
func (g *SimulateGateway) TradeablePairs(ctx context.Context) (domain.PairSet, error) {
	return g.market.TradeablePairs(ctx)
}

// Price delegates to the market data source.
func (g *SimulateGateway) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return g.market.Price(ctx, symbol)
}

// Balances values the paper wallet.
func (g *SimulateGateway) Balances(ctx context.Context, minUSD decimal.Decimal) (domain.Balances, error) {
	g.mu.Lock()
	holdings := make([]holding, 0, len(g.wallet))
	for asset, amount := range g.wallet {
		holdings = append(holdings, holding{asset: asset, free: amount, locked: decimal.Zero})
	}
	g.mu.Unlock()

	sort.Slice(holdings, func(i, j int) bool { return holdings[i].asset < holdings[j].asset })

	return buildBalances(holdings, minUSD, func(symbol string) (decimal.Decimal, bool) {
		price, err := g.market.Price(ctx, symbol)
		if err != nil {
			return decimal.Zero, false
		}
		return price, true
	}), nil
}

// SubmitMarketOrder fills the whole order at the current price, charging the
// fee in the received asset.
func (g *SimulateGateway) SubmitMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	symbol := req.Pair.Symbol()

	pairs, err := g.market.TradeablePairs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tradeable pairs")
	}
	if _, ok := pairs.Lookup(req.Pair.From, req.Pair.To); !ok {
		return nil, &domain.OrderRejectedError{Symbol: symbol, Reason: "symbol is not tradeable"}
	}

	price, err := g.market.Price(ctx, symbol)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get price for simulated order")
	}
	if !price.IsPositive() {
		return nil, errors.Wrapf(domain.ErrPriceUnavailable, "non-positive price for %s", symbol)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var (
		baseQty    decimal.Decimal
		quoteQty   decimal.Decimal
		commission decimal.Decimal
		feeAsset   string
	)

	switch req.Side {
	case domain.SideBuy:
		if req.QuoteQuantity.IsPositive() {
			quoteQty = req.QuoteQuantity
			baseQty = quoteQty.Div(price)
		} else {
			baseQty = req.Quantity
			quoteQty = baseQty.Mul(price)
		}
		if !baseQty.IsPositive() {
			return nil, errors.Errorf("buy amount must be positive, got %s", baseQty)
		}
		if g.wallet[req.Pair.To].LessThan(quoteQty) {
			return nil, g.insufficient(symbol, req.Pair.To, quoteQty)
		}
		commission = baseQty.Mul(g.feeRate)
		feeAsset = req.Pair.From
		g.wallet[req.Pair.To] = g.wallet[req.Pair.To].Sub(quoteQty)
		g.wallet[req.Pair.From] = g.wallet[req.Pair.From].Add(baseQty.Sub(commission))
	case domain.SideSell:
		baseQty = req.Quantity
		if !baseQty.IsPositive() {
			return nil, errors.Errorf("sell amount must be positive, got %s", baseQty)
		}
		if g.wallet[req.Pair.From].LessThan(baseQty) {
			return nil, g.insufficient(symbol, req.Pair.From, baseQty)
		}
		quoteQty = baseQty.Mul(price)
		commission = quoteQty.Mul(g.feeRate)
		feeAsset = req.Pair.To
		g.wallet[req.Pair.From] = g.wallet[req.Pair.From].Sub(baseQty)
		g.wallet[req.Pair.To] = g.wallet[req.Pair.To].Add(quoteQty.Sub(commission))
	default:
		return nil, errors.Errorf("unknown order side %q", req.Side)
	}

	g.orders++
	g.persist()

	g.logger.Info("simulated market order",
		zap.String("symbol", symbol),
		zap.String("side", req.Side.String()),
		zap.String("qty", baseQty.String()),
		zap.String("price", price.String()),
		zap.String("fee", commission.String()),
		zap.String("fee_asset", feeAsset))

	return &domain.OrderResult{
		OrderID: fmt.Sprintf("sim-%d", g.orders),
		Pair:    req.Pair,
		Side:    req.Side,
		Fills: []domain.Fill{{
			Quantity:        baseQty,
			Price:           price,
			Commission:      commission,
			CommissionAsset: feeAsset,
		}},
	}, nil
}

func (g *SimulateGateway) insufficient(symbol, asset string, need decimal.Decimal) error {
	return &domain.OrderRejectedError{
		Symbol: symbol,
		Code:   insufficientBalanceCode,
		Reason: fmt.Sprintf("insufficient %s balance: have %s, need %s", asset, g.wallet[asset], need),
	}
}
