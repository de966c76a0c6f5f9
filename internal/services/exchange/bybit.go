package exchange

import (
	"context"
	"strings"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

const bybitStatusTrading = "Trading"

// BybitGateway spot gateway backed by the Bybit V5 API (unified account).
type BybitGateway struct {
	client *bybit.Client
	logger *zap.Logger
}

// NewBybitGateway creates a gateway.
func NewBybitGateway(client *bybit.Client, logger *zap.Logger) *BybitGateway {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BybitGateway{client: client, logger: logger}
}

// TradeablePairs returns spot instruments in Trading status.
func (g *BybitGateway) TradeablePairs(ctx context.Context) (domain.PairSet, error) {
	res, err := g.client.V5().Market().GetInstrumentsInfo(bybit.V5GetInstrumentsInfoParam{
		Category: "spot",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit instruments")
	}
	if res.Result.Spot == nil {
		return domain.NewPairSet(), nil
	}

	set := make(domain.PairSet, len(res.Result.Spot.List))
	for _, item := range res.Result.Spot.List {
		if string(item.Status) != bybitStatusTrading {
			continue
		}
		set.Add(domain.Pair{From: string(item.BaseCoin), To: string(item.QuoteCoin)})
	}

	return set, nil
}

// Price returns the last traded price for the symbol.
func (g *BybitGateway) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym := bybit.SymbolV5(symbol)
	res, err := g.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &sym,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get bybit price for %s", symbol)
	}
	if res.Result.Spot == nil || len(res.Result.Spot.List) == 0 {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "bybit returned empty prices for %s", symbol)
	}

	price, err := decimal.NewFromString(res.Result.Spot.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse bybit price for %s", symbol)
	}

	return price, nil
}

// Balances returns unified account holdings worth at least minUSD.
func (g *BybitGateway) Balances(ctx context.Context, minUSD decimal.Decimal) (domain.Balances, error) {
	res, err := g.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit wallet balance")
	}
	if len(res.Result.List) == 0 {
		return domain.Balances{}, nil
	}

	holdings := make([]holding, 0, len(res.Result.List[0].Coin))
	for _, coin := range res.Result.List[0].Coin {
		total, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil {
			continue
		}
		locked := decimal.Zero
		if coin.Locked != "" {
			if l, err := decimal.NewFromString(coin.Locked); err == nil {
				locked = l
			}
		}
		holdings = append(holdings, holding{asset: string(coin.Coin), free: total.Sub(locked), locked: locked})
	}

	tickers, err := g.client.V5().Market().GetTickers(bybit.V5GetTickersParam{Category: "spot"})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bybit tickers")
	}

	prices := make(map[string]decimal.Decimal)
	if tickers.Result.Spot != nil {
		for _, t := range tickers.Result.Spot.List {
			price, err := decimal.NewFromString(t.LastPrice)
			if err != nil {
				continue
			}
			prices[string(t.Symbol)] = price
		}
	}

	return buildBalances(holdings, minUSD, func(symbol string) (decimal.Decimal, bool) {
		price, ok := prices[symbol]
		return price, ok
	}), nil
}

// SubmitMarketOrder places a spot market order. Bybit interprets the qty of a
// spot market buy in the quote coin, so BUY orders require QuoteQuantity.
// The create endpoint returns no fills; the executed order is read back from
// order history and reported as a single fill at the average price.
func (g *BybitGateway) SubmitMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	symbol := req.Pair.Symbol()

	param := bybit.V5CreateOrderParam{
		Category:  "spot",
		Symbol:    bybit.SymbolV5(symbol),
		OrderType: bybit.OrderTypeMarket,
	}

	switch req.Side {
	case domain.SideBuy:
		if !req.QuoteQuantity.IsPositive() {
			return nil, &domain.OrderRejectedError{Symbol: symbol, Reason: "bybit spot market buy requires a quote amount"}
		}
		param.Side = bybit.SideBuy
		param.Qty = req.QuoteQuantity.RoundFloor(8).String()
	case domain.SideSell:
		param.Side = bybit.SideSell
		param.Qty = req.Quantity.RoundFloor(8).String()
	default:
		return nil, errors.Errorf("unknown order side %q", req.Side)
	}

	if req.ClientOrderID != "" {
		linkID := req.ClientOrderID
		param.OrderLinkID = &linkID
	}

	g.logger.Info("submitting bybit market order",
		zap.String("symbol", symbol),
		zap.String("side", req.Side.String()),
		zap.String("qty", param.Qty))

	created, err := g.client.V5().Order().CreateOrder(param)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "insufficient") {
			return nil, &domain.OrderRejectedError{Symbol: symbol, Reason: err.Error()}
		}

		return nil, errors.Wrapf(err, "failed to create bybit order for %s", symbol)
	}

	orderID := created.Result.OrderID
	history, err := g.client.V5().Order().GetHistoryOrders(bybit.V5GetHistoryOrdersParam{
		Category: "spot",
		OrderID:  &orderID,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read bybit order %s", orderID)
	}

	result := &domain.OrderResult{
		OrderID: orderID,
		Pair:    req.Pair,
		Side:    req.Side,
	}
	if len(history.Result.List) == 0 {
		g.logger.Warn("bybit order not found in history", zap.String("order_id", orderID))
		return result, nil
	}

	order := history.Result.List[0]
	qty, err := decimal.NewFromString(order.CumExecQty)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse executed qty of %s", orderID)
	}
	price, err := decimal.NewFromString(order.AvgPrice)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse average price of %s", orderID)
	}
	fee := decimal.Zero
	if order.CumExecFee != "" {
		if f, err := decimal.NewFromString(order.CumExecFee); err == nil {
			fee = f
		}
	}

	// spot fees are charged in the received asset
	feeAsset := req.Pair.From
	if req.Side == domain.SideSell {
		feeAsset = req.Pair.To
	}

	result.Fills = []domain.Fill{{
		Quantity:        qty,
		Price:           price,
		Commission:      fee,
		CommissionAsset: feeAsset,
	}}

	return result, nil
}
