package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

const (
	binanceStatusTrading     = "TRADING"
	binanceClientOrderPrefix = "folio-"
	defaultExchangeInfoTTL   = time.Minute
)

type binanceSymbol struct {
	pair           domain.Pair
	stepSize       decimal.Decimal
	quotePrecision int32
}

// BinanceGateway spot gateway backed by the Binance REST API.
type BinanceGateway struct {
	client  *binance.Client
	logger  *zap.Logger
	infoTTL time.Duration

	mu        sync.Mutex
	symbols   map[string]binanceSymbol
	fetchedAt time.Time
}

// NewBinanceGateway creates a gateway. Exchange info is memoized for infoTTL.
func NewBinanceGateway(client *binance.Client, logger *zap.Logger, infoTTL time.Duration) *BinanceGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if infoTTL <= 0 {
		infoTTL = defaultExchangeInfoTTL
	}

	return &BinanceGateway{client: client, logger: logger, infoTTL: infoTTL}
}

func (g *BinanceGateway) exchangeSymbols(ctx context.Context) (map[string]binanceSymbol, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.symbols != nil && time.Since(g.fetchedAt) < g.infoTTL {
		return g.symbols, nil
	}

	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance exchange info")
	}

	symbols := make(map[string]binanceSymbol, len(info.Symbols))
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Status != binanceStatusTrading {
			continue
		}

		entry := binanceSymbol{
			pair:           domain.Pair{From: s.BaseAsset, To: s.QuoteAsset},
			quotePrecision: int32(s.QuoteAssetPrecision),
		}
		if lot := s.LotSizeFilter(); lot != nil {
			if step, err := decimal.NewFromString(lot.StepSize); err == nil {
				entry.stepSize = step
			}
		}
		symbols[s.Symbol] = entry
	}

	g.symbols = symbols
	g.fetchedAt = time.Now()

	return symbols, nil
}

// TradeablePairs returns all spot pairs currently in TRADING status.
func (g *BinanceGateway) TradeablePairs(ctx context.Context) (domain.PairSet, error) {
	symbols, err := g.exchangeSymbols(ctx)
	if err != nil {
		return nil, err
	}

	set := make(domain.PairSet, len(symbols))
	for _, s := range symbols {
		set.Add(s.pair)
	}

	return set, nil
}

// Price returns the last traded price for the symbol.
func (g *BinanceGateway) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get binance price for %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "binance returned empty prices for %s", symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse binance price for %s", symbol)
	}

	return price, nil
}

// Balances returns account holdings worth at least minUSD.
func (g *BinanceGateway) Balances(ctx context.Context, minUSD decimal.Decimal) (domain.Balances, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance account")
	}

	holdings := make([]holding, 0, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse free balance for %s", b.Asset)
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse locked balance for %s", b.Asset)
		}
		holdings = append(holdings, holding{asset: b.Asset, free: free, locked: locked})
	}

	allPrices, err := g.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list binance prices")
	}

	prices := make(map[string]decimal.Decimal, len(allPrices))
	for _, p := range allPrices {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			continue
		}
		prices[p.Symbol] = price
	}

	return buildBalances(holdings, minUSD, func(symbol string) (decimal.Decimal, bool) {
		price, ok := prices[symbol]
		return price, ok
	}), nil
}

// SubmitMarketOrder places a spot market order. A positive QuoteQuantity is
// sent as quoteOrderQty, otherwise Quantity is floored to the LOT_SIZE step.
func (g *BinanceGateway) SubmitMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	symbols, err := g.exchangeSymbols(ctx)
	if err != nil {
		return nil, err
	}

	symbol := req.Pair.Symbol()
	info, ok := symbols[symbol]
	if !ok {
		return nil, &domain.OrderRejectedError{Symbol: symbol, Reason: "symbol is not tradeable"}
	}

	side := binance.SideTypeBuy
	if req.Side == domain.SideSell {
		side = binance.SideTypeSell
	}

	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = binanceClientOrderPrefix + uuid.NewString()[:18]
	}

	svc := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		NewClientOrderID(clientOrderID)

	if req.QuoteQuantity.IsPositive() {
		svc = svc.QuoteOrderQty(req.QuoteQuantity.RoundFloor(info.quotePrecision).String())
	} else {
		qty := floorToStep(req.Quantity, info.stepSize)
		if !qty.IsPositive() {
			return nil, &domain.OrderRejectedError{Symbol: symbol, Reason: fmt.Sprintf("quantity %s is below lot size", req.Quantity)}
		}
		svc = svc.Quantity(qty.String())
	}

	g.logger.Info("submitting binance market order",
		zap.String("symbol", symbol),
		zap.String("side", req.Side.String()),
		zap.String("quantity", req.Quantity.String()),
		zap.String("quote_quantity", req.QuoteQuantity.String()),
		zap.String("client_order_id", clientOrderID))

	resp, err := svc.Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			return nil, &domain.OrderRejectedError{Symbol: symbol, Code: apiErr.Code, Reason: apiErr.Message}
		}

		return nil, errors.Wrapf(err, "failed to place binance order for %s", symbol)
	}

	result := &domain.OrderResult{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Pair:    info.pair,
		Side:    req.Side,
		Fills:   make([]domain.Fill, 0, len(resp.Fills)),
	}
	for _, f := range resp.Fills {
		fill, err := parseBinanceFill(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse fill for order %d", resp.OrderID)
		}
		result.Fills = append(result.Fills, fill)
	}

	return result, nil
}

func parseBinanceFill(f *binance.Fill) (domain.Fill, error) {
	qty, err := decimal.NewFromString(f.Quantity)
	if err != nil {
		return domain.Fill{}, err
	}
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return domain.Fill{}, err
	}
	commission := decimal.Zero
	if f.Commission != "" {
		commission, err = decimal.NewFromString(f.Commission)
		if err != nil {
			return domain.Fill{}, err
		}
	}

	return domain.Fill{
		Quantity:        qty,
		Price:           price,
		Commission:      commission,
		CommissionAsset: f.CommissionAsset,
	}, nil
}
