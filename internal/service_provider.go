package internal

import (
	"context"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/clients"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/exchange"
	"github.com/vadiminshakov/folio/internal/storage/simstate"
)

// gateway exchange operations the engine depends on.
type gateway interface {
	Balances(ctx context.Context, minUSD decimal.Decimal) (domain.Balances, error)
	TradeablePairs(ctx context.Context) (domain.PairSet, error)
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	SubmitMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
}

// NewClient creates the exchange client for the configured platform.
func NewClient(conf config.Config) (any, error) {
	switch conf.Platform {
	case config.PlatformBinance:
		return clients.NewBinanceClient(conf.Credentials.APIKey, conf.Credentials.APISecret), nil
	case config.PlatformBybit:
		return clients.NewBybitClient(conf.Credentials.APIKey, conf.Credentials.APISecret), nil
	case config.PlatformSimulate:
		return clients.NewSimulateClient(conf.Simulate.Wallet, conf.Simulate.Prices, conf.Simulate.FeeRate, conf.Simulate.StateDir), nil
	default:
		return nil, errors.Errorf("unsupported platform: %s", conf.Platform)
	}
}

// newGateway wraps the client in its gateway implementation.
// This is the single point of dispatch on the client type.
func newGateway(client any, conf config.Config, logger *zap.Logger) (gateway, error) {
	switch c := client.(type) {
	case *binance.Client:
		return exchange.NewBinanceGateway(c, logger.Named("binance"), conf.ExchangeInfoTTL), nil
	case *bybit.Client:
		return exchange.NewBybitGateway(c, logger.Named("bybit")), nil
	case *clients.SimulateClient:
		return newSimulateGateway(c, conf, logger.Named("simulate"))
	default:
		return nil, errors.Errorf("unsupported client type: %T", client)
	}
}

func newSimulateGateway(c *clients.SimulateClient, conf config.Config, logger *zap.Logger) (gateway, error) {
	var market interface {
		TradeablePairs(ctx context.Context) (domain.PairSet, error)
		Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	}

	if prices := c.Prices(); len(prices) > 0 {
		static := exchange.NewStaticMarket()
		for pair, price := range prices {
			static.SetPrice(pair, price)
		}
		market = static
	} else {
		market = exchange.NewBinanceGateway(c.GetBinanceClient(), logger, conf.ExchangeInfoTTL)
	}

	stateDir := c.StateDir()
	if stateDir == "" {
		stateDir = conf.DataDir + "/simulate"
	}
	store, err := simstate.NewStore(stateDir, "wallet")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open simulate state")
	}

	gw, err := exchange.NewSimulateGateway(market, c.Wallet(), store, logger)
	if err != nil {
		return nil, err
	}

	return gw.WithFeeRate(c.FeeRate()), nil
}
