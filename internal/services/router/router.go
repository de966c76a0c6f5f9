// Package router finds and executes conversions between two assets, either
// through a directly tradeable pair or through one intermediate asset.
package router

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

const defaultLegDelay = 200 * time.Millisecond

var (
	// DefaultIntermediates preference order for triangular routes.
	DefaultIntermediates = []string{"USDT", "USDC", "BTC"}

	// second-leg spend ratio, leaving room for fees and rounding on the first leg
	secondLegMargin = decimal.RequireFromString("0.999")
)

type gateway interface {
	TradeablePairs(ctx context.Context) (domain.PairSet, error)
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	SubmitMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
}

// Router resolves conversion paths against the gateway's current listings.
// Paths are recomputed on every call.
type Router struct {
	gateway       gateway
	fees          *FeeValuer
	intermediates []string
	legDelay      time.Duration
	logger        *zap.Logger
}

// Option configures the Router.
type Option func(*Router)

// WithIntermediates sets the triangular intermediate preference order.
func WithIntermediates(assets ...string) Option {
	return func(r *Router) {
		r.intermediates = make([]string, 0, len(assets))
		for _, a := range assets {
			r.intermediates = append(r.intermediates, domain.NormalizeAsset(a))
		}
	}
}

// WithLegDelay sets the pause between the two legs of a triangular conversion.
func WithLegDelay(d time.Duration) Option {
	return func(r *Router) {
		r.legDelay = d
	}
}

// WithReportingAsset sets the asset fees are reported in.
func WithReportingAsset(asset string) Option {
	return func(r *Router) {
		r.fees = NewFeeValuer(r.gateway, domain.NormalizeAsset(asset), r.logger)
	}
}

// New creates a Router over the gateway.
func New(gw gateway, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		gateway:       gw,
		intermediates: DefaultIntermediates,
		legDelay:      defaultLegDelay,
		logger:        logger,
	}
	r.fees = NewFeeValuer(gw, domain.DefaultReferenceAsset, logger)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// FeeValuer exposes the valuer used for fee reporting.
func (r *Router) FeeValuer() *FeeValuer {
	return r.fees
}

// FindPath returns the route from one asset to another, or nil when the
// assets are equal or no route exists.
func (r *Router) FindPath(ctx context.Context, from, to string) (*domain.ConversionPath, error) {
	from, to = domain.NormalizeAsset(from), domain.NormalizeAsset(to)
	if from == to {
		return nil, nil
	}

	pairs, err := r.gateway.TradeablePairs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tradeable pairs")
	}

	return findPath(pairs, from, to, r.intermediates), nil
}

func findPath(pairs domain.PairSet, from, to string, intermediates []string) *domain.ConversionPath {
	if leg, ok := directLeg(pairs, from, to); ok {
		return domain.NewDirectPath(leg)
	}

	for _, via := range intermediates {
		if via == from || via == to {
			continue
		}
		leg1, ok := directLeg(pairs, from, via)
		if !ok {
			continue
		}
		leg2, ok := directLeg(pairs, via, to)
		if !ok {
			continue
		}

		return domain.NewTriangularPath(via, leg1, leg2)
	}

	return nil
}

// directLeg prefers selling on {from}{to} and falls back to buying on {to}{from}.
func directLeg(pairs domain.PairSet, from, to string) (domain.DirectPath, bool) {
	if p, ok := pairs.Lookup(from, to); ok {
		return domain.DirectPath{Pair: p, Side: domain.SideSell}, true
	}
	if p, ok := pairs.Lookup(to, from); ok {
		return domain.DirectPath{Pair: p, Side: domain.SideBuy}, true
	}

	return domain.DirectPath{}, false
}

// Quote estimates how much of to is obtained for amount of from at current prices.
func (r *Router) Quote(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	from, to = domain.NormalizeAsset(from), domain.NormalizeAsset(to)
	if from == to {
		return amount, nil
	}

	path, err := r.FindPath(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if path == nil {
		return decimal.Zero, errors.Wrapf(domain.ErrNoConversionPath, "%s -> %s", from, to)
	}

	out := amount
	for _, leg := range path.Legs {
		price, err := r.gateway.Price(ctx, leg.Symbol())
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "failed to price %s", leg.Symbol())
		}
		if !price.IsPositive() {
			return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "non-positive price for %s", leg.Symbol())
		}

		if leg.Side == domain.SideSell {
			out = out.Mul(price)
		} else {
			out = out.Div(price)
		}
	}

	return out, nil
}

// Execute converts amount of from into to with market orders. Orders are
// never retried; an exchange refusal surfaces as domain.ErrOrderRejected.
func (r *Router) Execute(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.ConversionResult, error) {
	from, to = domain.NormalizeAsset(from), domain.NormalizeAsset(to)
	if from == to {
		return nil, errors.Wrap(domain.ErrSameAsset, from)
	}
	if !amount.IsPositive() {
		return nil, errors.Errorf("conversion amount must be positive, got %s", amount)
	}

	path, err := r.FindPath(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, errors.Wrapf(domain.ErrNoConversionPath, "%s -> %s", from, to)
	}

	logger := r.logger.With(zap.String("from", from), zap.String("to", to), zap.String("path", path.String()))
	logger.Info("executing conversion", zap.String("amount", amount.String()), zap.String("type", string(path.Type)))

	orders := make([]domain.OrderResult, 0, len(path.Legs))
	spend := amount
	received := decimal.Zero

	for i, leg := range path.Legs {
		if i > 0 {
			if err := sleep(ctx, r.legDelay); err != nil {
				return nil, err
			}
			spend = received.Mul(secondLegMargin)
		}

		order, err := r.gateway.SubmitMarketOrder(ctx, legOrder(leg, spend))
		if err != nil {
			if i > 0 {
				logger.Error("conversion stopped after first leg, intermediate asset is held",
					zap.String("intermediate", path.Intermediate),
					zap.String("held", received.String()),
					zap.Error(err))
			}

			return nil, errors.Wrapf(err, "leg %d (%s %s)", i+1, leg.Side, leg.Symbol())
		}

		orders = append(orders, *order)
		received = order.Received()

		logger.Debug("conversion leg filled",
			zap.Int("leg", i+1),
			zap.String("symbol", leg.Symbol()),
			zap.String("spent", spend.String()),
			zap.String("received", received.String()))
	}

	fees := aggregateFees(orders)
	result := &domain.ConversionResult{
		From:           from,
		To:             to,
		Amount:         amount,
		Path:           path,
		Orders:         orders,
		ReceivedAmount: received,
		Fees:           fees,
		TotalFeeUSD:    r.fees.Total(ctx, fees),
	}

	logger.Info("conversion completed",
		zap.String("received", received.String()),
		zap.String("fee_usd", result.TotalFeeUSD.String()))

	return result, nil
}

// legOrder sells spend of the base asset, or buys spending spend of the quote asset.
func legOrder(leg domain.DirectPath, spend decimal.Decimal) domain.OrderRequest {
	req := domain.OrderRequest{Pair: leg.Pair, Side: leg.Side}
	if leg.Side == domain.SideSell {
		req.Quantity = spend
	} else {
		req.QuoteQuantity = spend
	}

	return req
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
