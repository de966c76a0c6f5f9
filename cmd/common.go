package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal"
)

type globalOptions struct {
	configPath string
	debug      bool
}

func (o *globalOptions) logger() *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if o.debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}

	return logger
}

func (o *globalOptions) config() (config.Config, error) {
	conf, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return config.Config{}, err
	}

	return conf, nil
}

// openEngine loads the config and builds an engine; the returned func
// closes the stores and flushes the logger.
func (o *globalOptions) openEngine(ctx context.Context) (*internal.Engine, config.Config, *zap.Logger, func(), error) {
	logger := o.logger()

	conf, err := o.config()
	if err != nil {
		_ = logger.Sync()
		return nil, config.Config{}, nil, nil, err
	}

	client, err := internal.NewClient(conf)
	if err != nil {
		_ = logger.Sync()
		return nil, config.Config{}, nil, nil, err
	}

	engine, err := internal.NewEngine(ctx, conf, client, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, config.Config{}, nil, nil, errors.Wrap(err, "failed to start engine")
	}

	closeFn := func() {
		if err := engine.Close(); err != nil {
			logger.Warn("failed to close engine", zap.Error(err))
		}
		_ = logger.Sync()
	}

	return engine, conf, logger, closeFn, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// usd formats a dollar amount with thousands separators, e.g. $10,500.00.
func usd(d decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	if cur == nil {
		return "$" + d.StringFixed(2)
	}

	return cur.Formatter().Format(d.Shift(int32(cur.Fraction)).Round(0).IntPart())
}

// signedUSD is usd with an explicit plus sign for gains.
func signedUSD(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + usd(d)
	}

	return usd(d)
}

func percent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// parseTargets parses ASSET=PCT pairs such as BTC=60 ETH=40.
func parseTargets(args []string) (map[string]decimal.Decimal, error) {
	if len(args) == 0 {
		return nil, nil
	}

	out := make(map[string]decimal.Decimal, len(args))
	for _, arg := range args {
		asset, raw, ok := strings.Cut(arg, "=")
		if !ok || asset == "" {
			return nil, errors.Errorf("invalid target %q, expected ASSET=PERCENT", arg)
		}
		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid percentage for %s", asset)
		}
		out[asset] = pct
	}

	return out, nil
}
