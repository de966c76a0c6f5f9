// Package config loads the engine configuration from a YAML file and the
// environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	PlatformBinance  = "binance"
	PlatformBybit    = "bybit"
	PlatformSimulate = "simulate"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

const (
	defaultDataDir                = "./wal"
	defaultHTTPAddr               = ":8080"
	defaultSnapshotSchedule       = "@every 1h"
	defaultBalanceRefreshSchedule = "@every 1m"
	defaultMinSnapshotInterval    = 5 * time.Minute
	defaultActionDelay            = time.Second
	defaultLegDelay               = 200 * time.Millisecond
	defaultExchangeInfoTTL        = 5 * time.Minute
	defaultCacheTTL               = 10 * time.Minute
	defaultRedisNamespace         = "folio:"
)

var (
	defaultIntermediates = []string{"USDT", "USDC", "BTC"}
	defaultMinBalanceUSD = decimal.NewFromInt(1)
	defaultSimWallet     = map[string]decimal.Decimal{"USDT": decimal.NewFromInt(10000)}
)

// Config typed engine configuration.
type Config struct {
	Platform               string
	DataDir                string
	HTTPAddr               string
	ReportingAsset         string
	MinBalanceUSD          decimal.Decimal
	Intermediates          []string
	LegDelay               time.Duration
	ActionDelay            time.Duration
	MinSnapshotInterval    time.Duration
	SnapshotSchedule       string
	BalanceRefreshSchedule string
	ExchangeInfoTTL        time.Duration
	Allocation             domain.AllocationTarget
	Cache                  CacheConfig
	Simulate               SimulateConfig
	Credentials            Credentials
}

// CacheConfig metrics cache backend.
type CacheConfig struct {
	Backend        string
	TTL            time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string
}

// SimulateConfig paper trading settings.
type SimulateConfig struct {
	Wallet   map[string]decimal.Decimal
	FeeRate  decimal.Decimal
	StateDir string
	// Prices replaces live market data with a fixed price table keyed by BASE_QUOTE pair.
	Prices map[domain.Pair]decimal.Decimal
}

// Credentials exchange API keys, read from the environment only.
type Credentials struct {
	APIKey    string
	APISecret string
}

// ConfigTmp raw YAML representation; decimals are kept as strings.
type ConfigTmp struct {
	Platform               string            `yaml:"platform"`
	DataDir                string            `yaml:"data_dir,omitempty"`
	HTTPAddr               string            `yaml:"http_addr,omitempty"`
	ReportingAsset         string            `yaml:"reporting_asset,omitempty"`
	MinBalanceUSD          string            `yaml:"min_balance_usd,omitempty"`
	Intermediates          []string          `yaml:"intermediates,omitempty"`
	LegDelay               time.Duration     `yaml:"leg_delay,omitempty"`
	ActionDelay            time.Duration     `yaml:"action_delay,omitempty"`
	MinSnapshotInterval    time.Duration     `yaml:"min_snapshot_interval,omitempty"`
	SnapshotSchedule       string            `yaml:"snapshot_schedule,omitempty"`
	BalanceRefreshSchedule string            `yaml:"balance_refresh_schedule,omitempty"`
	ExchangeInfoTTL        time.Duration     `yaml:"exchange_info_ttl,omitempty"`
	Allocation             map[string]string `yaml:"allocation,omitempty"`
	Cache                  CacheTmp          `yaml:"cache,omitempty"`
	Simulate               SimulateTmp       `yaml:"simulate,omitempty"`
}

// CacheTmp raw cache section.
type CacheTmp struct {
	Backend        string        `yaml:"backend,omitempty"`
	TTL            time.Duration `yaml:"ttl,omitempty"`
	RedisAddr      string        `yaml:"redis_addr,omitempty"`
	RedisDB        int           `yaml:"redis_db,omitempty"`
	RedisNamespace string        `yaml:"redis_namespace,omitempty"`
}

// SimulateTmp raw simulate section.
type SimulateTmp struct {
	Wallet   map[string]string `yaml:"wallet,omitempty"`
	FeeRate  string            `yaml:"fee_rate,omitempty"`
	StateDir string            `yaml:"state_dir,omitempty"`
	Prices   map[string]string `yaml:"prices,omitempty"`
}

// Load reads .env (when present), then the YAML file at path. An empty path
// yields the defaults for the platform named by FOLIO_PLATFORM (simulate
// when unset).
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var tmp ConfigTmp
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := yaml.Unmarshal(raw, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}
	if tmp.Platform == "" {
		tmp.Platform = os.Getenv("FOLIO_PLATFORM")
	}

	conf, err := tmp.Build()
	if err != nil {
		return Config{}, err
	}

	conf.Credentials = credentialsFromEnv(conf.Platform)
	conf.Cache.RedisPassword = os.Getenv("FOLIO_REDIS_PASSWORD")
	if addr := os.Getenv("FOLIO_REDIS_ADDR"); addr != "" {
		conf.Cache.RedisAddr = addr
	}

	return conf, nil
}

// Build validates the raw config and fills defaults.
func (c ConfigTmp) Build() (Config, error) {
	conf := Config{
		Platform:               strings.ToLower(strings.TrimSpace(c.Platform)),
		DataDir:                c.DataDir,
		HTTPAddr:               c.HTTPAddr,
		ReportingAsset:         domain.NormalizeAsset(c.ReportingAsset),
		MinBalanceUSD:          defaultMinBalanceUSD,
		LegDelay:               c.LegDelay,
		ActionDelay:            c.ActionDelay,
		MinSnapshotInterval:    c.MinSnapshotInterval,
		SnapshotSchedule:       c.SnapshotSchedule,
		BalanceRefreshSchedule: c.BalanceRefreshSchedule,
		ExchangeInfoTTL:        c.ExchangeInfoTTL,
		Cache: CacheConfig{
			Backend:        strings.ToLower(c.Cache.Backend),
			TTL:            c.Cache.TTL,
			RedisAddr:      c.Cache.RedisAddr,
			RedisDB:        c.Cache.RedisDB,
			RedisNamespace: c.Cache.RedisNamespace,
		},
	}

	switch conf.Platform {
	case "":
		conf.Platform = PlatformSimulate
	case PlatformBinance, PlatformBybit, PlatformSimulate:
	default:
		return Config{}, errors.Errorf("unsupported platform %q, expected binance, bybit or simulate", c.Platform)
	}

	if conf.DataDir == "" {
		conf.DataDir = defaultDataDir
	}
	if conf.HTTPAddr == "" {
		conf.HTTPAddr = defaultHTTPAddr
	}
	if conf.ReportingAsset == "" {
		conf.ReportingAsset = domain.DefaultReferenceAsset
	}
	if conf.ReportingAsset != domain.DefaultReferenceAsset && !domain.IsStablecoin(conf.ReportingAsset) {
		return Config{}, errors.Errorf("reporting asset must be a USD stablecoin, got %s", conf.ReportingAsset)
	}
	if c.MinBalanceUSD != "" {
		v, err := decimal.NewFromString(c.MinBalanceUSD)
		if err != nil {
			return Config{}, errors.Wrap(err, "incorrect 'min_balance_usd' param in yaml config (must be a decimal)")
		}
		if v.IsNegative() {
			return Config{}, errors.New("'min_balance_usd' must not be negative")
		}
		conf.MinBalanceUSD = v
	}

	conf.Intermediates = defaultIntermediates
	if len(c.Intermediates) > 0 {
		conf.Intermediates = make([]string, 0, len(c.Intermediates))
		for _, a := range c.Intermediates {
			conf.Intermediates = append(conf.Intermediates, domain.NormalizeAsset(a))
		}
	}

	if conf.LegDelay == 0 {
		conf.LegDelay = defaultLegDelay
	}
	if conf.ActionDelay == 0 {
		conf.ActionDelay = defaultActionDelay
	}
	if conf.MinSnapshotInterval == 0 {
		conf.MinSnapshotInterval = defaultMinSnapshotInterval
	}
	if conf.SnapshotSchedule == "" {
		conf.SnapshotSchedule = defaultSnapshotSchedule
	}
	if conf.BalanceRefreshSchedule == "" {
		conf.BalanceRefreshSchedule = defaultBalanceRefreshSchedule
	}
	if conf.ExchangeInfoTTL == 0 {
		conf.ExchangeInfoTTL = defaultExchangeInfoTTL
	}

	if len(c.Allocation) > 0 {
		allocation, err := parseDecimalMap(c.Allocation, "allocation")
		if err != nil {
			return Config{}, err
		}
		target := domain.AllocationTarget(allocation).Normalize()
		if err := target.Validate(); err != nil {
			return Config{}, errors.Wrap(err, "incorrect 'allocation' in yaml config")
		}
		conf.Allocation = target
	}

	if err := conf.Cache.fill(); err != nil {
		return Config{}, err
	}

	sim, err := c.Simulate.build()
	if err != nil {
		return Config{}, err
	}
	conf.Simulate = sim

	return conf, nil
}

func (c *CacheConfig) fill() error {
	switch c.Backend {
	case "":
		c.Backend = CacheMemory
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			c.RedisAddr = "localhost:6379"
		}
	default:
		return errors.Errorf("unsupported cache backend %q, expected memory or redis", c.Backend)
	}

	if c.TTL == 0 {
		c.TTL = defaultCacheTTL
	}
	if c.RedisNamespace == "" {
		c.RedisNamespace = defaultRedisNamespace
	}

	return nil
}

func (s SimulateTmp) build() (SimulateConfig, error) {
	conf := SimulateConfig{
		Wallet:   defaultSimWallet,
		FeeRate:  decimal.RequireFromString("0.001"),
		StateDir: s.StateDir,
	}

	if len(s.Wallet) > 0 {
		wallet, err := parseDecimalMap(s.Wallet, "simulate.wallet")
		if err != nil {
			return SimulateConfig{}, err
		}
		conf.Wallet = make(map[string]decimal.Decimal, len(wallet))
		for asset, amount := range wallet {
			conf.Wallet[domain.NormalizeAsset(asset)] = amount
		}
	}

	if s.FeeRate != "" {
		rate, err := decimal.NewFromString(s.FeeRate)
		if err != nil {
			return SimulateConfig{}, errors.Wrap(err, "incorrect 'simulate.fee_rate' param in yaml config (must be a decimal)")
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return SimulateConfig{}, errors.New("'simulate.fee_rate' must be in [0, 1)")
		}
		conf.FeeRate = rate
	}

	if len(s.Prices) > 0 {
		prices, err := parseDecimalMap(s.Prices, "simulate.prices")
		if err != nil {
			return SimulateConfig{}, err
		}
		conf.Prices = make(map[domain.Pair]decimal.Decimal, len(prices))
		for symbol, price := range prices {
			pair, err := ParsePair(symbol)
			if err != nil {
				return SimulateConfig{}, errors.Wrap(err, "incorrect 'simulate.prices' key")
			}
			if !price.IsPositive() {
				return SimulateConfig{}, errors.Errorf("price of %s must be positive", symbol)
			}
			conf.Prices[pair] = price
		}
	}

	return conf, nil
}

// ParsePair parses a BASE_QUOTE pair such as BTC_USDT.
func ParsePair(s string) (domain.Pair, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, errors.Errorf("invalid pair %q, expected BASE_QUOTE (e.g. BTC_USDT)", s)
	}

	return domain.NewPair(parts[0], parts[1]), nil
}

func parseDecimalMap(raw map[string]string, field string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for key, value := range raw {
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, errors.Wrapf(err, "incorrect '%s.%s' param in yaml config (must be a decimal)", field, key)
		}
		out[key] = d
	}

	return out, nil
}

func credentialsFromEnv(platform string) Credentials {
	switch platform {
	case PlatformBinance:
		return Credentials{APIKey: os.Getenv("BINANCE_API_KEY"), APISecret: os.Getenv("BINANCE_API_SECRET")}
	case PlatformBybit:
		return Credentials{APIKey: os.Getenv("BYBIT_API_KEY"), APISecret: os.Getenv("BYBIT_API_SECRET")}
	default:
		return Credentials{}
	}
}

// Validate checks settings that can only be verified after the environment
// is loaded.
func (c Config) Validate() error {
	if c.Platform == PlatformBinance || c.Platform == PlatformBybit {
		if c.Credentials.APIKey == "" || c.Credentials.APISecret == "" {
			return errors.Errorf("%s requires %s_API_KEY and %s_API_SECRET environment variables",
				c.Platform, strings.ToUpper(c.Platform), strings.ToUpper(c.Platform))
		}
	}

	return nil
}
