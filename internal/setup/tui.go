// Package setup implements the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

// DefaultPath file written by the wizard.
const DefaultPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers raw wizard input.
type answers struct {
	platform         string
	reportingAsset   string
	allocation       string
	snapshotSchedule string
	refreshSchedule  string
	minInterval      string
	cacheBackend     string
	redisAddr        string
	wallet           string
	feeRate          string
}

func defaultAnswers() answers {
	return answers{
		platform:         config.PlatformSimulate,
		reportingAsset:   domain.DefaultReferenceAsset,
		snapshotSchedule: "@every 1h",
		refreshSchedule:  "@every 1m",
		minInterval:      "5m",
		cacheBackend:     config.CacheMemory,
		redisAddr:        "localhost:6379",
		wallet:           "USDT=10000",
		feeRate:          "0.001",
	}
}

// RunTUI launches the wizard and writes the result to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultPath
	}
	a := defaultAnswers()

	header := func(step string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(step))
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Track returns and keep your portfolio on target.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Simulation (paper wallet)", config.PlatformSimulate),
				).
				Value(&a.platform),
			huh.NewSelect[string]().
				Title("Reporting asset").
				Description("USD stablecoin used for valuation and fees").
				Options(
					huh.NewOption("USDT", "USDT"),
					huh.NewOption("USDC", "USDC"),
					huh.NewOption("FDUSD", "FDUSD"),
				).
				Value(&a.reportingAsset),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 2: TARGET ALLOCATION")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Targets").
				Description("ASSET=PERCENT separated by commas, e.g. BTC=60,ETH=30,USDT=10. Empty keeps current holdings.").
				Value(&a.allocation).
				Validate(func(s string) error {
					_, err := parseAllocation(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 3: SCHEDULES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Snapshot schedule").
				Description("Cron spec with seconds or @every, e.g. @every 1h").
				Value(&a.snapshotSchedule).
				Validate(validateSchedule),
			huh.NewInput().
				Title("Balance refresh schedule").
				Value(&a.refreshSchedule).
				Validate(validateSchedule),
			huh.NewInput().
				Title("Minimum interval between snapshots").
				Description("Duration string (e.g. 5m)").
				Value(&a.minInterval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 4: METRICS CACHE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Cache backend").
				Options(
					huh.NewOption("In-process memory", config.CacheMemory),
					huh.NewOption("Redis", config.CacheRedis),
				).
				Value(&a.cacheBackend),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.cacheBackend == config.CacheRedis {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Redis address").
					Value(&a.redisAddr),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	if a.platform == config.PlatformSimulate {
		header("STEP 5: PAPER WALLET")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Starting wallet").
					Description("ASSET=AMOUNT separated by commas").
					Value(&a.wallet).
					Validate(func(s string) error {
						_, err := parseAmounts(s)
						return err
					}),
				huh.NewInput().
					Title("Fee rate").
					Description("Fraction of each fill, e.g. 0.001").
					Value(&a.feeRate).
					Validate(validateFeeRate),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	tmp, err := a.build()
	if err != nil {
		return err
	}

	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nReporting: %s\nAllocation: %s\nSnapshots: %s\nCache: %s\n",
		a.platform, a.reportingAsset, orDefault(a.allocation, "current holdings"), a.snapshotSchedule, a.cacheBackend,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	if err := Write(path, tmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	if a.platform != config.PlatformSimulate {
		envPrefix := strings.ToUpper(a.platform)
		fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render(
			fmt.Sprintf("Set %s_API_KEY and %s_API_SECRET in the environment or .env before running.", envPrefix, envPrefix)))
	}

	return nil
}

// build converts the answers into a config that passes config validation.
func (a answers) build() (config.ConfigTmp, error) {
	minInterval, err := time.ParseDuration(a.minInterval)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "invalid minimum snapshot interval")
	}

	tmp := config.ConfigTmp{
		Platform:               a.platform,
		ReportingAsset:         a.reportingAsset,
		SnapshotSchedule:       a.snapshotSchedule,
		BalanceRefreshSchedule: a.refreshSchedule,
		MinSnapshotInterval:    minInterval,
		Cache:                  config.CacheTmp{Backend: a.cacheBackend},
	}

	allocation, err := parseAllocation(a.allocation)
	if err != nil {
		return config.ConfigTmp{}, err
	}
	tmp.Allocation = allocation

	if a.cacheBackend == config.CacheRedis {
		tmp.Cache.RedisAddr = a.redisAddr
	}

	if a.platform == config.PlatformSimulate {
		wallet, err := parseAmounts(a.wallet)
		if err != nil {
			return config.ConfigTmp{}, err
		}
		tmp.Simulate = config.SimulateTmp{Wallet: wallet, FeeRate: a.feeRate}
	}

	if _, err := tmp.Build(); err != nil {
		return config.ConfigTmp{}, err
	}

	return tmp, nil
}

// Write marshals the config to YAML at path.
func Write(path string, tmp config.ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}

	return nil
}

// parseAllocation parses "BTC=60,ETH=40"; an empty string means no targets.
func parseAllocation(s string) (map[string]string, error) {
	out, err := parseAmounts(s)
	if err != nil || len(out) == 0 {
		return out, err
	}

	target := make(domain.AllocationTarget, len(out))
	for asset, raw := range out {
		target[asset] = decimal.RequireFromString(raw)
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	return out, nil
}

// parseAmounts parses comma separated ASSET=DECIMAL pairs.
func parseAmounts(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		asset, raw, ok := strings.Cut(strings.TrimSpace(part), "=")
		asset = domain.NormalizeAsset(asset)
		if !ok || asset == "" {
			return nil, errors.Errorf("invalid entry %q, expected ASSET=NUMBER", part)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.Errorf("invalid number for %s: %q", asset, raw)
		}
		if v.IsNegative() {
			return nil, errors.Errorf("%s must not be negative", asset)
		}
		out[asset] = v.String()
	}

	return out, nil
}

func validateSchedule(s string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(s); err != nil {
		return errors.Wrap(err, "invalid schedule")
	}

	return nil
}

func validateFeeRate(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("must be in [0, 1)")
	}

	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}

	return s
}
