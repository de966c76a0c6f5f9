package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/internal/domain"
)

type snapshotCmd struct {
	opts *globalOptions
	list bool
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record the current portfolio value" }
func (*snapshotCmd) Usage() string {
	return `folio snapshot [-list]

  Fetches balances and appends a snapshot with its from-inception TWR and
  P&L. With -list, prints the recorded snapshots instead.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "list recorded snapshots")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	if c.list {
		snapshots, err := engine.Snapshots(ctx, time.Time{}, time.Time{})
		if err != nil {
			return fail(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tVALUE\tTWR\tP&L")
		for _, s := range snapshots {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Timestamp.Format(time.RFC3339), usd(s.TotalValueUSD),
				optional(s.TWR, percent), optional(s.PnL, signedUSD))
		}
		_ = w.Flush()

		return subcommands.ExitSuccess
	}

	record, err := engine.TakeSnapshot(ctx)
	if err != nil {
		return fail(err)
	}

	s := record.Snapshot
	fmt.Printf("Snapshot #%d at %s: %s (TWR %s, P&L %s)\n", record.Index, s.Timestamp.Format(time.RFC3339),
		usd(s.TotalValueUSD), optional(s.TWR, percent), optional(s.PnL, signedUSD))

	return subcommands.ExitSuccess
}

type cashFlowCmd struct {
	opts *globalOptions
	note string
	list bool
}

func (*cashFlowCmd) Name() string     { return "cashflow" }
func (*cashFlowCmd) Synopsis() string { return "record a deposit or withdrawal" }
func (*cashFlowCmd) Usage() string {
	return `folio cashflow [-note text] DEPOSIT|WITHDRAW <amount-usd>
folio cashflow -list

  Records an external capital movement so returns are not distorted by it.
`
}

func (c *cashFlowCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.note, "note", "", "free-form note")
	f.BoolVar(&c.list, "list", false, "list recorded cash flows")
}

func (c *cashFlowCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if !c.list && f.NArg() != 2 {
		return usageError("expected a type and an amount, see 'folio help cashflow'")
	}

	var (
		kind   domain.CashFlowKind
		amount decimal.Decimal
		err    error
	)
	if !c.list {
		if kind, err = domain.ParseCashFlowKind(f.Arg(0)); err != nil {
			return usageError("%v", err)
		}
		if amount, err = decimal.NewFromString(f.Arg(1)); err != nil || !amount.IsPositive() {
			return usageError("amount must be a positive number, got %q", f.Arg(1))
		}
	}

	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	if c.list {
		flows, err := engine.CashFlows(ctx, time.Time{}, time.Time{})
		if err != nil {
			return fail(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tAMOUNT\tNOTE")
		for _, cf := range flows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cf.Timestamp.Format(time.RFC3339), cf.Kind, signedUSD(cf.AmountUSD), cf.Note)
		}
		_ = w.Flush()

		return subcommands.ExitSuccess
	}

	cf, err := engine.RecordCashFlow(ctx, amount, kind, c.note)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Recorded %s of %s\n", cf.Kind, usd(cf.AmountUSD.Abs()))

	return subcommands.ExitSuccess
}

type twrCmd struct {
	opts *globalOptions
	days int
}

func (*twrCmd) Name() string     { return "twr" }
func (*twrCmd) Synopsis() string { return "show the time-weighted return" }
func (*twrCmd) Usage() string {
	return `folio twr [-days N]

  Prints the TWR over the trailing N days (0 for the whole history).
`
}

func (c *twrCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "window in days, 0 for all time")
}

func (c *twrCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.days < 0 {
		return usageError("days must not be negative")
	}

	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	res, err := engine.PerformanceMetrics(ctx, c.days)
	if errors.Is(err, domain.ErrInsufficientData) {
		fmt.Println("Not enough data: at least two snapshots are required")
		return subcommands.ExitSuccess
	}
	if err != nil {
		return fail(err)
	}

	fmt.Printf("TWR %s to %s: %s\n", res.Start.Format(time.DateOnly), res.End.Format(time.DateOnly), percent(res.TWRPercent()))
	if ann := res.AnnualizedPercent(); ann != nil {
		fmt.Printf("Annualized: %s\n", percent(*ann))
	}
	fmt.Printf("Periods: %d (skipped %d), value %s -> %s\n", res.Periods, res.SkippedPeriods, usd(res.StartValue), usd(res.EndValue))

	return subcommands.ExitSuccess
}

type pnlCmd struct {
	opts *globalOptions
	days int
}

func (*pnlCmd) Name() string     { return "pnl" }
func (*pnlCmd) Synopsis() string { return "show profit and loss net of cash flows" }
func (*pnlCmd) Usage() string {
	return `folio pnl [-days N]

  Prints P&L over the trailing N days (0 for since inception).
`
}

func (c *pnlCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "window in days, 0 for all time")
}

func (c *pnlCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.days < 0 {
		return usageError("days must not be negative")
	}

	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	res, err := engine.ComputePnL(ctx, &c.days)
	if err != nil {
		return fail(err)
	}
	if res.InsufficientData {
		fmt.Println("Not enough data: at least two snapshots are required")
		return subcommands.ExitSuccess
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Period\t%s to %s\n", res.StartDate.Format(time.DateOnly), res.EndDate.Format(time.DateOnly))
	fmt.Fprintf(w, "Initial value\t%s\n", usd(res.InitialValue))
	fmt.Fprintf(w, "Current value\t%s\n", usd(res.CurrentValue))
	fmt.Fprintf(w, "Deposits\t%s\n", usd(res.TotalDeposits))
	fmt.Fprintf(w, "Withdrawals\t%s\n", usd(res.TotalWithdrawals))
	fmt.Fprintf(w, "Invested capital\t%s\n", usd(res.InvestedCapital))
	fmt.Fprintf(w, "P&L\t%s (%s)\n", signedUSD(res.PnL), percent(res.PnLPercent))
	_ = w.Flush()

	return subcommands.ExitSuccess
}

type statsCmd struct {
	opts *globalOptions
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "show tracking statistics" }
func (*statsCmd) Usage() string {
	return `folio stats

  Prints how long the portfolio has been tracked and the cash flow totals.
`
}

func (*statsCmd) SetFlags(*flag.FlagSet) {}

func (c *statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	stats, err := engine.Stats(ctx)
	if err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Tracking days\t%d\n", stats.TrackingDays)
	fmt.Fprintf(w, "Snapshots\t%d\n", stats.SnapshotCount)
	fmt.Fprintf(w, "Cash flows\t%d\n", stats.CashFlowCount)
	fmt.Fprintf(w, "Deposits\t%s\n", usd(stats.TotalDeposits))
	fmt.Fprintf(w, "Withdrawals\t%s\n", usd(stats.TotalWithdrawals))
	if stats.FirstSnapshot != nil {
		fmt.Fprintf(w, "First snapshot\t%s\n", stats.FirstSnapshot.Format(time.RFC3339))
		fmt.Fprintf(w, "Last snapshot\t%s\n", stats.LastSnapshot.Format(time.RFC3339))
	}
	_ = w.Flush()

	return subcommands.ExitSuccess
}

func optional(d *decimal.Decimal, format func(decimal.Decimal) string) string {
	if d == nil {
		return "-"
	}

	return format(*d)
}
