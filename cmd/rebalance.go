package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/vadiminshakov/folio/internal/domain"
)

type allocationCmd struct {
	opts *globalOptions
}

func (*allocationCmd) Name() string     { return "allocation" }
func (*allocationCmd) Synopsis() string { return "show or set target allocation" }
func (*allocationCmd) Usage() string {
	return `folio allocation [ASSET=PERCENT ...]

  Without arguments prints the saved targets next to the current allocation.
  With arguments saves new targets, e.g. folio allocation BTC=60 ETH=40.
`
}

func (*allocationCmd) SetFlags(*flag.FlagSet) {}

func (c *allocationCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	targets, err := parseTargets(f.Args())
	if err != nil {
		return usageError("%v", err)
	}

	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	if targets != nil {
		if err := engine.SetAllocation(ctx, targets); err != nil {
			return fail(err)
		}
		fmt.Println("Allocation saved")
	}

	saved, err := engine.Allocation(ctx)
	if err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tTARGET")
	for _, asset := range saved.Assets() {
		fmt.Fprintf(w, "%s\t%s\n", asset, percent(saved[asset]))
	}
	_ = w.Flush()

	return subcommands.ExitSuccess
}

type planCmd struct {
	opts *globalOptions
}

func (*planCmd) Name() string     { return "plan" }
func (*planCmd) Synopsis() string { return "show the trades needed to reach the target allocation" }
func (*planCmd) Usage() string {
	return `folio plan [ASSET=PERCENT ...]

  Plans against fresh balances. Targets given as arguments override the
  saved allocation for this run only.
`
}

func (*planCmd) SetFlags(*flag.FlagSet) {}

func (c *planCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	targets, err := parseTargets(f.Args())
	if err != nil {
		return usageError("%v", err)
	}

	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	plan, err := engine.PlanRebalance(ctx, targets)
	if err != nil {
		return fail(err)
	}
	printPlan(plan)

	return subcommands.ExitSuccess
}

type rebalanceCmd struct {
	opts *globalOptions
	yes  bool
}

func (*rebalanceCmd) Name() string     { return "rebalance" }
func (*rebalanceCmd) Synopsis() string { return "execute the rebalancing plan" }
func (*rebalanceCmd) Usage() string {
	return `folio rebalance -yes [ASSET=PERCENT ...]

  Plans and places market orders. Orders are real on live platforms, so the
  -yes flag is required.
`
}

func (c *rebalanceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "confirm order placement")
}

func (c *rebalanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if !c.yes {
		return usageError("refusing to place orders without -yes; run 'folio plan' to preview")
	}
	targets, err := parseTargets(f.Args())
	if err != nil {
		return usageError("%v", err)
	}

	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	report, err := engine.ExecuteRebalance(ctx, targets)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return fail(err)
	}

	return subcommands.ExitSuccess
}

func printPlan(plan *domain.Plan) {
	fmt.Printf("Portfolio value: %s, minimum trade: %s\n\n", usd(plan.TotalValueUSD), usd(plan.MinTradeUSD))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tCURRENT\tTARGET")
	for _, asset := range plan.TargetAllocation.Assets() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", asset, percent(plan.CurrentAllocation[asset]), percent(plan.TargetAllocation[asset]))
	}
	_ = w.Flush()

	if len(plan.Actions) == 0 {
		fmt.Println("\nPortfolio is balanced, nothing to do")
		return
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIDE\tASSET\tAMOUNT")
	for _, a := range plan.Actions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Side, a.Asset, usd(a.USDAmount))
	}
	_ = w.Flush()
}

func printReport(report *domain.ExecutionReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIDE\tASSET\tAMOUNT\tSTATUS\tPATH\tMESSAGE")
	for _, r := range report.Results {
		status := "FAILED"
		switch {
		case r.Skipped:
			status = "SKIPPED"
		case r.Success:
			status = "OK"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Side, r.Asset, usd(r.USDAmount), status, r.Path, r.Message)
	}
	_ = w.Flush()

	fmt.Printf("\n%d of %d actions succeeded, fees %s\n", report.Succeeded(), len(report.Results), usd(report.TotalFeesUSD))
}
