package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type historyCmd struct {
	opts  *globalOptions
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list recent conversions" }
func (*historyCmd) Usage() string {
	return `folio history [-n 20]

  Prints conversion attempts, newest first.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of records")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.limit <= 0 {
		return usageError("-n must be positive")
	}

	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	records, err := engine.ConversionHistory(ctx, c.limit)
	if err != nil {
		return fail(err)
	}
	if len(records) == 0 {
		fmt.Println("No conversions recorded")
		return subcommands.ExitSuccess
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tFROM\tTO\tAMOUNT\tRECEIVED\tFEE\tPATH\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Timestamp.Format(time.RFC3339), r.FromAsset, r.ToAsset,
			r.Amount, r.ResultAmount, usd(r.FeeUSD), r.PathType, r.Status)
	}
	_ = w.Flush()

	return subcommands.ExitSuccess
}

type convertCmd struct {
	opts  *globalOptions
	quote bool
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert one asset into another" }
func (*convertCmd) Usage() string {
	return `folio convert [-quote] <from> <to> <amount>

  Converts amount of <from> into <to>, directly or through an intermediate
  asset. With -quote only the estimate at current prices is printed.
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.quote, "quote", false, "estimate without placing orders")
}

func (c *convertCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 3 {
		return usageError("expected <from> <to> <amount>")
	}
	from, to := f.Arg(0), f.Arg(1)
	amount, err := decimal.NewFromString(f.Arg(2))
	if err != nil || !amount.IsPositive() {
		return usageError("amount must be a positive number, got %q", f.Arg(2))
	}

	engine, _, _, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	if c.quote {
		out, path, err := engine.Quote(ctx, from, to, amount)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("%s %s ~ %s %s via %s\n", amount, from, out, to, path)
		return subcommands.ExitSuccess
	}

	res, err := engine.Convert(ctx, from, to, amount)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Converted %s %s into %s %s via %s, fees %s\n", res.Amount, from, res.ReceivedAmount, to, res.Path, usd(res.TotalFeeUSD))

	return subcommands.ExitSuccess
}
