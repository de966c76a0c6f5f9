// Command folio tracks the performance of a crypto portfolio held on an
// exchange and rebalances it toward target allocations.
//
// Usage:
//
//	folio [-config config.yaml] [-debug] <command> [flags]
//
// Commands: serve, snapshot, cashflow, twr, pnl, stats, allocation, plan,
// rebalance, history, convert, setup.
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	opts := &globalOptions{}
	flag.StringVar(&opts.configPath, "config", "", "path to the YAML config (defaults apply when empty)")
	flag.BoolVar(&opts.debug, "debug", false, "enable development logging")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&serveCmd{opts: opts}, "")
	commander.Register(&setupCmd{}, "")

	commander.Register(&snapshotCmd{opts: opts}, "performance")
	commander.Register(&cashFlowCmd{opts: opts}, "performance")
	commander.Register(&twrCmd{opts: opts}, "performance")
	commander.Register(&pnlCmd{opts: opts}, "performance")
	commander.Register(&statsCmd{opts: opts}, "performance")

	commander.Register(&allocationCmd{opts: opts}, "rebalancing")
	commander.Register(&planCmd{opts: opts}, "rebalancing")
	commander.Register(&rebalanceCmd{opts: opts}, "rebalancing")

	commander.Register(&historyCmd{opts: opts}, "conversions")
	commander.Register(&convertCmd{opts: opts}, "conversions")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(int(commander.Execute(ctx)))
}
