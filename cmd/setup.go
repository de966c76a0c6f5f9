package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/vadiminshakov/folio/internal/setup"
)

type setupCmd struct {
	out string
}

func (*setupCmd) Name() string     { return "setup" }
func (*setupCmd) Synopsis() string { return "interactive configuration wizard" }
func (*setupCmd) Usage() string {
	return `folio setup [-o config.gen.yaml]

  Walks through platform, allocation, schedules and cache settings and
  writes a config file usable with -config.
`
}

func (c *setupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", setup.DefaultPath, "output file")
}

func (c *setupCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if err := setup.RunTUI(c.out); err != nil {
		return fail(err)
	}

	return subcommands.ExitSuccess
}
