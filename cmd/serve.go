package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/folio/internal/web"
)

type serveCmd struct {
	opts *globalOptions
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the scheduler and the HTTP API" }
func (*serveCmd) Usage() string {
	return `folio serve [-addr :8080]

  Refreshes balances and takes snapshots on the configured cron schedules
  and serves the HTTP API and dashboard until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address (overrides http_addr)")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	engine, conf, logger, closeFn, err := c.opts.openEngine(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	addr := conf.HTTPAddr
	if c.addr != "" {
		addr = c.addr
	}
	server := web.NewServer(addr, engine, logger.Named("web"))

	logger.Info("folio started",
		zap.String("platform", conf.Platform),
		zap.String("addr", addr),
		zap.String("snapshot_schedule", conf.SnapshotSchedule))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		return server.Start(gctx)
	})

	// a cancelled parent context is a normal shutdown
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fail(err)
	}
	logger.Info("folio stopped")

	return subcommands.ExitSuccess
}
