package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"cryptofolio/internal/scheduler"
	"cryptofolio/internal/stream"
	"cryptofolio/pkg/binance"

	"github.com/google/subcommands"
	"go.uber.org/zap"
)

type snapshotCmd struct {
	save    bool
	jsonOut bool
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "aggregate spot and earn balances once" }
func (*snapshotCmd) Usage() string {
	return `snapshot [-save] [-json]:
  Fetch all balances, price them, and print the portfolio.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.save, "save", true, "store the snapshot when postgres.enabled is set")
	f.BoolVar(&c.jsonOut, "json", false, "write the snapshot as JSON to stdout")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx, configPathArg(args))
	if err != nil {
		fail(nil, "setup failed", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := a.wirePortfolio(c.save); err != nil {
		fail(a.log, "setup failed", err)
		return subcommands.ExitFailure
	}

	snap, err := a.collector.RunCycle(ctx)
	if snap == nil {
		fail(a.log, "snapshot failed", err)
		return subcommands.ExitFailure
	}
	if err != nil {
		a.log.Warn("snapshot not stored", zap.Error(err))
	}

	if c.jsonOut {
		if err := writeJSON(os.Stdout, newSnapshotView(a.prices.QuoteAsset(), snap)); err != nil {
			fail(a.log, "encode snapshot", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

type watchCmd struct {
	noStream bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "aggregate on a schedule until interrupted" }
func (*watchCmd) Usage() string {
	return `watch [-no-stream]:
  Run a snapshot at startup and every portfolio.interval. With binance.ws.enabled,
  cached prices are refreshed from the mini ticker stream between cycles.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noStream, "no-stream", false, "do not subscribe to the market stream")
}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx, configPathArg(args))
	if err != nil {
		fail(nil, "setup failed", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := a.wirePortfolio(true); err != nil {
		fail(a.log, "setup failed", err)
		return subcommands.ExitFailure
	}

	if a.cfg.Binance.WS.Enabled && !c.noStream {
		ws := binance.NewWSClient(a.cfg.Binance.WS.URL, []string{binance.MiniTickerAllStream}, a.log.Named("ws"))
		ws.SetMessageHandler(stream.MakeMessageHandler(a.log.Named("stream"), a.prices, a.prices.QuoteAsset()))

		// Listen keeps retrying if the first dial fails
		_ = ws.Connect(ctx)
		go ws.Listen(ctx)
	}

	p := &scheduler.Periodic{
		Interval: a.cfg.Portfolio.Interval,
		Align:    true,
		Logger:   a.log,
		Run: func(ctx context.Context) error {
			err := a.collector.Run(ctx)
			a.log.Info("cached prices", zap.Int("count", a.prices.Cached()))
			a.prune(ctx)
			return err
		},
	}

	a.log.Info("watching portfolio", zap.Duration("interval", p.Interval))
	p.Start(ctx)
	a.log.Info("stopped")
	return subcommands.ExitSuccess
}

type pingCmd struct{}

func (*pingCmd) Name() string             { return "ping" }
func (*pingCmd) Synopsis() string         { return "check connectivity and clock skew" }
func (*pingCmd) Usage() string            { return "ping:\n  Query the exchange server time.\n" }
func (*pingCmd) SetFlags(_ *flag.FlagSet) {}

func (*pingCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx, configPathArg(args))
	if err != nil {
		fail(nil, "setup failed", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	local := time.Now()
	server, err := a.client.ServerTime(ctx)
	if err != nil {
		fail(a.log, "ping failed", err)
		return subcommands.ExitFailure
	}

	a.log.Info("pong",
		zap.Time("server_time", server),
		zap.Duration("skew", server.Sub(local)),
		zap.Duration("recv_window", a.cfg.Binance.REST.RecvWindow),
	)
	return subcommands.ExitSuccess
}

type lastCmd struct{}

func (*lastCmd) Name() string             { return "last" }
func (*lastCmd) Synopsis() string         { return "print the most recent stored snapshot" }
func (*lastCmd) Usage() string            { return "last:\n  Load the latest snapshot from Postgres and write it as JSON.\n" }
func (*lastCmd) SetFlags(_ *flag.FlagSet) {}

func (*lastCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx, configPathArg(args))
	if err != nil {
		fail(nil, "setup failed", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if !a.cfg.Postgres.Enabled {
		fail(a.log, "last", errors.New("postgres.enabled is off, no snapshots are stored"))
		return subcommands.ExitUsageError
	}
	if err := a.openDB(); err != nil {
		fail(a.log, "setup failed", err)
		return subcommands.ExitFailure
	}

	record, err := a.db.LatestSnapshot(ctx)
	if err != nil {
		fail(a.log, "load snapshot", err)
		return subcommands.ExitFailure
	}
	if err := writeJSON(os.Stdout, record); err != nil {
		fail(a.log, "encode snapshot", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
