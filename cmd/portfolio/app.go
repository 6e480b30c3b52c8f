package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cryptofolio/config"
	"cryptofolio/internal/collector"
	"cryptofolio/internal/memorystore"
	"cryptofolio/internal/portfolio"
	"cryptofolio/logger"
	"cryptofolio/pkg/binance"
	"cryptofolio/pkg/storage/postgres"

	"go.uber.org/zap"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	client    *binance.Client
	prices    *portfolio.PriceResolver
	collector *collector.Collector
	db        *postgres.PostgresClient
}

func configPathArg(args []interface{}) string {
	if len(args) == 0 {
		return ""
	}
	path, _ := args[0].(string)
	return path
}

// newApp loads config, builds the logger and the Binance client. Setup errors
// before the logger exists go to stderr.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := cfg.LoadSecrets(ctx); err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Sync()
		return nil, err
	}

	client, err := binance.NewClient(cfg.Binance.REST.BaseURL, cfg.Credentials(), cfg.Binance.REST.Timeout, log,
		binance.WithRecvWindow(cfg.Binance.REST.RecvWindow),
		binance.WithTickerPolicy(cfg.TickerPolicy()))
	if err != nil {
		log.Sync()
		return nil, err
	}

	return &app{cfg: cfg, log: log, client: client}, nil
}

// wirePortfolio builds the pricing, balance sources, aggregator, and the
// optional Postgres sink.
func (a *app) wirePortfolio(save bool) error {
	pc := a.cfg.Portfolio

	a.prices = portfolio.NewPriceResolver(a.client, memorystore.NewPriceStore(), portfolio.PricingConfig{
		QuoteAsset:  pc.QuoteAsset,
		BridgeAsset: pc.BridgeAsset,
		TTL:         pc.PriceTTL,
	}, a.log.Named("price"))

	wallet := portfolio.NewLiquidWallet(a.client, a.prices, pc.SkipPrefixes, a.log.Named("spot"))
	yield := portfolio.NewYieldProduct(a.client, a.prices, portfolio.YieldOptions{
		KnownAssets: pc.KnownEarnAssets,
		Concurrency: pc.TargetedConcurrency,
		PageSize:    pc.PageSize,
	}, a.log.Named("earn"))

	agg := portfolio.NewAggregator(pc.MinValueDecimal(), a.log.Named("aggregate"), wallet, yield)

	var sink collector.Sink
	if save && a.cfg.Postgres.Enabled {
		if err := a.openDB(); err != nil {
			return err
		}
		sink = a.db
	}

	a.collector = collector.New(agg, sink, pc.QuoteAsset, a.log)
	return nil
}

func (a *app) openDB() error {
	db, err := postgres.Initialize(a.cfg.Postgres, a.cfg.Log.Environment, a.cfg.Log.Environment != "prod")
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	a.db = db
	return nil
}

// prune deletes stored snapshots older than the retention window.
func (a *app) prune(ctx context.Context) {
	if a.db == nil || a.cfg.Postgres.Retention <= 0 {
		return
	}
	before := time.Now().Add(-a.cfg.Postgres.Retention)
	n, err := a.db.DeleteSnapshotsBefore(ctx, before)
	if err != nil {
		a.log.Warn("failed to prune snapshots", zap.Time("before", before), zap.Error(err))
		return
	}
	if n > 0 {
		a.log.Info("pruned snapshots", zap.Int64("count", n), zap.Time("before", before))
	}
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close DB", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func fail(log *zap.Logger, msg string, err error) {
	if log == nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		return
	}
	log.Error(msg, zap.Error(err))
}
