// Package app wires the trading bot together from configuration: exchange
// clients, weather sources, caches, stores, and the cycle runner.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/coldsnap-trading/coldsnap/internal/bot"
	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/executor"
	"github.com/coldsnap-trading/coldsnap/internal/forecast"
	"github.com/coldsnap-trading/coldsnap/internal/market"
	"github.com/coldsnap-trading/coldsnap/internal/platform/polymarket"
	"github.com/coldsnap-trading/coldsnap/internal/risk"
	"github.com/coldsnap-trading/coldsnap/internal/server"
	"github.com/coldsnap-trading/coldsnap/internal/strategy"
)

// App owns the wired dependency graph and the cleanup functions that tear it
// down in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and runs the trading loop until the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting coldsnap",
		slog.Bool("dry_run", a.cfg.Bot.DryRun),
		slog.String("log_level", a.cfg.LogLevel),
	)

	cache, err := a.wireCache(ctx)
	if err != nil {
		return fmt.Errorf("app: cache: %w", err)
	}

	execStore, err := a.wireExecutionStore(ctx)
	if err != nil {
		return fmt.Errorf("app: execution store: %w", err)
	}

	tracker := a.wireLedger()

	clob, err := a.wireClob(ctx)
	if err != nil {
		return fmt.Errorf("app: clob client: %w", err)
	}

	riskEng := risk.NewEngine(risk.Limits{
		BankrollUSD:     a.cfg.Strategy.BankrollUSD,
		MaxPositionUSD:  a.cfg.Strategy.MaxPositionUSD,
		MaxDailyLossUSD: a.cfg.Strategy.MaxDailyLossUSD,
	}, a.logger)

	exec := executor.NewExecutor(clob, tracker, riskEng, execStore,
		executor.Config{DryRun: a.cfg.Bot.DryRun}, a.logger)

	scanner := market.NewScanner(
		polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost, a.logger),
		market.NewParser(config.CityAliases()),
		a.logger,
	)

	aggregator := forecast.NewAggregator(forecast.Options{
		ObservedPolicy: forecast.ObservedPolicy(a.cfg.Weather.ObservedPolicy),
		ObservedWeight: a.cfg.Weather.ObservedWeight,
	}, a.logger)

	runner := bot.New(bot.Deps{
		Scanner:   scanner,
		Collector: a.wireWeather(),
		Forecast:  aggregator,
		Executor:  exec,
		Book:      tracker,
		Prices:    cache,
		Watcher:   a.wireFeed(ctx, cache),
		Alerts:    a.wireNotifier(),
		Quotes:    clob,
	}, bot.Config{
		PollInterval: a.cfg.Bot.PollInterval.Duration,
		MaxDaysAhead: a.cfg.Bot.MaxDaysAhead,
		Strategy: strategy.Params{
			EdgeThreshold:  a.cfg.Strategy.EdgeThreshold,
			KellyFraction:  a.cfg.Strategy.KellyFraction,
			BankrollUSD:    a.cfg.Strategy.BankrollUSD,
			MaxPositionUSD: a.cfg.Strategy.MaxPositionUSD,
		},
	}, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	if a.cfg.Server.Port > 0 {
		ops := server.New(server.Config{
			Port:   a.cfg.Server.Port,
			APIKey: a.cfg.Server.APIKey,
		}, tracker, execStore, a.logger)
		g.Go(func() error { return ops.Run(gctx) })
	}
	return g.Wait()
}

// Close tears down wired resources in reverse order. Safe to call more than
// once.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
