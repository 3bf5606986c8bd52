// Package bot runs the trading loop: scan temperature markets, collect and
// aggregate forecasts, compute edges, exit stale positions, and place sized
// entries.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/executor"
	"github.com/coldsnap-trading/coldsnap/internal/forecast"
	"github.com/coldsnap-trading/coldsnap/internal/strategy"
	"github.com/coldsnap-trading/coldsnap/internal/weather"
)

// MarketScanner discovers tradable weather markets.
type MarketScanner interface {
	Scan(ctx context.Context) ([]domain.WeatherEvent, error)
}

// WeatherCollector gathers forecast data for one city.
type WeatherCollector interface {
	Collect(ctx context.Context, city config.City) (weather.CityData, error)
}

// Forecaster pools samples into a bucket distribution.
type Forecaster interface {
	Aggregate(in forecast.AggregateInput) (domain.AggregatedForecast, error)
}

// OrderExecutor places entries and exits.
type OrderExecutor interface {
	ExecuteSignals(ctx context.Context, signals []domain.TradeSignal) ([]domain.ExecutionResult, error)
	ExecuteExits(ctx context.Context, exits []domain.ExitSignal) int
}

// PositionBook is the ledger surface the cycle needs.
type PositionBook interface {
	Positions() []domain.Position
	UpdatePrices(prices map[string]float64)
	ResetDaily()
}

// Watcher re-targets the streaming price feed at the current token set.
// Optional; nil disables.
type Watcher interface {
	Watch(ctx context.Context, tokenIDs []string) error
}

// Alerter pushes operator notifications. Optional; nil disables. Implemented
// by *notify.Notifier.
type Alerter interface {
	TradeOpened(ctx context.Context, res domain.ExecutionResult, bucketLabel string)
	PositionExited(ctx context.Context, exit domain.ExitSignal)
	CycleError(ctx context.Context, err error)
}

// QuoteSource fetches order-book midpoints for tokens missing from both the
// scan and the price cache. Optional; nil disables. Implemented by the CLOB
// client.
type QuoteSource interface {
	Midpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}

// Deps bundles the bot's collaborators. Watcher, Alerts, and Quotes are
// optional and may be nil.
type Deps struct {
	Scanner   MarketScanner
	Collector WeatherCollector
	Forecast  Forecaster
	Executor  OrderExecutor
	Book      PositionBook
	Prices    domain.PriceCache
	Watcher   Watcher
	Alerts    Alerter
	Quotes    QuoteSource
}

// Config holds the cycle parameters.
type Config struct {
	PollInterval time.Duration
	MaxDaysAhead int
	Strategy     strategy.Params
}

// Bot owns the periodic trading cycle. Cycles never overlap: a cycle still
// running when the ticker fires again causes the new tick to be skipped.
// A failed cycle is logged and the loop continues.
type Bot struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger

	running      atomic.Bool
	lastResetDay string
	now          func() time.Time
}

// New creates a Bot from its dependency bundle.
func New(deps Deps, cfg Config, logger *slog.Logger) *Bot {
	return &Bot{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "bot")),
		now:    time.Now,
	}
}

// Run executes one cycle immediately, then one per poll interval until the
// context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "bot started",
		slog.Duration("poll_interval", b.cfg.PollInterval),
		slog.Int("max_days_ahead", b.cfg.MaxDaysAhead),
	)

	b.runCycle(ctx)

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.InfoContext(ctx, "bot stopping")
			return ctx.Err()
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}

func (b *Bot) runCycle(ctx context.Context) {
	if err := b.Cycle(ctx); err != nil {
		b.logger.ErrorContext(ctx, "cycle failed", slog.Any("error", err))
		if b.deps.Alerts != nil {
			b.deps.Alerts.CycleError(ctx, err)
		}
	}
}

// Cycle runs one full scan-forecast-trade pass. It returns an error for
// cycle-fatal conditions (scan failure); per-market and per-source problems
// are contained and logged.
func (b *Bot) Cycle(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		b.logger.WarnContext(ctx, "previous cycle still running, skipping tick")
		return nil
	}
	defer b.running.Store(false)

	started := b.now()
	b.resetDailyIfNeeded(ctx)

	events, err := b.deps.Scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("bot: scan markets: %w", err)
	}

	groups := b.groupMarkets(events)
	if len(groups) == 0 {
		b.logger.InfoContext(ctx, "no tradable markets in window")
	}

	cityData := b.collectCities(ctx, groups)

	var signals []domain.TradeSignal
	forecastByToken := make(map[string]float64)
	marketPrices := make(map[string]float64)

	for _, group := range groups {
		data, ok := cityData[group.city]
		if !ok {
			continue
		}

		buckets := make([]domain.Bucket, 0, len(group.markets))
		for _, m := range group.markets {
			buckets = append(buckets, m.Bucket())
			marketPrices[m.TokenID] = m.Price
		}

		agg, err := b.deps.Forecast.Aggregate(forecast.AggregateInput{
			Ensembles:     data.Ensembles,
			TargetDate:    group.date,
			Buckets:       buckets,
			Deterministic: data.Deterministic,
			Observed:      data.Observed,
		})
		if err != nil {
			b.logger.WarnContext(ctx, "aggregation failed",
				slog.String("city", group.city),
				slog.String("date", group.date),
				slog.Any("error", err),
			)
			continue
		}

		edges := strategy.ComputeEdges(agg, group.markets, b.logger)

		// Exit evaluation needs the YES probability for every market with an
		// open position, edge or not.
		for _, m := range group.markets {
			if prob, found := bucketProbability(agg, m); found {
				forecastByToken[m.TokenID] = prob
			}
		}

		signals = append(signals, strategy.GenerateSignals(edges, agg, b.cfg.Strategy, b.logger)...)
	}

	// Highest edge first across all cities.
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Edge > signals[j].Edge
	})

	prices := b.refreshPrices(ctx, marketPrices)
	b.deps.Book.UpdatePrices(prices)

	// Exits run before entries so freed collateral is available to the batch.
	exits := executor.EvaluateExits(b.deps.Book.Positions(), forecastByToken, prices, b.cfg.Strategy.EdgeThreshold, b.logger)
	exited := b.deps.Executor.ExecuteExits(ctx, exits)
	if b.deps.Alerts != nil && exited > 0 {
		for _, exit := range exits {
			b.deps.Alerts.PositionExited(ctx, exit)
		}
	}

	results, err := b.deps.Executor.ExecuteSignals(ctx, signals)
	if err != nil {
		b.logger.ErrorContext(ctx, "signal execution failed", slog.Any("error", err))
	}
	if b.deps.Alerts != nil {
		byToken := make(map[string]string, len(signals))
		for _, sig := range signals {
			byToken[sig.TokenID] = sig.BucketLabel
		}
		for _, res := range results {
			if res.Status == domain.ExecutionPlaced || res.Status == domain.ExecutionFilled {
				b.deps.Alerts.TradeOpened(ctx, res, byToken[res.TokenID])
			}
		}
	}

	b.retargetFeed(ctx, marketPrices)

	b.logger.InfoContext(ctx, "cycle complete",
		slog.Int("events", len(events)),
		slog.Int("groups", len(groups)),
		slog.Int("signals", len(signals)),
		slog.Int("executions", len(results)),
		slog.Int("exits", exited),
		slog.Duration("elapsed", b.now().Sub(started)),
	)
	return nil
}

// marketGroup is the set of bucket markets for one (city, date), with bucket
// bounds normalized to °F.
type marketGroup struct {
	city    string
	date    string
	markets []domain.WeatherMarket
}

// groupMarkets flattens events into (city, date) groups, dropping markets
// outside the trading window and converting °C bucket bounds to °F so all
// probability math runs in one unit.
func (b *Bot) groupMarkets(events []domain.WeatherEvent) []marketGroup {
	today := b.now().UTC().Truncate(24 * time.Hour)
	latest := today.AddDate(0, 0, b.cfg.MaxDaysAhead)

	byKey := make(map[string]*marketGroup)
	var order []string

	for _, event := range events {
		for _, m := range event.Markets {
			date, err := time.Parse("2006-01-02", m.Date)
			if err != nil || date.Before(today) || date.After(latest) {
				continue
			}

			normalized := m
			if m.Unit == domain.UnitCelsius {
				converted := m.Bucket().ToFahrenheit(domain.UnitCelsius)
				normalized.BucketLower = converted.Lower
				normalized.BucketUpper = converted.Upper
				normalized.Unit = domain.UnitFahrenheit
			}

			key := m.City + "|" + m.Date
			group, ok := byKey[key]
			if !ok {
				group = &marketGroup{city: m.City, date: m.Date}
				byKey[key] = group
				order = append(order, key)
			}
			group.markets = append(group.markets, normalized)
		}
	}

	groups := make([]marketGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

// collectCities fetches forecasts once per distinct city in the groups.
func (b *Bot) collectCities(ctx context.Context, groups []marketGroup) map[string]weather.CityData {
	data := make(map[string]weather.CityData)
	for _, group := range groups {
		if _, done := data[group.city]; done {
			continue
		}
		city, ok := config.CityBySlug(group.city)
		if !ok {
			b.logger.WarnContext(ctx, "unknown city slug", slog.String("city", group.city))
			continue
		}
		collected, err := b.deps.Collector.Collect(ctx, city)
		if err != nil {
			b.logger.WarnContext(ctx, "forecast collection failed",
				slog.String("city", group.city),
				slog.Any("error", err),
			)
			continue
		}
		data[group.city] = collected
	}
	return data
}

// refreshPrices merges scanned market prices with the cache. With a feed
// streaming, cached entries are fresher than the scan and win; without one
// the scan is the freshest source and cached values only fill in tokens the
// scan missed, such as open positions whose markets fell out of the scan.
func (b *Bot) refreshPrices(ctx context.Context, marketPrices map[string]float64) map[string]float64 {
	streaming := b.deps.Watcher != nil

	prices := make(map[string]float64, len(marketPrices))
	tokenIDs := make([]string, 0, len(marketPrices))
	for tokenID, price := range marketPrices {
		prices[tokenID] = price
		tokenIDs = append(tokenIDs, tokenID)
	}
	for _, pos := range b.deps.Book.Positions() {
		if _, ok := prices[pos.TokenID]; !ok {
			tokenIDs = append(tokenIDs, pos.TokenID)
		}
	}

	cached, err := b.deps.Prices.GetPrices(ctx, tokenIDs)
	if err != nil {
		b.logger.WarnContext(ctx, "price cache read failed", slog.Any("error", err))
		cached = nil
	}
	for tokenID, price := range cached {
		if _, fromScan := marketPrices[tokenID]; fromScan && !streaming {
			continue
		}
		prices[tokenID] = price
	}

	// Write this cycle's scan prices back so the cache tracks the market.
	// Streamed prices are never overwritten: that would roll them back to
	// scan time.
	for tokenID, price := range marketPrices {
		if _, inCache := cached[tokenID]; streaming && inCache {
			continue
		}
		if err := b.deps.Prices.SetPrice(ctx, tokenID, price, b.now()); err != nil {
			b.logger.WarnContext(ctx, "price cache write failed",
				slog.String("token_id", tokenID),
				slog.Any("error", err),
			)
		}
	}

	// Position tokens absent from both scan and cache fall back to order-book
	// midpoints so exits are never evaluated against stale marks.
	if b.deps.Quotes != nil {
		var missing []string
		for _, tokenID := range tokenIDs {
			if _, ok := prices[tokenID]; !ok {
				missing = append(missing, tokenID)
			}
		}
		if len(missing) > 0 {
			mids, err := b.deps.Quotes.Midpoints(ctx, missing)
			if err != nil {
				b.logger.WarnContext(ctx, "midpoint fetch failed", slog.Any("error", err))
			}
			for tokenID, mid := range mids {
				prices[tokenID] = mid
			}
		}
	}

	return prices
}

// retargetFeed points the streaming feed at the union of scanned markets and
// open positions.
func (b *Bot) retargetFeed(ctx context.Context, marketPrices map[string]float64) {
	if b.deps.Watcher == nil {
		return
	}

	seen := make(map[string]struct{}, len(marketPrices))
	tokenIDs := make([]string, 0, len(marketPrices))
	for tokenID := range marketPrices {
		seen[tokenID] = struct{}{}
		tokenIDs = append(tokenIDs, tokenID)
	}
	for _, pos := range b.deps.Book.Positions() {
		if _, ok := seen[pos.TokenID]; !ok {
			tokenIDs = append(tokenIDs, pos.TokenID)
		}
	}
	sort.Strings(tokenIDs)

	if err := b.deps.Watcher.Watch(ctx, tokenIDs); err != nil {
		b.logger.WarnContext(ctx, "price feed retarget failed", slog.Any("error", err))
	}
}

// resetDailyIfNeeded clears the daily realized-loss counter when the UTC
// date changes.
func (b *Bot) resetDailyIfNeeded(ctx context.Context) {
	day := b.now().UTC().Format("2006-01-02")
	if b.lastResetDay == "" {
		b.lastResetDay = day
		return
	}
	if day != b.lastResetDay {
		b.logger.InfoContext(ctx, "new trading day, resetting daily counters",
			slog.String("day", day),
		)
		b.deps.Book.ResetDaily()
		b.lastResetDay = day
	}
}

// bucketProbability finds the aggregated probability for a market's bucket.
func bucketProbability(agg domain.AggregatedForecast, m domain.WeatherMarket) (float64, bool) {
	target := m.Bucket()
	for _, bp := range agg.BucketProbabilities {
		if bp.BoundsEqual(target) {
			return bp.Probability, true
		}
	}
	return 0, false
}
