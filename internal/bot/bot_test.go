package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldsnap-trading/coldsnap/internal/cache/memory"
	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/forecast"
	"github.com/coldsnap-trading/coldsnap/internal/strategy"
	"github.com/coldsnap-trading/coldsnap/internal/weather"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedNow is the cycle clock used across tests; markets dated the next day
// fall inside a 2-day window.
var fixedNow = time.Date(2025, 2, 20, 15, 0, 0, 0, time.UTC)

type fakeScanner struct {
	events []domain.WeatherEvent
	err    error
}

func (f *fakeScanner) Scan(context.Context) ([]domain.WeatherEvent, error) {
	return f.events, f.err
}

type fakeCollector struct {
	mu     sync.Mutex
	calls  []string
	data   weather.CityData
	err    error
}

func (f *fakeCollector) Collect(_ context.Context, city config.City) (weather.CityData, error) {
	f.mu.Lock()
	f.calls = append(f.calls, city.Slug)
	f.mu.Unlock()
	if f.err != nil {
		return weather.CityData{}, f.err
	}
	return f.data, nil
}

type fakeForecaster struct {
	inputs []forecast.AggregateInput
	out    domain.AggregatedForecast
	err    error
}

func (f *fakeForecaster) Aggregate(in forecast.AggregateInput) (domain.AggregatedForecast, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return domain.AggregatedForecast{}, f.err
	}
	out := f.out
	out.Date = in.TargetDate
	// Echo the input buckets back with a fixed probability so edge matching
	// works against whatever bounds the bot handed in.
	for _, b := range in.Buckets {
		out.BucketProbabilities = append(out.BucketProbabilities, domain.BucketProbability{
			Bucket:      b,
			Probability: 0.60,
		})
	}
	return out, nil
}

type fakeExecutor struct {
	signals []domain.TradeSignal
	exits   []domain.ExitSignal
	order   []string
}

func (f *fakeExecutor) ExecuteSignals(_ context.Context, signals []domain.TradeSignal) ([]domain.ExecutionResult, error) {
	f.order = append(f.order, "signals")
	f.signals = append(f.signals, signals...)
	results := make([]domain.ExecutionResult, len(signals))
	return results, nil
}

func (f *fakeExecutor) ExecuteExits(_ context.Context, exits []domain.ExitSignal) int {
	f.order = append(f.order, "exits")
	f.exits = append(f.exits, exits...)
	return len(exits)
}

type fakeBook struct {
	positions []domain.Position
	updated   map[string]float64
	resets    int
}

func (f *fakeBook) Positions() []domain.Position { return f.positions }

func (f *fakeBook) UpdatePrices(prices map[string]float64) { f.updated = prices }

func (f *fakeBook) ResetDaily() { f.resets++ }

type fakeWatcher struct {
	watched [][]string
}

func (f *fakeWatcher) Watch(_ context.Context, tokenIDs []string) error {
	f.watched = append(f.watched, tokenIDs)
	return nil
}

func testEvents() []domain.WeatherEvent {
	return []domain.WeatherEvent{
		{
			EventID: "evt-1",
			Active:  true,
			Markets: []domain.WeatherMarket{
				{
					ConditionID: "cond-1",
					TokenID:     "tok-cheap",
					Price:       0.30, // forecast 0.60 -> YES edge 0.30
					City:        "nyc",
					Date:        "2025-02-21",
					BucketLower: domain.F(40),
					BucketUpper: domain.F(44),
					BucketLabel: "40-44",
					Unit:        domain.UnitFahrenheit,
				},
				{
					ConditionID: "cond-1",
					TokenID:     "tok-fair",
					Price:       0.60, // no edge
					City:        "nyc",
					Date:        "2025-02-21",
					BucketLower: domain.F(45),
					BucketUpper: domain.F(49),
					BucketLabel: "45-49",
					Unit:        domain.UnitFahrenheit,
				},
			},
		},
	}
}

func testConfig() Config {
	return Config{
		PollInterval: time.Minute,
		MaxDaysAhead: 2,
		Strategy: strategy.Params{
			EdgeThreshold:  0.08,
			KellyFraction:  0.5,
			BankrollUSD:    1000,
			MaxPositionUSD: 100,
		},
	}
}

func newTestBot(scanner *fakeScanner, collector *fakeCollector, agg *fakeForecaster, exec *fakeExecutor, book *fakeBook, watcher Watcher) *Bot {
	b := New(Deps{
		Scanner:   scanner,
		Collector: collector,
		Forecast:  agg,
		Executor:  exec,
		Book:      book,
		Prices:    memory.NewPriceCache(),
		Watcher:   watcher,
	}, testConfig(), discard())
	b.now = func() time.Time { return fixedNow }
	return b
}

func TestCycleGeneratesSignalsFromEdges(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "nyc", Model: "GFS"}},
	}}
	agg := &fakeForecaster{out: domain.AggregatedForecast{City: "nyc", TotalMembers: 31, StdDev: 3}}
	exec := &fakeExecutor{}
	book := &fakeBook{}

	bot := newTestBot(scanner, collector, agg, exec, book, nil)
	require.NoError(t, bot.Cycle(context.Background()))

	require.Len(t, exec.signals, 1)
	sig := exec.signals[0]
	assert.Equal(t, "tok-cheap", sig.TokenID)
	assert.Equal(t, domain.SideYes, sig.Side)
	assert.InDelta(t, 0.30, sig.Edge, 1e-9)

	// Collection happens once per city, aggregation once per (city, date).
	assert.Equal(t, []string{"nyc"}, collector.calls)
	require.Len(t, agg.inputs, 1)
	assert.Equal(t, "2025-02-21", agg.inputs[0].TargetDate)
	assert.Len(t, agg.inputs[0].Buckets, 2)
}

func TestCycleScanFailureIsFatal(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("gamma down")}
	bot := newTestBot(scanner, &fakeCollector{}, &fakeForecaster{}, &fakeExecutor{}, &fakeBook{}, nil)

	err := bot.Cycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan markets")
}

func TestCycleExitsRunBeforeEntries(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "nyc", Model: "GFS"}},
	}}
	agg := &fakeForecaster{}
	exec := &fakeExecutor{}
	// Position in the fairly-priced market: forecast 0.60 vs price 0.60 means
	// the edge is gone, and the price sits above entry, so it gets flagged.
	book := &fakeBook{positions: []domain.Position{{
		TokenID:     "tok-fair",
		City:        "nyc",
		Date:        "2025-02-21",
		BucketLabel: "45-49",
		Side:        domain.SideYes,
		AvgPrice:    0.40,
		Size:        50,
	}}}

	bot := newTestBot(scanner, collector, agg, exec, book, nil)
	require.NoError(t, bot.Cycle(context.Background()))

	assert.Equal(t, []string{"exits", "signals"}, exec.order)
	require.Len(t, exec.exits, 1)
	assert.Equal(t, "tok-fair", exec.exits[0].Position.TokenID)
}

func TestCycleNormalizesCelsiusBuckets(t *testing.T) {
	events := []domain.WeatherEvent{{
		EventID: "evt-c",
		Markets: []domain.WeatherMarket{{
			ConditionID: "cond-c",
			TokenID:     "tok-c",
			Price:       0.30,
			City:        "london",
			Date:        "2025-02-21",
			BucketLower: domain.F(5), // °C
			BucketUpper: domain.F(7),
			BucketLabel: "5-7C",
			Unit:        domain.UnitCelsius,
		}},
	}}
	scanner := &fakeScanner{events: events}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "london", Model: "GFS"}},
	}}
	agg := &fakeForecaster{}
	exec := &fakeExecutor{}

	bot := newTestBot(scanner, collector, agg, exec, &fakeBook{}, nil)
	require.NoError(t, bot.Cycle(context.Background()))

	require.Len(t, agg.inputs, 1)
	require.Len(t, agg.inputs[0].Buckets, 1)
	bucket := agg.inputs[0].Buckets[0]
	require.NotNil(t, bucket.Lower)
	require.NotNil(t, bucket.Upper)
	assert.InDelta(t, 41.0, *bucket.Lower, 1e-9)
	assert.InDelta(t, 44.6, *bucket.Upper, 1e-9)

	// Conversion feeds through to edge matching too.
	require.Len(t, exec.signals, 1)
	assert.Equal(t, "tok-c", exec.signals[0].TokenID)
}

func TestCycleSkipsMarketsOutsideWindow(t *testing.T) {
	events := testEvents()
	events[0].Markets[0].Date = "2025-02-19" // yesterday
	events[0].Markets[1].Date = "2025-02-25" // past max_days_ahead

	scanner := &fakeScanner{events: events}
	collector := &fakeCollector{}
	agg := &fakeForecaster{}
	exec := &fakeExecutor{}

	bot := newTestBot(scanner, collector, agg, exec, &fakeBook{}, nil)
	require.NoError(t, bot.Cycle(context.Background()))

	assert.Empty(t, collector.calls)
	assert.Empty(t, agg.inputs)
	assert.Empty(t, exec.signals)
}

func TestCycleSurvivesCollectionFailure(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{err: errors.New("all providers down")}
	exec := &fakeExecutor{}

	bot := newTestBot(scanner, collector, &fakeForecaster{}, exec, &fakeBook{}, nil)
	require.NoError(t, bot.Cycle(context.Background()))
	assert.Empty(t, exec.signals)
}

func TestCycleUpdatesLedgerPrices(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "nyc", Model: "GFS"}},
	}}
	book := &fakeBook{}

	bot := newTestBot(scanner, collector, &fakeForecaster{}, &fakeExecutor{}, book, nil)
	require.NoError(t, bot.Cycle(context.Background()))

	require.NotNil(t, book.updated)
	assert.Equal(t, 0.30, book.updated["tok-cheap"])
	assert.Equal(t, 0.60, book.updated["tok-fair"])
}

func TestCyclePrefersStreamedPrices(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "nyc", Model: "GFS"}},
	}}
	book := &fakeBook{}
	// With a feed attached, a cached price is a streamed update and beats the
	// scan snapshot.
	cache := memory.NewPriceCache()
	require.NoError(t, cache.SetPrice(context.Background(), "tok-cheap", 0.35, fixedNow))

	bot := New(Deps{
		Scanner:   scanner,
		Collector: collector,
		Forecast:  &fakeForecaster{},
		Executor:  &fakeExecutor{},
		Book:      book,
		Prices:    cache,
		Watcher:   &fakeWatcher{},
	}, testConfig(), discard())
	bot.now = func() time.Time { return fixedNow }

	require.NoError(t, bot.Cycle(context.Background()))
	assert.Equal(t, 0.35, book.updated["tok-cheap"])
}

func TestCyclePollingTracksScanPrices(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "nyc", Model: "GFS"}},
	}}
	book := &fakeBook{}

	// No feed: the scan is the only live price source and must win over
	// whatever the cache remembers from earlier cycles.
	bot := newTestBot(scanner, collector, &fakeForecaster{}, &fakeExecutor{}, book, nil)
	require.NoError(t, bot.Cycle(context.Background()))
	assert.Equal(t, 0.30, book.updated["tok-cheap"])

	scanner.events[0].Markets[0].Price = 0.90
	require.NoError(t, bot.Cycle(context.Background()))
	assert.Equal(t, 0.90, book.updated["tok-cheap"])
}

// flakyCache fails SetPrice for one token and records the rest.
type flakyCache struct {
	domain.PriceCache
	failToken string
}

func (f *flakyCache) SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error {
	if tokenID == f.failToken {
		return errors.New("cache write refused")
	}
	return f.PriceCache.SetPrice(ctx, tokenID, price, ts)
}

func TestCycleCacheWriteFailureSkipsOnlyThatToken(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "nyc", Model: "GFS"}},
	}}
	cache := &flakyCache{PriceCache: memory.NewPriceCache(), failToken: "tok-cheap"}

	bot := New(Deps{
		Scanner:   scanner,
		Collector: collector,
		Forecast:  &fakeForecaster{},
		Executor:  &fakeExecutor{},
		Book:      &fakeBook{},
		Prices:    cache,
	}, testConfig(), discard())
	bot.now = func() time.Time { return fixedNow }

	require.NoError(t, bot.Cycle(context.Background()))

	price, _, err := cache.GetPrice(context.Background(), "tok-fair")
	require.NoError(t, err)
	assert.Equal(t, 0.60, price)
}

func TestCycleRetargetsFeed(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "nyc", Model: "GFS"}},
	}}
	watcher := &fakeWatcher{}
	book := &fakeBook{positions: []domain.Position{{TokenID: "tok-old", Side: domain.SideYes}}}

	bot := newTestBot(scanner, collector, &fakeForecaster{}, &fakeExecutor{}, book, watcher)
	require.NoError(t, bot.Cycle(context.Background()))

	require.Len(t, watcher.watched, 1)
	assert.ElementsMatch(t, []string{"tok-cheap", "tok-fair", "tok-old"}, watcher.watched[0])
}

func TestCycleResetsDailyOnDateChange(t *testing.T) {
	scanner := &fakeScanner{}
	book := &fakeBook{}
	bot := newTestBot(scanner, &fakeCollector{}, &fakeForecaster{}, &fakeExecutor{}, book, nil)

	day := fixedNow
	bot.now = func() time.Time { return day }
	require.NoError(t, bot.Cycle(context.Background()))
	assert.Equal(t, 0, book.resets)

	require.NoError(t, bot.Cycle(context.Background()))
	assert.Equal(t, 0, book.resets)

	day = fixedNow.Add(24 * time.Hour)
	require.NoError(t, bot.Cycle(context.Background()))
	assert.Equal(t, 1, book.resets)
}

func TestCycleSingleFlight(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("should not be called")}
	bot := newTestBot(scanner, &fakeCollector{}, &fakeForecaster{}, &fakeExecutor{}, &fakeBook{}, nil)

	bot.running.Store(true)
	require.NoError(t, bot.Cycle(context.Background()))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	bot := newTestBot(&fakeScanner{}, &fakeCollector{}, &fakeForecaster{}, &fakeExecutor{}, &fakeBook{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}

type fakeQuotes struct {
	asked []string
	mids  map[string]float64
}

func (f *fakeQuotes) Midpoints(_ context.Context, tokenIDs []string) (map[string]float64, error) {
	f.asked = append(f.asked, tokenIDs...)
	return f.mids, nil
}

func TestCycleFallsBackToMidpoints(t *testing.T) {
	scanner := &fakeScanner{events: testEvents()}
	collector := &fakeCollector{data: weather.CityData{
		Ensembles: []domain.EnsembleForecast{{City: "nyc", Model: "GFS"}},
	}}
	quotes := &fakeQuotes{mids: map[string]float64{"tok-old": 0.72}}
	// A position in a market that no longer appears in the scan.
	book := &fakeBook{positions: []domain.Position{{TokenID: "tok-old", Side: domain.SideYes, AvgPrice: 0.5, Size: 20}}}

	bot := New(Deps{
		Scanner:   scanner,
		Collector: collector,
		Forecast:  &fakeForecaster{},
		Executor:  &fakeExecutor{},
		Book:      book,
		Prices:    memory.NewPriceCache(),
		Quotes:    quotes,
	}, testConfig(), discard())
	bot.now = func() time.Time { return fixedNow }

	require.NoError(t, bot.Cycle(context.Background()))

	assert.Equal(t, []string{"tok-old"}, quotes.asked)
	assert.Equal(t, 0.72, book.updated["tok-old"])
}
