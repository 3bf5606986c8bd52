package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/coldsnap-trading/coldsnap/internal/bot"
	"github.com/coldsnap-trading/coldsnap/internal/cache/memory"
	"github.com/coldsnap-trading/coldsnap/internal/cache/redis"
	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/crypto"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/ledger"
	"github.com/coldsnap-trading/coldsnap/internal/notify"
	"github.com/coldsnap-trading/coldsnap/internal/platform/nws"
	"github.com/coldsnap-trading/coldsnap/internal/platform/openmeteo"
	"github.com/coldsnap-trading/coldsnap/internal/platform/polymarket"
	"github.com/coldsnap-trading/coldsnap/internal/platform/weatherapi"
	"github.com/coldsnap-trading/coldsnap/internal/store/postgres"
	"github.com/coldsnap-trading/coldsnap/internal/weather"
)

// wireCache selects Redis when an address is configured, otherwise the
// in-process cache. Dry runs and single-instance deployments need no Redis.
func (a *App) wireCache(ctx context.Context) (domain.PriceCache, error) {
	if a.cfg.Redis.Addr == "" {
		a.logger.InfoContext(ctx, "using in-memory price cache")
		return memory.NewPriceCache(), nil
	}

	client, err := redis.New(ctx, redis.ClientConfig{
		Addr:       a.cfg.Redis.Addr,
		Password:   a.cfg.Redis.Password,
		DB:         a.cfg.Redis.DB,
		PoolSize:   a.cfg.Redis.PoolSize,
		MaxRetries: a.cfg.Redis.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	return redis.NewPriceCache(client), nil
}

// wireExecutionStore connects Postgres and runs migrations when a DSN is
// configured. Without one, execution history recording is disabled.
func (a *App) wireExecutionStore(ctx context.Context) (domain.ExecutionStore, error) {
	if a.cfg.Postgres.DSN == "" {
		return nil, nil
	}

	client, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      a.cfg.Postgres.DSN,
		MaxConns: a.cfg.Postgres.PoolMaxConns,
		MinConns: a.cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)

	if err := client.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return postgres.NewExecutionStore(client.Pool()), nil
}

// wireLedger builds the file-backed position tracker and loads prior state.
func (a *App) wireLedger() *ledger.Tracker {
	store := ledger.NewFileStore(filepath.Join(a.cfg.Data.Dir, a.cfg.Data.PositionsFile))
	tradeLog := ledger.NewFileTradeLog(filepath.Join(a.cfg.Data.Dir, a.cfg.Data.TradesFile))

	tracker := ledger.NewTracker(store, tradeLog, a.logger)
	tracker.Load()
	return tracker
}

// wireClob builds the CLOB client. In dry-run mode the client is unsigned and
// read-only; in live mode the wallet key is loaded and API credentials are
// either taken from config or derived from an L1 signature.
func (a *App) wireClob(ctx context.Context) (*polymarket.ClobClient, error) {
	if a.cfg.Bot.DryRun {
		return polymarket.NewClobClient(a.cfg.Polymarket.ClobHost, nil, nil, a.logger), nil
	}

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("load wallet key: %w", err)
	}

	signer, err := crypto.NewSigner(key, a.cfg.Polymarket.ChainID)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	hmacAuth := &crypto.HMACAuth{
		Key:        a.cfg.Polymarket.ApiKey,
		Secret:     a.cfg.Polymarket.ApiSecret,
		Passphrase: a.cfg.Polymarket.ApiPassphrase,
	}

	client := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost, signer, hmacAuth, a.logger)
	if hmacAuth.Key == "" {
		if err := client.DeriveAPIKey(ctx); err != nil {
			return nil, fmt.Errorf("derive api key: %w", err)
		}
	}
	return client, nil
}

// wireWeather assembles the forecast collection service from the configured
// providers.
func (a *App) wireWeather() *weather.Service {
	w := a.cfg.Weather

	deterministic := []weather.DeterministicSource{
		nws.NewClient(w.NwsBaseURL, a.logger),
	}
	var observed weather.ObservedSource
	if w.WeatherApiKey != "" {
		wapi := weatherapi.NewClient("", w.WeatherApiKey, a.logger)
		deterministic = append(deterministic, wapi)
		observed = wapi
	}
	if w.EnableHrrr {
		deterministic = append(deterministic, openmeteo.NewHRRRClient(w.OpenMeteoForecastURL, w.RequestsPerSecond, a.logger))
	}

	return weather.NewService(
		openmeteo.NewEnsembleClient(w.OpenMeteoEnsembleURL, w.RequestsPerSecond, a.logger),
		config.EnsembleModels(),
		deterministic,
		observed,
		w.DeterministicWeight,
		a.logger,
	)
}

// wireFeed connects the streaming price feed when a websocket host is
// configured. Connection failures degrade to polling: the bot still prices
// from scans and order books.
func (a *App) wireFeed(ctx context.Context, cache domain.PriceCache) bot.Watcher {
	if a.cfg.Polymarket.WsHost == "" {
		return nil
	}

	feed := polymarket.NewPriceFeed(a.cfg.Polymarket.WsHost, cache, a.logger)
	if err := feed.Connect(ctx); err != nil {
		a.logger.WarnContext(ctx, "price feed unavailable, falling back to polling",
			slog.Any("error", err),
		)
		return nil
	}
	a.closers = append(a.closers, func() { _ = feed.Close() })

	return feed
}

// wireNotifier builds the alert fan-out from configured channels. Returns nil
// when no channel has credentials.
func (a *App) wireNotifier() bot.Alerter {
	var senders []notify.Sender
	if a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID))
	}
	if a.cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(a.cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.NewNotifier(senders, a.cfg.Notify.Events, a.logger)
}
