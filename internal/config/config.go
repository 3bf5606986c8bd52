// Package config defines the top-level configuration for the coldsnap bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by COLDSNAP_* environment
// variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Weather    WeatherConfig    `toml:"weather"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Bot        BotConfig        `toml:"bot"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Data       DataConfig       `toml:"data"`
	Notify     NotifyConfig     `toml:"notify"`
	Server     ServerConfig     `toml:"server"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials for order signing. The key
// is supplied either raw via PrivateKey or as an encrypted key file (see
// crypto.EncryptKey) via EncryptedKeyPath plus KeyPassword.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	ProxyWallet      string `toml:"proxy_wallet"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	ChainID       int    `toml:"chain_id"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// WeatherConfig holds weather data provider endpoints and source tuning.
type WeatherConfig struct {
	OpenMeteoEnsembleURL string  `toml:"open_meteo_ensemble_url"`
	OpenMeteoForecastURL string  `toml:"open_meteo_forecast_url"`
	NwsBaseURL           string  `toml:"nws_base_url"`
	WeatherApiKey        string  `toml:"weather_api_key"`
	EnableHrrr           bool    `toml:"enable_hrrr"`
	DeterministicWeight  int     `toml:"deterministic_weight"`
	ObservedPolicy       string  `toml:"observed_policy"` // "sample", "floor", or "sample+floor"
	ObservedWeight       int     `toml:"observed_weight"`
	RequestsPerSecond    float64 `toml:"requests_per_second"`
}

// StrategyConfig holds edge, sizing, and risk parameters.
type StrategyConfig struct {
	EdgeThreshold   float64 `toml:"edge_threshold"`
	KellyFraction   float64 `toml:"kelly_fraction"`
	MaxPositionUSD  float64 `toml:"max_position_usd"`
	MaxDailyLossUSD float64 `toml:"max_daily_loss_usd"`
	BankrollUSD     float64 `toml:"bankroll_usd"`
}

// BotConfig holds scheduling and execution-mode parameters.
type BotConfig struct {
	PollInterval duration `toml:"poll_interval"`
	DryRun       bool     `toml:"dry_run"`
	MaxDaysAhead int      `toml:"max_days_ahead"`
}

// RedisConfig holds Redis connection parameters for the price cache. An
// empty Addr selects the in-memory cache instead.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// PostgresConfig holds connection parameters for the optional execution
// history store. An empty DSN disables recording.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// ServerConfig holds the read-only ops API settings. Port 0 disables the
// server. An empty APIKey disables authentication.
type ServerConfig struct {
	Port   int    `toml:"port"`
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds alerting channel credentials. Channels with empty
// credentials are not registered. Events limits which alert types are
// delivered; empty means all.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// DataConfig holds on-disk persistence paths.
type DataConfig struct {
	Dir           string `toml:"dir"`
	PositionsFile string `toml:"positions_file"`
	TradesFile    string `toml:"trades_file"`
}

// duration wraps time.Duration to support TOML string decoding (e.g. "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with all operational defaults filled in. The
// defaults are safe: dry-run on, no credentials, conservative strategy
// limits.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com",
			ChainID:   137,
		},
		Weather: WeatherConfig{
			OpenMeteoEnsembleURL: "https://ensemble-api.open-meteo.com/v1/ensemble",
			OpenMeteoForecastURL: "https://api.open-meteo.com/v1/forecast",
			NwsBaseURL:           "https://api.weather.gov",
			EnableHrrr:           true,
			DeterministicWeight:  1,
			ObservedPolicy:       "sample",
			ObservedWeight:       1,
			RequestsPerSecond:    5,
		},
		Strategy: StrategyConfig{
			EdgeThreshold:   0.08,
			KellyFraction:   0.5,
			MaxPositionUSD:  50,
			MaxDailyLossUSD: 100,
			BankrollUSD:     1000,
		},
		Bot: BotConfig{
			PollInterval: duration{5 * time.Minute},
			DryRun:       true,
			MaxDaysAhead: 2,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			PoolMaxConns: 4,
			PoolMinConns: 1,
		},
		Data: DataConfig{
			Dir:           "data",
			PositionsFile: "positions.json",
			TradesFile:    "trades.jsonl",
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for internally inconsistent or unusable
// values. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Strategy.EdgeThreshold <= 0 || c.Strategy.EdgeThreshold >= 1 {
		return fmt.Errorf("config: edge_threshold must be in (0, 1), got %v", c.Strategy.EdgeThreshold)
	}
	if c.Strategy.KellyFraction <= 0 || c.Strategy.KellyFraction > 1 {
		return fmt.Errorf("config: kelly_fraction must be in (0, 1], got %v", c.Strategy.KellyFraction)
	}
	if c.Strategy.BankrollUSD <= 0 {
		return fmt.Errorf("config: bankroll_usd must be positive, got %v", c.Strategy.BankrollUSD)
	}
	if c.Strategy.MaxPositionUSD <= 0 || c.Strategy.MaxPositionUSD > c.Strategy.BankrollUSD {
		return fmt.Errorf("config: max_position_usd must be in (0, bankroll_usd], got %v", c.Strategy.MaxPositionUSD)
	}
	if c.Strategy.MaxDailyLossUSD <= 0 {
		return fmt.Errorf("config: max_daily_loss_usd must be positive, got %v", c.Strategy.MaxDailyLossUSD)
	}
	if c.Bot.PollInterval.Duration < time.Second {
		return fmt.Errorf("config: poll_interval must be at least 1s, got %v", c.Bot.PollInterval.Duration)
	}
	switch c.Weather.ObservedPolicy {
	case "sample", "floor", "sample+floor":
	default:
		return fmt.Errorf("config: observed_policy must be sample, floor, or sample+floor, got %q", c.Weather.ObservedPolicy)
	}
	if !c.Bot.DryRun {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			return fmt.Errorf("config: wallet private_key or encrypted_key_path is required when dry_run is off")
		}
		if !strings.HasPrefix(c.Polymarket.ClobHost, "http") {
			return fmt.Errorf("config: clob_host must be an http(s) URL, got %q", c.Polymarket.ClobHost)
		}
	}
	return nil
}
