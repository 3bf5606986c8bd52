package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COLDSNAP_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COLDSNAP_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "COLDSNAP_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "COLDSNAP_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "COLDSNAP_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.ProxyWallet, "COLDSNAP_WALLET_PROXY_WALLET")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "COLDSNAP_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "COLDSNAP_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "COLDSNAP_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "COLDSNAP_POLYMARKET_CHAIN_ID")
	setStr(&cfg.Polymarket.ApiKey, "COLDSNAP_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "COLDSNAP_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "COLDSNAP_POLYMARKET_API_PASSPHRASE")

	// ── Weather ──
	setStr(&cfg.Weather.OpenMeteoEnsembleURL, "COLDSNAP_WEATHER_OPEN_METEO_ENSEMBLE_URL")
	setStr(&cfg.Weather.OpenMeteoForecastURL, "COLDSNAP_WEATHER_OPEN_METEO_FORECAST_URL")
	setStr(&cfg.Weather.NwsBaseURL, "COLDSNAP_WEATHER_NWS_BASE_URL")
	setStr(&cfg.Weather.WeatherApiKey, "COLDSNAP_WEATHER_API_KEY")
	setBool(&cfg.Weather.EnableHrrr, "COLDSNAP_WEATHER_ENABLE_HRRR")
	setInt(&cfg.Weather.DeterministicWeight, "COLDSNAP_WEATHER_DETERMINISTIC_WEIGHT")
	setStr(&cfg.Weather.ObservedPolicy, "COLDSNAP_WEATHER_OBSERVED_POLICY")
	setInt(&cfg.Weather.ObservedWeight, "COLDSNAP_WEATHER_OBSERVED_WEIGHT")
	setFloat64(&cfg.Weather.RequestsPerSecond, "COLDSNAP_WEATHER_REQUESTS_PER_SECOND")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.EdgeThreshold, "COLDSNAP_STRATEGY_EDGE_THRESHOLD")
	setFloat64(&cfg.Strategy.KellyFraction, "COLDSNAP_STRATEGY_KELLY_FRACTION")
	setFloat64(&cfg.Strategy.MaxPositionUSD, "COLDSNAP_STRATEGY_MAX_POSITION_USD")
	setFloat64(&cfg.Strategy.MaxDailyLossUSD, "COLDSNAP_STRATEGY_MAX_DAILY_LOSS_USD")
	setFloat64(&cfg.Strategy.BankrollUSD, "COLDSNAP_STRATEGY_BANKROLL_USD")

	// ── Bot ──
	setDuration(&cfg.Bot.PollInterval, "COLDSNAP_BOT_POLL_INTERVAL")
	setBool(&cfg.Bot.DryRun, "COLDSNAP_BOT_DRY_RUN")
	setInt(&cfg.Bot.MaxDaysAhead, "COLDSNAP_BOT_MAX_DAYS_AHEAD")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COLDSNAP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COLDSNAP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COLDSNAP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COLDSNAP_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COLDSNAP_REDIS_MAX_RETRIES")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COLDSNAP_POSTGRES_DSN")
	setInt(&cfg.Postgres.PoolMaxConns, "COLDSNAP_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COLDSNAP_POSTGRES_POOL_MIN_CONNS")

	// ── Data ──
	setStr(&cfg.Data.Dir, "COLDSNAP_DATA_DIR")
	setStr(&cfg.Data.PositionsFile, "COLDSNAP_DATA_POSITIONS_FILE")
	setStr(&cfg.Data.TradesFile, "COLDSNAP_DATA_TRADES_FILE")

	// ── Server ──
	setInt(&cfg.Server.Port, "COLDSNAP_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "COLDSNAP_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COLDSNAP_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COLDSNAP_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COLDSNAP_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "COLDSNAP_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
