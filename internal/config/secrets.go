package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Polymarket.ApiKey)
	redact(&out.Polymarket.ApiSecret)
	redact(&out.Polymarket.ApiPassphrase)
	redact(&out.Weather.WeatherApiKey)
	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Server.APIKey)

	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
