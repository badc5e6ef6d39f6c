package config

import "sort"

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Chain.RPCURL)

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Venues = append([]VenueConfig(nil), cfg.Venues...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Notify.TelegramChatIDs = append([]string(nil), cfg.Notify.TelegramChatIDs...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.secretSources = nil

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// secretFields lists every secret by its TOML path.
func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"chain.rpc_url":              &c.Chain.RPCURL,
		"wallet.private_key":         &c.Wallet.PrivateKey,
		"wallet.key_password":        &c.Wallet.KeyPassword,
		"postgres.dsn":               &c.Postgres.DSN,
		"postgres.password":          &c.Postgres.Password,
		"redis.password":             &c.Redis.Password,
		"s3.access_key":              &c.S3.AccessKey,
		"s3.secret_key":              &c.S3.SecretKey,
		"server.api_key":             &c.Server.APIKey,
		"notify.telegram_token":      &c.Notify.TelegramToken,
		"notify.discord_webhook_url": &c.Notify.DiscordWebhookURL,
	}
}

// recordSecrets marks every secret currently set as coming from source.
func (c *Config) recordSecrets(source string) {
	for name, v := range c.secretFields() {
		if *v == "" {
			continue
		}
		if c.secretSources == nil {
			c.secretSources = make(map[string]string)
		}
		c.secretSources[name] = source
	}
}

// SecretSources names where each configured secret was loaded from, e.g.
// "wallet.private_key=env DEXARB_WALLET_PRIVATE_KEY". Values never appear.
func (c *Config) SecretSources() []string {
	out := make([]string, 0, len(c.secretSources))
	for name, src := range c.secretSources {
		out = append(out, name+"="+src)
	}
	sort.Strings(out)
	return out
}
