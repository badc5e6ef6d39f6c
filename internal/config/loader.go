package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// envPrefix namespaces every environment override.
const envPrefix = "DEXARB_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEXARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.recordSecrets("file " + path)

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEXARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	cfg.setSecret(&cfg.Chain.RPCURL, "chain.rpc_url", "DEXARB_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "DEXARB_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.RouterAddress, "DEXARB_CHAIN_ROUTER_ADDRESS")
	setStr(&cfg.Chain.FlashLoanProviderAddress, "DEXARB_CHAIN_FLASH_LOAN_PROVIDER_ADDRESS")
	setDuration(&cfg.Chain.ConfirmationTimeout, "DEXARB_CHAIN_CONFIRMATION_TIMEOUT")
	setDuration(&cfg.Chain.ReceiptPollInterval, "DEXARB_CHAIN_RECEIPT_POLL_INTERVAL")

	// ── Pair / venues ──
	setStr(&cfg.Pair.Name, "DEXARB_PAIR_NAME")
	setStr(&cfg.Pair.TokenA, "DEXARB_PAIR_TOKEN_A")
	setStr(&cfg.Pair.TokenB, "DEXARB_PAIR_TOKEN_B")
	setInt32(&cfg.Pair.Decimals, "DEXARB_PAIR_DECIMALS")
	setVenues(&cfg.Venues, "DEXARB_VENUES")

	// ── Wallet ──
	cfg.setSecret(&cfg.Wallet.PrivateKey, "wallet.private_key", "DEXARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "DEXARB_WALLET_ENCRYPTED_KEY_PATH")
	cfg.setSecret(&cfg.Wallet.KeyPassword, "wallet.key_password", "DEXARB_WALLET_KEY_PASSWORD")

	// ── Arbitrage ──
	setStr(&cfg.Arbitrage.Strategy, "DEXARB_ARBITRAGE_STRATEGY")
	setFloat64(&cfg.Arbitrage.MinProfitFraction, "DEXARB_ARBITRAGE_MIN_PROFIT_FRACTION")
	setFloat64(&cfg.Arbitrage.DeviationThreshold, "DEXARB_ARBITRAGE_DEVIATION_THRESHOLD")
	setDuration(&cfg.Arbitrage.PollInterval, "DEXARB_ARBITRAGE_POLL_INTERVAL")
	setDuration(&cfg.Arbitrage.FetchTimeout, "DEXARB_ARBITRAGE_FETCH_TIMEOUT")

	// ── Risk ──
	setStr(&cfg.Risk.MaxPositionSize, "DEXARB_RISK_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.StopLossThreshold, "DEXARB_RISK_STOP_LOSS_THRESHOLD")
	setInt(&cfg.Risk.VolatilityWindow, "DEXARB_RISK_VOLATILITY_WINDOW")
	setFloat64(&cfg.Risk.StaticVolatility, "DEXARB_RISK_STATIC_VOLATILITY")

	// ── Execution ──
	setBool(&cfg.Execution.Enabled, "DEXARB_EXECUTION_ENABLED")
	setBool(&cfg.Execution.UseFlashLoan, "DEXARB_EXECUTION_USE_FLASH_LOAN")
	setInt(&cfg.Execution.SlippageTolerance, "DEXARB_EXECUTION_SLIPPAGE_TOLERANCE")
	setInt(&cfg.Execution.WindowMinutes, "DEXARB_EXECUTION_WINDOW_MINUTES")
	setInt(&cfg.Execution.MaxAttempts, "DEXARB_EXECUTION_MAX_ATTEMPTS")
	setDuration(&cfg.Execution.RetryInterval, "DEXARB_EXECUTION_RETRY_INTERVAL")
	setDuration(&cfg.Execution.Cooldown, "DEXARB_EXECUTION_COOLDOWN")
	setDuration(&cfg.Execution.LockTTL, "DEXARB_EXECUTION_LOCK_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DEXARB_POSTGRES_ENABLED")
	cfg.setSecret(&cfg.Postgres.DSN, "postgres.dsn", "DEXARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DEXARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEXARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEXARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEXARB_POSTGRES_USER")
	cfg.setSecret(&cfg.Postgres.Password, "postgres.password", "DEXARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEXARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEXARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEXARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEXARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DEXARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DEXARB_REDIS_ADDR")
	cfg.setSecret(&cfg.Redis.Password, "redis.password", "DEXARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEXARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEXARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEXARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DEXARB_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SnapshotTTL, "DEXARB_REDIS_SNAPSHOT_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DEXARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DEXARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DEXARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "DEXARB_S3_BUCKET")
	cfg.setSecret(&cfg.S3.AccessKey, "s3.access_key", "DEXARB_S3_ACCESS_KEY")
	cfg.setSecret(&cfg.S3.SecretKey, "s3.secret_key", "DEXARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DEXARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DEXARB_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "DEXARB_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "DEXARB_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "DEXARB_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DEXARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DEXARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEXARB_SERVER_CORS_ORIGINS")
	cfg.setSecret(&cfg.Server.APIKey, "server.api_key", "DEXARB_SERVER_API_KEY")

	// ── Notify ──
	cfg.setSecret(&cfg.Notify.TelegramToken, "notify.telegram_token", "DEXARB_NOTIFY_TELEGRAM_TOKEN")
	setStringSlice(&cfg.Notify.TelegramChatIDs, "DEXARB_NOTIFY_TELEGRAM_CHAT_IDS")
	cfg.setSecret(&cfg.Notify.DiscordWebhookURL, "notify.discord_webhook_url", "DEXARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DEXARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DEXARB_MODE")
	setStr(&cfg.LogLevel, "DEXARB_LOG_LEVEL")
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

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setVenues parses "name=0xpair,name=0xpair". A malformed entry leaves the
// configured venues untouched so Validate reports the file's state.
func setVenues(dst *[]VenueConfig, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var venues []VenueConfig
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, addr, ok := strings.Cut(entry, "=")
		if !ok {
			return
		}
		venues = append(venues, VenueConfig{
			Name:        strings.TrimSpace(name),
			PairAddress: strings.TrimSpace(addr),
		})
	}
	if len(venues) > 0 {
		*dst = venues
	}
}

// setSecret is setStr that also records the environment variable as the
// secret's source.
func (c *Config) setSecret(dst *string, name, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
		if c.secretSources == nil {
			c.secretSources = make(map[string]string)
		}
		c.secretSources[name] = "env " + key
	}
}
