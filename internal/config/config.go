// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DEXARB_* environment variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Pair      PairConfig      `toml:"pair"`
	Venues    []VenueConfig   `toml:"venues"`
	Wallet    WalletConfig    `toml:"wallet"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`

	// secretSources records where each secret was read from, for logging.
	secretSources map[string]string
}

// ChainConfig holds the RPC endpoint and contract addresses. RPCURL often
// embeds a provider API key and is treated as a secret.
type ChainConfig struct {
	RPCURL                   string   `toml:"rpc_url"`
	ChainID                  int64    `toml:"chain_id"`
	RouterAddress            string   `toml:"router_address"`
	FlashLoanProviderAddress string   `toml:"flash_loan_provider_address"`
	ConfirmationTimeout      duration `toml:"confirmation_timeout"`
	ReceiptPollInterval      duration `toml:"receipt_poll_interval"`
}

// PairConfig describes the traded token pair. Prices are quoted as TokenA
// per TokenB and amounts are TokenA base units.
type PairConfig struct {
	Name     string `toml:"name"`
	TokenA   string `toml:"token_a"`
	TokenB   string `toml:"token_b"`
	Decimals int32  `toml:"decimals"`
}

// Key names the pair in cache keys and notifications.
func (p PairConfig) Key() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.ToLower(p.TokenA + "-" + p.TokenB)
}

// VenueConfig is one constant-product pool quoting the pair.
type VenueConfig struct {
	Name        string `toml:"name"`
	PairAddress string `toml:"pair_address"`
}

// WalletConfig holds the trading key. Exactly one source is used: a raw
// key wins over an encrypted key file.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ArbitrageConfig selects the detection strategy and the polling cadence.
type ArbitrageConfig struct {
	// Strategy is "pairwise" or "deviation".
	Strategy           string   `toml:"strategy"`
	MinProfitFraction  float64  `toml:"min_profit_fraction"`
	DeviationThreshold float64  `toml:"deviation_threshold"`
	PollInterval       duration `toml:"poll_interval"`
	FetchTimeout       duration `toml:"fetch_timeout"`
}

// RiskConfig holds the position cap and the circuit breaker.
type RiskConfig struct {
	// MaxPositionSize is a decimal amount of TokenA, e.g. "1.5".
	MaxPositionSize   string  `toml:"max_position_size"`
	StopLossThreshold float64 `toml:"stop_loss_threshold"`
	// VolatilityWindow is the number of cycle prices in the rolling
	// estimate. Zero selects StaticVolatility.
	VolatilityWindow int     `toml:"volatility_window"`
	StaticVolatility float64 `toml:"static_volatility"`
}

// ExecutionConfig holds the trade submission parameters.
type ExecutionConfig struct {
	Enabled      bool `toml:"enabled"`
	UseFlashLoan bool `toml:"use_flash_loan"`
	// SlippageTolerance is in parts per thousand of the input amount.
	SlippageTolerance int      `toml:"slippage_tolerance"`
	WindowMinutes     int      `toml:"window_minutes"`
	MaxAttempts       int      `toml:"max_attempts"`
	RetryInterval     duration `toml:"retry_interval"`
	Cooldown          duration `toml:"cooldown"`
	LockTTL           duration `toml:"lock_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	SnapshotTTL duration `toml:"snapshot_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig schedules the journal archive to S3.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters. An empty APIKey leaves the
// control endpoints open.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatIDs   []string `toml:"telegram_chat_ids"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml. Secrets have no default.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:             1,
			ConfirmationTimeout: duration{2 * time.Minute},
			ReceiptPollInterval: duration{2 * time.Second},
		},
		Pair: PairConfig{
			Decimals: 18,
		},
		Arbitrage: ArbitrageConfig{
			Strategy:           "pairwise",
			MinProfitFraction:  0.005,
			DeviationThreshold: 0.01,
			PollInterval:       duration{10 * time.Second},
			FetchTimeout:       duration{5 * time.Second},
		},
		Risk: RiskConfig{
			MaxPositionSize:   "1",
			StopLossThreshold: 0.05,
			VolatilityWindow:  30,
		},
		Execution: ExecutionConfig{
			Enabled:           false,
			SlippageTolerance: 5,
			WindowMinutes:     5,
			MaxAttempts:       2,
			RetryInterval:     duration{2 * time.Second},
			Cooldown:          duration{30 * time.Second},
			LockTTL:           duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dexarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    20,
			MaxRetries:  3,
			SnapshotTTL: duration{time.Minute},
		},
		S3: S3Config{
			Region: "us-east-1",
			Bucket: "dexarb-archive",
			UseSSL: true,
		},
		Archive: ArchiveConfig{
			Cron:          "0 3 * * *",
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "trade_executed", "trade_failed", "circuit_breaker", "bot_stopped"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// maxWindowMinutes caps execution.window_minutes at one day.
const maxWindowMinutes = 24 * 60

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validStrategies = map[string]bool{
	"pairwise":  true,
	"deviation": true,
}

// Trading reports whether the configuration may submit transactions.
func (c *Config) Trading() bool {
	return c.Execution.Enabled && strings.ToLower(c.Mode) != "monitor"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must be set")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.ConfirmationTimeout.Duration <= 0 {
		errs = append(errs, "chain: confirmation_timeout must be positive")
	}

	// Pair and venues
	if !common.IsHexAddress(c.Pair.TokenA) {
		errs = append(errs, fmt.Sprintf("pair: token_a %q is not an address", c.Pair.TokenA))
	}
	if c.Pair.TokenB != "" && !common.IsHexAddress(c.Pair.TokenB) {
		errs = append(errs, fmt.Sprintf("pair: token_b %q is not an address", c.Pair.TokenB))
	}
	if c.Pair.Decimals < 0 || c.Pair.Decimals > 36 {
		errs = append(errs, fmt.Sprintf("pair: decimals must be within [0, 36], got %d", c.Pair.Decimals))
	}
	if len(c.Venues) < 2 {
		errs = append(errs, fmt.Sprintf("venues: at least 2 venues are required, got %d", len(c.Venues)))
	}
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
		} else if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("venues[%d]: duplicate name %q", i, v.Name))
		}
		seen[v.Name] = true
		if !common.IsHexAddress(v.PairAddress) {
			errs = append(errs, fmt.Sprintf("venues[%d]: pair_address %q is not an address", i, v.PairAddress))
		}
	}

	// Arbitrage
	if !validStrategies[c.Arbitrage.Strategy] {
		errs = append(errs, fmt.Sprintf("arbitrage: unknown strategy %q (valid: pairwise, deviation)", c.Arbitrage.Strategy))
	}
	if c.Arbitrage.MinProfitFraction < 0 {
		errs = append(errs, "arbitrage: min_profit_fraction must not be negative")
	}
	if c.Arbitrage.DeviationThreshold < 0 {
		errs = append(errs, "arbitrage: deviation_threshold must not be negative")
	}
	if c.Arbitrage.PollInterval.Duration <= 0 {
		errs = append(errs, "arbitrage: poll_interval must be positive")
	}

	// Risk
	if _, err := c.MaxPositionSize(); err != nil {
		errs = append(errs, "risk: "+err.Error())
	}
	if c.Risk.StopLossThreshold < 0 {
		errs = append(errs, "risk: stop_loss_threshold must not be negative")
	}
	if c.Risk.VolatilityWindow < 0 {
		errs = append(errs, "risk: volatility_window must not be negative")
	}

	// Execution
	if c.Execution.SlippageTolerance < 0 || c.Execution.SlippageTolerance > 1000 {
		errs = append(errs, fmt.Sprintf("execution: slippage_tolerance must be within [0, 1000] per mille, got %d", c.Execution.SlippageTolerance))
	}
	if c.Execution.WindowMinutes < 0 || c.Execution.WindowMinutes > maxWindowMinutes {
		errs = append(errs, fmt.Sprintf("execution: window_minutes must be within [0, %d], got %d", maxWindowMinutes, c.Execution.WindowMinutes))
	}
	if c.Execution.MaxAttempts < 1 {
		errs = append(errs, "execution: max_attempts must be at least 1")
	}
	if c.Trading() {
		if !common.IsHexAddress(c.Chain.RouterAddress) {
			errs = append(errs, "chain: router_address must be set when execution is enabled")
		}
		if c.Execution.UseFlashLoan && !common.IsHexAddress(c.Chain.FlashLoanProviderAddress) {
			errs = append(errs, "chain: flash_loan_provider_address must be set when use_flash_loan is enabled")
		}
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set when execution is enabled")
		}
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Storage
	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: dsn or host must be set")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must be set")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must be set")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must be set")
		}
	}
	if c.Archive.Enabled {
		if _, err := cron.ParseStandard(c.Archive.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("archive: invalid cron %q: %v", c.Archive.Cron, err))
		}
		if c.Archive.RetentionDays <= 0 {
			errs = append(errs, "archive: retention_days must be positive")
		}
		if !c.Postgres.Enabled || !c.S3.Enabled {
			errs = append(errs, "archive: requires postgres and s3 to be enabled")
		}
	}

	// Server
	serverOn := c.Server.Enabled || strings.ToLower(c.Mode) == "server"
	if serverOn && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be within [1, 65535], got %d", c.Server.Port))
	}

	// Notify
	if c.Notify.TelegramToken != "" && len(c.Notify.TelegramChatIDs) == 0 {
		errs = append(errs, "notify: telegram_chat_ids must be set when telegram_token is set")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// MaxPositionSize returns the position cap in TokenA base units.
func (c *Config) MaxPositionSize() (*big.Int, error) {
	amt, err := ParseAmount(c.Risk.MaxPositionSize, c.Pair.Decimals)
	if err != nil {
		return nil, fmt.Errorf("max_position_size: %w", err)
	}
	return amt, nil
}

// ParseAmount converts a non-negative decimal token amount to base units. An
// amount finer than the token's decimals is rejected rather than rounded.
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q must not be negative", s)
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	return shifted.BigInt(), nil
}
