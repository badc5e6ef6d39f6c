package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/arbitrage"
	s3blob "github.com/alanyoungcy/dexarb/internal/blob/s3"
	"github.com/alanyoungcy/dexarb/internal/cache/memory"
	"github.com/alanyoungcy/dexarb/internal/cache/redis"
	"github.com/alanyoungcy/dexarb/internal/chain"
	"github.com/alanyoungcy/dexarb/internal/config"
	"github.com/alanyoungcy/dexarb/internal/crypto"
	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/executor"
	"github.com/alanyoungcy/dexarb/internal/notify"
	"github.com/alanyoungcy/dexarb/internal/pipeline"
	"github.com/alanyoungcy/dexarb/internal/pricefeed"
	"github.com/alanyoungcy/dexarb/internal/risk"
	"github.com/alanyoungcy/dexarb/internal/service"
	"github.com/alanyoungcy/dexarb/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is built by Wire and torn
// down by the cleanup function Wire returns.
type Dependencies struct {
	// Chain
	Monitor  *pricefeed.Monitor
	Executor *executor.Executor // nil unless trading
	Account  common.Address
	Asset    common.Address

	// Decision
	Strategy arbitrage.Strategy
	Risk     *risk.Manager
	Cooldown *executor.Cooldown

	// Caches, Redis-backed or in-process
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Stores, nil when Postgres is disabled
	OpportunityStore *postgres.OpportunityStore
	ExecutionStore   *postgres.ExecutionStore
	AuditStore       *postgres.AuditStore

	// Archiver is nil unless archiving is enabled.
	Archiver *pipeline.Archiver

	Notifier *notify.Notifier
	Journal  *service.Journal

	// HealthChecks test the optional backing services.
	HealthChecks map[string]func(context.Context) error
}

// Wire constructs every concrete dependency from cfg. On error, anything
// already opened is closed before returning.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		HealthChecks: make(map[string]func(context.Context) error),
	}

	// --- Chain ---
	eth, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, eth.Close)
	deps.HealthChecks["rpc"] = func(ctx context.Context) error {
		_, err := eth.BlockNumber(ctx)
		return err
	}

	// --- Redis, or in-process fallbacks ---
	var snapshots domain.SnapshotCache
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		snapshots = redis.NewSnapshotCache(rc, cfg.Redis.SnapshotTTL.Duration)
		deps.LockManager = redis.NewLockManager(rc, logger)
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.HealthChecks["redis"] = rc.Ping
	} else {
		deps.LockManager = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- Price feed ---
	venues := make([]domain.Venue, 0, len(cfg.Venues))
	addrs := make(map[string]common.Address, len(cfg.Venues))
	for _, v := range cfg.Venues {
		addr := common.HexToAddress(v.PairAddress)
		venues = append(venues, domain.Venue{Name: v.Name, PairAddress: addr})
		addrs[v.Name] = addr
	}
	deps.Asset = common.HexToAddress(cfg.Pair.TokenA)
	deps.Monitor = pricefeed.NewMonitor(chain.NewPairReader(eth), snapshots, venues, pricefeed.Config{
		Pair:         cfg.Pair.Key(),
		TokenA:       deps.Asset,
		FetchTimeout: cfg.Arbitrage.FetchTimeout.Duration,
	}, logger)

	// --- Detection and risk ---
	deps.Strategy, err = arbitrage.NewDefaultRegistry(
		cfg.Arbitrage.MinProfitFraction,
		cfg.Arbitrage.DeviationThreshold,
	).Get(cfg.Arbitrage.Strategy)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}

	maxSize, err := cfg.MaxPositionSize()
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	var estimator risk.VolatilityEstimator = risk.StaticVolatility(cfg.Risk.StaticVolatility)
	if cfg.Risk.VolatilityWindow > 0 {
		estimator = risk.NewRollingVolatility(cfg.Risk.VolatilityWindow)
	}
	deps.Risk = risk.NewManager(risk.Config{
		MaxPositionSize:   maxSize,
		StopLossThreshold: cfg.Risk.StopLossThreshold,
	}, estimator, logger)
	deps.Cooldown = executor.NewCooldown(cfg.Execution.Cooldown.Duration)

	// --- Execution, only when trading ---
	if cfg.Trading() {
		src := crypto.KeySource{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		}
		key, err := crypto.LoadKey(src)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		signer, err := crypto.NewTxSigner(key, cfg.Chain.ChainID)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		deps.Account = signer.Address()
		logger.InfoContext(ctx, "wire: trading key loaded",
			slog.String("source", src.Describe()),
			slog.String("account", deps.Account.Hex()),
		)

		var flash domain.FlashLoanProvider
		if cfg.Execution.UseFlashLoan {
			flash = chain.NewFlashLoan(eth, common.HexToAddress(cfg.Chain.FlashLoanProviderAddress),
				cfg.Chain.ReceiptPollInterval.Duration, logger)
		}
		deps.Executor = executor.New(
			chain.NewRouter(eth, common.HexToAddress(cfg.Chain.RouterAddress), cfg.Chain.ReceiptPollInterval.Duration, logger),
			flash,
			chain.NewGasOracle(eth),
			crypto.NewKeyring(signer),
			executor.Config{
				SlippageTolerance:   cfg.Execution.SlippageTolerance,
				WindowMinutes:       cfg.Execution.WindowMinutes,
				ConfirmationTimeout: cfg.Chain.ConfirmationTimeout.Duration,
				Venues:              addrs,
			},
			logger,
		)
	}

	// --- PostgreSQL ---
	journal := service.JournalDeps{Bus: deps.SignalBus}
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			applied, err := pg.RunMigrations(ctx)
			if err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
			logger.InfoContext(ctx, "wire: migrations applied", slog.Any("versions", applied))
		}

		pool := pg.Pool()
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.ExecutionStore = postgres.NewExecutionStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pool.Ping

		journal.Opportunities = deps.OpportunityStore
		journal.Executions = deps.ExecutionStore
		journal.Audit = deps.AuditStore
	}

	// --- S3 archive ---
	if cfg.S3.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.HealthChecks["s3"] = s3c.Health

		if cfg.Archive.Enabled && deps.OpportunityStore != nil {
			deps.Archiver = pipeline.NewArchiver(
				s3blob.NewArchiver(s3blob.NewWriter(s3c), deps.OpportunityStore, deps.ExecutionStore, deps.AuditStore, logger),
				cfg.Archive.RetentionDays,
				logger,
			)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && len(cfg.Notify.TelegramChatIDs) > 0 {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatIDs))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	journal.Notifier = deps.Notifier
	journal.Formatter = notify.Formatter{Pair: cfg.Pair.Key(), Decimals: cfg.Pair.Decimals}
	deps.Journal = service.NewJournal(journal, logger)

	return deps, cleanup, nil
}
