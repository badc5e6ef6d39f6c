package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexarb/internal/orchestrator"
	"github.com/alanyoungcy/dexarb/internal/server"
	"github.com/alanyoungcy/dexarb/internal/server/handler"
	"github.com/alanyoungcy/dexarb/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// TradeMode runs the loop with execution enabled from startup.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting trade mode")
	return a.supervise(ctx, deps, a.cfg.Trading(), true, a.cfg.Server.Enabled)
}

// MonitorMode runs the loop with execution disabled: opportunities are
// detected, journaled and broadcast but never traded.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting monitor mode")
	return a.supervise(ctx, deps, false, true, a.cfg.Server.Enabled)
}

// ServerMode serves the API without starting the loop; an operator starts it
// with POST /api/bot/start.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting server mode")
	return a.supervise(ctx, deps, a.cfg.Trading(), false, true)
}

// supervise runs the bot, the archiver and optionally the API server in one
// errgroup. Without a server there is no way to restart a halted bot, so the
// app exits once the loop stops.
func (a *App) supervise(ctx context.Context, deps *Dependencies, execution, autoStart, serve bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	bot := a.newBot(deps, execution)

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.RunCron(ctx, a.cfg.Archive.Cron)
		})
	}

	if serve {
		srv, hub := a.newServer(ctx, deps, bot)
		g.Go(func() error { return hub.Run(ctx) })
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if autoStart {
		if err := bot.Start(ctx); err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("app: start bot: %w", err)
		}
		if !serve {
			g.Go(func() error {
				select {
				case <-bot.Done():
					a.logger.InfoContext(ctx, "app: bot stopped, exiting")
					cancel()
				case <-ctx.Done():
				}
				return nil
			})
		}
	}

	// An execution in flight finishes before the process exits.
	g.Go(func() error {
		<-ctx.Done()
		<-bot.Done()
		return nil
	})

	return g.Wait()
}

func (a *App) newBot(deps *Dependencies, execution bool) *orchestrator.Bot {
	if execution && deps.Executor == nil {
		a.logger.Warn("app: execution requested without an executor, running in monitor mode")
		execution = false
	}
	return orchestrator.New(orchestrator.Deps{
		Monitor:  deps.Monitor,
		Strategy: deps.Strategy,
		Risk:     deps.Risk,
		Executor: deps.Executor,
		Cooldown: deps.Cooldown,
		Locks:    deps.LockManager,
		Recorder: deps.Journal,
	}, orchestrator.Config{
		PollInterval:     a.cfg.Arbitrage.PollInterval.Duration,
		ExecutionEnabled: execution,
		UseFlashLoan:     a.cfg.Execution.UseFlashLoan,
		Account:          deps.Account,
		Asset:            deps.Asset,
		MaxAttempts:      a.cfg.Execution.MaxAttempts,
		RetryInterval:    a.cfg.Execution.RetryInterval.Duration,
		LockTTL:          a.cfg.Execution.LockTTL.Duration,
	}, a.logger)
}

func (a *App) newServer(ctx context.Context, deps *Dependencies, bot *orchestrator.Bot) (*server.Server, *ws.Hub) {
	health := handler.NewHealthHandler(a.logger)
	for name, check := range deps.HealthChecks {
		health.WithCheck(name, check)
	}

	journal := handler.NewJournalHandler(deps.Journal, a.logger)
	if deps.ExecutionStore != nil {
		journal.WithExecutionStore(deps.ExecutionStore)
	}

	hub := ws.NewHub(deps.SignalBus, func() any {
		last, cycles := bot.LastCycle()
		return map[string]any{
			"mode":          a.cfg.Mode,
			"strategy_name": bot.StrategyName(),
			"state":         bot.State(),
			"cycles":        cycles,
			"last_cycle":    last,
		}
	}, a.cfg.Server.CORSOrigins, a.logger)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:  health,
		Status:  handler.NewStatusHandler(a.cfg.Mode, bot),
		Prices:  handler.NewPriceHandler(a.cfg.Pair.Key(), deps.Monitor),
		Journal: journal,
		Bot:     handler.NewBotHandler(ctx, bot, a.logger),
	}, hub, a.logger)

	if a.cfg.Server.APIKey == "" {
		a.logger.Warn("app: api key not set, server authentication disabled")
	}
	return srv, hub
}

