// Package orchestrator runs the trading loop: poll venue prices, refresh the
// volatility estimate, check the circuit breaker, detect opportunities, then
// size and execute the best one. It owns the started/stopped lifecycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/arbitrage"
	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/executor"
	"github.com/alanyoungcy/dexarb/internal/retrier"
	"github.com/alanyoungcy/dexarb/internal/risk"
)

// ErrCycleInFlight is returned by RunCycle while another cycle is running.
var ErrCycleInFlight = errors.New("orchestrator: cycle already in flight")

// DefaultPollInterval is the cycle period used when none is configured.
const DefaultPollInterval = 10 * time.Second

// State is the lifecycle state of a Bot.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// PriceMonitor reads the venue prices for one cycle.
type PriceMonitor interface {
	Resolve(ctx context.Context) error
	Snapshot(ctx context.Context) (domain.PriceSnapshot, []domain.VenueQuote, error)
	Liquidity(venue string) (*big.Int, error)
}

// Recorder journals what the bot does. Implementations must not block the
// cycle on failures.
type Recorder interface {
	RecordOpportunities(ctx context.Context, opps []domain.Opportunity)
	ExecutionStarted(ctx context.Context, exec domain.Execution)
	ExecutionFinished(ctx context.Context, exec domain.Execution)
	BreakerTripped(ctx context.Context, volatility, threshold float64)
	Started(ctx context.Context)
	Stopped(ctx context.Context, reason string)
}

// Config holds the loop and execution settings.
type Config struct {
	PollInterval     time.Duration
	ExecutionEnabled bool
	UseFlashLoan     bool
	// Account signs every submission.
	Account common.Address
	// Asset is the token borrowed by flash loans.
	Asset common.Address
	// MaxAttempts is the total number of submissions per opportunity.
	MaxAttempts   int
	RetryInterval time.Duration
	// LockTTL bounds how long the execution lock may be held.
	LockTTL time.Duration
}

// Deps are the collaborators of a Bot. Locks, Cooldown and Recorder are
// optional. Executor may be nil when execution is disabled.
type Deps struct {
	Monitor  PriceMonitor
	Strategy arbitrage.Strategy
	Risk     *risk.Manager
	Executor *executor.Executor
	Cooldown *executor.Cooldown
	Locks    domain.LockManager
	Recorder Recorder
}

// CycleReport summarises one detect/decide/execute pass.
type CycleReport struct {
	StartedAt      time.Time            `json:"started_at"`
	Duration       time.Duration        `json:"duration"`
	Prices         domain.PriceSnapshot `json:"prices"`
	Volatility     float64              `json:"volatility"`
	BreakerTripped bool                 `json:"breaker_tripped"`
	Opportunities  []domain.Opportunity `json:"opportunities"`
	PositionSize   string               `json:"position_size,omitempty"`
	Execution      *domain.Execution    `json:"execution,omitempty"`
	Skipped        string               `json:"skipped,omitempty"`
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Bot is the arbitrage loop. Cycles never overlap: the next one is scheduled
// only after the previous one returns.
type Bot struct {
	monitor  PriceMonitor
	strategy arbitrage.Strategy
	risk     *risk.Manager
	exec     *executor.Executor
	cooldown *executor.Cooldown
	locks    domain.LockManager
	recorder Recorder
	cfg      Config
	logger   *slog.Logger

	inFlight atomic.Bool

	mu        sync.Mutex
	starting  bool
	current   *run
	startedAt time.Time
	last      *CycleReport
	cycles    int64
}

// New creates a stopped Bot.
func New(deps Deps, cfg Config, logger *slog.Logger) *Bot {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Bot{
		monitor:  deps.Monitor,
		strategy: deps.Strategy,
		risk:     deps.Risk,
		exec:     deps.Executor,
		cooldown: deps.Cooldown,
		locks:    deps.Locks,
		recorder: deps.Recorder,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// Start resolves the venue handles and begins cycling until ctx ends or Stop
// is called.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.current != nil || b.starting {
		b.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	b.starting = true
	b.mu.Unlock()

	// Resolve makes one call per venue, so it runs outside mu.
	err := b.monitor.Resolve(ctx)

	b.mu.Lock()
	b.starting = false
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("orchestrator: resolve venues: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	b.current = r
	b.startedAt = time.Now().UTC()
	b.mu.Unlock()
	go b.loop(runCtx, r)

	b.logger.InfoContext(ctx, "orchestrator: started",
		slog.String("strategy", b.strategy.Name()),
		slog.Duration("poll_interval", b.cfg.PollInterval),
		slog.Bool("execution_enabled", b.cfg.ExecutionEnabled),
	)
	if b.recorder != nil {
		b.recorder.Started(ctx)
	}
	return nil
}

// Stop halts the loop. An execution already in flight runs to completion but
// no new cycle is scheduled. Use Done to wait for the loop to exit.
func (b *Bot) Stop() error {
	return b.halt(context.Background(), nil, "stopped by operator")
}

// Done returns a channel closed when the current loop exits. It is closed
// already when the bot is stopped.
func (b *Bot) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return b.current.done
}

// State reports whether the loop is running.
func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return StateStopped
	}
	return StateRunning
}

// StartedAt is when the current run began; zero when stopped.
func (b *Bot) StartedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return time.Time{}
	}
	return b.startedAt
}

// LastCycle returns the most recent report, if any, and the cycle count.
func (b *Bot) LastCycle() (*CycleReport, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return nil, b.cycles
	}
	r := *b.last
	return &r, b.cycles
}

// StrategyName names the detection strategy in use.
func (b *Bot) StrategyName() string {
	return b.strategy.Name()
}

// halt stops the current run. When only is set, a different run is left
// alone.
func (b *Bot) halt(ctx context.Context, only *run, reason string) error {
	b.mu.Lock()
	r := b.current
	if r == nil || (only != nil && r != only) {
		b.mu.Unlock()
		return domain.ErrNotRunning
	}
	b.current = nil
	b.mu.Unlock()
	r.cancel()

	b.logger.InfoContext(ctx, "orchestrator: stopped", slog.String("reason", reason))
	if b.recorder != nil {
		b.recorder.Stopped(ctx, reason)
	}
	return nil
}

func (b *Bot) loop(ctx context.Context, r *run) {
	defer close(r.done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = b.halt(context.WithoutCancel(ctx), r, "shutdown")
			return
		case <-timer.C:
		}

		if _, err := b.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.WarnContext(ctx, "orchestrator: cycle failed", slog.String("error", err.Error()))
		}
		timer.Reset(b.cfg.PollInterval)
	}
}

// RunCycle performs one detect/decide/execute pass. It may be called while
// the bot is stopped to evaluate the market once; it returns ErrCycleInFlight
// if a cycle is already running.
func (b *Bot) RunCycle(ctx context.Context) (CycleReport, error) {
	if !b.inFlight.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInFlight
	}
	defer b.inFlight.Store(false)

	report := CycleReport{StartedAt: time.Now().UTC()}
	err := b.cycle(ctx, &report)
	report.Duration = time.Since(report.StartedAt)

	b.mu.Lock()
	b.cycles++
	b.last = &report
	b.mu.Unlock()
	return report, err
}

func (b *Bot) cycle(ctx context.Context, report *CycleReport) error {
	if b.cooldown != nil {
		b.cooldown.Cleanup()
	}

	snapshot, _, err := b.monitor.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: snapshot: %w", err)
	}
	report.Prices = snapshot

	if avg, err := arbitrage.AveragePrice(snapshot); err == nil {
		b.risk.Refresh(avg)
	}
	report.Volatility = b.risk.Volatility()

	if b.risk.EvaluateCircuitBreaker(report.Volatility) {
		report.BreakerTripped = true
		threshold := b.risk.Config().StopLossThreshold
		b.logger.WarnContext(ctx, "orchestrator: circuit breaker tripped",
			slog.Float64("volatility", report.Volatility),
			slog.Float64("threshold", threshold),
		)
		if b.recorder != nil {
			b.recorder.BreakerTripped(ctx, report.Volatility, threshold)
		}
		if err := b.halt(ctx, nil, "circuit breaker"); err != nil && !errors.Is(err, domain.ErrNotRunning) {
			return err
		}
		return nil
	}

	opps, err := b.strategy.Detect(snapshot)
	if err != nil {
		return fmt.Errorf("orchestrator: detect: %w", err)
	}
	now := time.Now().UTC()
	for i := range opps {
		if opps[i].DetectedAt.IsZero() {
			opps[i].DetectedAt = now
		}
	}
	if b.recorder != nil {
		b.recorder.RecordOpportunities(ctx, opps)
	}
	report.Opportunities = opps
	if len(opps) == 0 {
		report.Skipped = "no opportunity"
		return nil
	}

	best := opps[0]
	b.logger.InfoContext(ctx, "orchestrator: opportunity",
		slog.String("route", best.Route()),
		slog.Float64("profit_fraction", best.ProfitFraction),
		slog.Int("count", len(opps)),
	)

	if !b.cfg.ExecutionEnabled {
		report.Skipped = "execution disabled"
		return nil
	}
	if b.cooldown != nil && b.cooldown.Active(best.Route()) {
		report.Skipped = "route cooling down"
		return nil
	}

	liquidity, err := b.monitor.Liquidity(best.BuyVenue)
	if err != nil {
		report.Skipped = "liquidity unavailable"
		b.logger.WarnContext(ctx, "orchestrator: liquidity unavailable",
			slog.String("venue", best.BuyVenue),
			slog.String("error", err.Error()),
		)
		return nil
	}
	size := b.risk.SizePosition(best, liquidity)
	if size.Sign() == 0 {
		report.Skipped = "position size zero"
		return nil
	}
	report.PositionSize = size.String()

	exec, err := b.execute(ctx, best, size)
	report.Execution = exec
	if errors.Is(err, domain.ErrLockHeld) {
		report.Skipped = "execution lock held"
		return nil
	}
	return err
}

// execute submits opp for size under the execution lock. The submission runs
// detached from ctx so a stop does not abandon a broadcast transaction, but
// no retry starts once ctx has ended.
func (b *Bot) execute(ctx context.Context, opp domain.Opportunity, size *big.Int) (*domain.Execution, error) {
	if b.locks != nil {
		unlock, err := b.locks.Acquire(ctx, "execution:"+b.cfg.Account.Hex(), b.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	execCtx := context.WithoutCancel(ctx)
	kind := domain.ExecutionSwap
	if b.cfg.UseFlashLoan {
		kind = domain.ExecutionFlashLoan
	}

	var expectedProfit string
	if est, err := arbitrage.EstimateTradeAmount(opp.BuyPrice, opp.SellPrice, size); err == nil {
		expectedProfit = est.ExpectedProfit.String()
	}

	var last domain.Execution
	r := retrier.New(
		retrier.WithInitialInterval(b.cfg.RetryInterval),
		retrier.WithMaxInterval(4*b.cfg.RetryInterval),
		retrier.WithMaxAttempts(b.cfg.MaxAttempts),
		retrier.WithJitter(0.1),
		retrier.WithRetryIf(func(err error) bool {
			return ctx.Err() == nil && Retryable(err)
		}),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			b.logger.WarnContext(ctx, "orchestrator: retrying execution",
				slog.String("route", opp.Route()),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		}),
	)

	err := r.Do(execCtx, func(ctx context.Context, attempt int) error {
		order := b.exec.NewOrder(opp, size, b.cfg.Account)
		last = domain.Execution{
			ID:             order.ID,
			OpportunityID:  opp.ID,
			Kind:           kind,
			BuyVenue:       opp.BuyVenue,
			SellVenue:      opp.SellVenue,
			Account:        b.cfg.Account.Hex(),
			AmountIn:       order.AmountIn.String(),
			MinAmountOut:   order.MinAmountOut.String(),
			ExpectedProfit: expectedProfit,
			Deadline:       order.Deadline,
			Attempt:        attempt,
			Status:         domain.ExecutionSubmitted,
			CreatedAt:      time.Now().UTC(),
		}
		last.UpdatedAt = last.CreatedAt
		if b.recorder != nil {
			b.recorder.ExecutionStarted(ctx, last)
		}

		receipt, err := b.submit(ctx, order)
		last.TxHash = receipt.TxHash
		last.UpdatedAt = time.Now().UTC()
		switch {
		case err == nil:
			last.Status = domain.ExecutionConfirmed
		case errors.Is(err, domain.ErrConfirmationTimeout):
			last.Status = domain.ExecutionTimeout
			last.Error = err.Error()
		default:
			last.Status = domain.ExecutionFailed
			last.Error = err.Error()
		}
		var txErr *executor.TxError
		if last.TxHash == "" && errors.As(err, &txErr) {
			last.TxHash = txErr.TxHash
		}
		if b.recorder != nil {
			b.recorder.ExecutionFinished(ctx, last)
		}
		return err
	})

	if b.cooldown != nil {
		b.cooldown.Mark(opp.Route())
	}
	if err != nil {
		return &last, fmt.Errorf("orchestrator: execute %s: %w", opp.Route(), err)
	}
	b.logger.InfoContext(ctx, "orchestrator: executed",
		slog.String("route", opp.Route()),
		slog.String("amount_in", last.AmountIn),
		slog.String("tx_hash", last.TxHash),
		slog.Int("attempt", last.Attempt),
	)
	return &last, nil
}

func (b *Bot) submit(ctx context.Context, order domain.TradeOrder) (domain.Receipt, error) {
	if !b.cfg.UseFlashLoan {
		return b.exec.ExecuteSwap(ctx, order)
	}
	path, err := b.exec.ResolvePath(order.VenuePath)
	if err != nil {
		return domain.Receipt{}, err
	}
	data, err := executor.EncodeStrategy(path, order.MinAmountOut, order.Deadline)
	if err != nil {
		return domain.Receipt{}, err
	}
	return b.exec.ExecuteFlashLoanSwap(ctx, b.cfg.Asset, order.AmountIn, data, order.Account)
}

// Retryable reports whether a failed execution may be resubmitted with a
// fresh order. Only failures that certainly left nothing on the network
// qualify, including a definitive rejection by the node. A transaction the
// node may have accepted is never resubmitted: it may still land.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var bErr *domain.BroadcastError
	if errors.As(err, &bErr) && !bErr.Rejected {
		return false
	}
	if errors.Is(err, domain.ErrGasPriceUnavailable) {
		return true
	}
	var txErr *executor.TxError
	if errors.As(err, &txErr) {
		return !txErr.Broadcast() && errors.Is(txErr.Kind, domain.ErrExecutionFailure)
	}
	return false
}
