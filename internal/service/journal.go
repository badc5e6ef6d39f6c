// Package service records what the bot does: opportunities and execution
// attempts are persisted, published on the signal bus, audited and, for the
// events operators care about, sent as notifications.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/notify"
)

// recentLimit bounds the in-memory history served when no store is wired.
const recentLimit = 200

// Journal is best effort: every collaborator is optional and every failure is
// logged, never returned, so recording can not stop a trading cycle.
type Journal struct {
	opps     domain.OpportunityStore
	execs    domain.ExecutionStore
	audit    domain.AuditStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	format   notify.Formatter
	logger   *slog.Logger

	mu          sync.RWMutex
	recentOpps  []domain.Opportunity
	recentExecs []domain.Execution
}

// JournalDeps lists the optional collaborators of a Journal.
type JournalDeps struct {
	Opportunities domain.OpportunityStore
	Executions    domain.ExecutionStore
	Audit         domain.AuditStore
	Bus           domain.SignalBus
	Notifier      *notify.Notifier
	Formatter     notify.Formatter
}

// NewJournal creates a Journal.
func NewJournal(deps JournalDeps, logger *slog.Logger) *Journal {
	return &Journal{
		opps:     deps.Opportunities,
		execs:    deps.Executions,
		audit:    deps.Audit,
		bus:      deps.Bus,
		notifier: deps.Notifier,
		format:   deps.Formatter,
		logger:   logger.With(slog.String("component", "journal")),
	}
}

// RecordOpportunities assigns IDs to opps in place, persists and publishes
// them, and notifies about the best one. opps is expected best first.
func (j *Journal) RecordOpportunities(ctx context.Context, opps []domain.Opportunity) {
	if len(opps) == 0 {
		return
	}
	for i := range opps {
		if opps[i].ID == "" {
			opps[i].ID = uuid.NewString()
		}
	}

	j.mu.Lock()
	j.recentOpps = prepend(j.recentOpps, opps)
	j.mu.Unlock()

	if j.opps != nil {
		if err := j.opps.InsertBatch(ctx, opps); err != nil {
			j.warn(ctx, "journal: store opportunities failed", err)
		}
	}
	for _, o := range opps {
		j.publish(ctx, domain.ChannelOpportunities, o)
	}
	if j.notifier.Enabled(notify.EventOpportunity) {
		title, msg := j.format.Opportunity(opps[0])
		j.notify(ctx, notify.EventOpportunity, title, msg)
	}
}

// ExecutionStarted journals a submitted attempt.
func (j *Journal) ExecutionStarted(ctx context.Context, exec domain.Execution) {
	j.remember(exec)
	if j.execs != nil {
		if err := j.execs.Create(ctx, exec); err != nil {
			j.warn(ctx, "journal: create execution failed", err, slog.String("execution_id", exec.ID))
		}
	}
	j.publish(ctx, domain.ChannelExecutions, exec)
}

// ExecutionFinished journals the outcome of an attempt.
func (j *Journal) ExecutionFinished(ctx context.Context, exec domain.Execution) {
	j.remember(exec)
	if j.execs != nil {
		if err := j.execs.Update(ctx, exec); err != nil {
			j.warn(ctx, "journal: update execution failed", err, slog.String("execution_id", exec.ID))
		}
	}
	j.publish(ctx, domain.ChannelExecutions, exec)
	j.auditLog(ctx, "execution."+string(exec.Status), map[string]any{
		"execution_id":   exec.ID,
		"opportunity_id": exec.OpportunityID,
		"kind":           exec.Kind,
		"route":          exec.BuyVenue + "->" + exec.SellVenue,
		"amount_in":      exec.AmountIn,
		"attempt":        exec.Attempt,
		"tx_hash":        exec.TxHash,
		"error":          exec.Error,
	})

	event := notify.EventTradeFailed
	if exec.Status == domain.ExecutionConfirmed {
		event = notify.EventTradeExecuted
	}
	if j.notifier.Enabled(event) {
		title, msg := j.format.Execution(exec)
		j.notify(ctx, event, title, msg)
	}
}

// BreakerTripped records a circuit-breaker halt.
func (j *Journal) BreakerTripped(ctx context.Context, volatility, threshold float64) {
	j.auditLog(ctx, "bot.circuit_breaker", map[string]any{
		"volatility": volatility,
		"threshold":  threshold,
	})
	j.publish(ctx, domain.ChannelStatus, map[string]any{
		"event":      "circuit_breaker",
		"volatility": volatility,
		"threshold":  threshold,
		"at":         time.Now().UTC(),
	})
	title, msg := j.format.CircuitBreaker(volatility, threshold)
	j.notify(ctx, notify.EventCircuitBreak, title, msg)
}

// Started records a transition to running.
func (j *Journal) Started(ctx context.Context) {
	j.auditLog(ctx, "bot.started", nil)
	j.publish(ctx, domain.ChannelStatus, map[string]any{"event": "started", "at": time.Now().UTC()})
}

// Stopped records a transition to stopped.
func (j *Journal) Stopped(ctx context.Context, reason string) {
	j.auditLog(ctx, "bot.stopped", map[string]any{"reason": reason})
	j.publish(ctx, domain.ChannelStatus, map[string]any{"event": "stopped", "reason": reason, "at": time.Now().UTC()})
	j.notify(ctx, notify.EventBotStopped, "Bot stopped", reason)
}

// RecentOpportunities lists opportunities newest first, from the store when
// one is wired.
func (j *Journal) RecentOpportunities(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	if j.opps != nil {
		return j.opps.ListRecent(ctx, opts)
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return page(j.recentOpps, opts), nil
}

// RecentExecutions lists execution attempts newest first, from the store
// when one is wired.
func (j *Journal) RecentExecutions(ctx context.Context, opts domain.ListOpts) ([]domain.Execution, error) {
	if j.execs != nil {
		return j.execs.ListRecent(ctx, opts)
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return page(j.recentExecs, opts), nil
}

func (j *Journal) remember(exec domain.Execution) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.recentExecs {
		if j.recentExecs[i].ID == exec.ID {
			j.recentExecs[i] = exec
			return
		}
	}
	j.recentExecs = prepend(j.recentExecs, []domain.Execution{exec})
}

func (j *Journal) publish(ctx context.Context, channel string, v any) {
	if j.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		j.warn(ctx, "journal: encode event failed", err, slog.String("channel", channel))
		return
	}
	if err := j.bus.Publish(ctx, channel, payload); err != nil {
		j.warn(ctx, "journal: publish failed", err, slog.String("channel", channel))
	}
}

func (j *Journal) auditLog(ctx context.Context, event string, detail map[string]any) {
	if j.audit == nil {
		return
	}
	if err := j.audit.Log(ctx, event, detail); err != nil {
		j.warn(ctx, "journal: audit log failed", err, slog.String("event", event))
	}
}

func (j *Journal) notify(ctx context.Context, event, title, msg string) {
	if err := j.notifier.Notify(ctx, event, title, msg); err != nil {
		j.warn(ctx, "journal: notify failed", err, slog.String("event", event))
	}
}

func (j *Journal) warn(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+1)
	for _, a := range attrs {
		args = append(args, a)
	}
	args = append(args, slog.String("error", err.Error()))
	j.logger.WarnContext(ctx, msg, args...)
}

// prepend puts items (already newest first) ahead of list and trims the
// result to recentLimit.
func prepend[T any](list, items []T) []T {
	out := make([]T, 0, min(len(list)+len(items), recentLimit))
	out = append(out, items...)
	out = append(out, list...)
	if len(out) > recentLimit {
		out = out[:recentLimit]
	}
	return out
}

func page[T any](list []T, opts domain.ListOpts) []T {
	start := min(max(opts.Offset, 0), len(list))
	end := len(list)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, len(list))
	}
	return append([]T(nil), list[start:end]...)
}
