package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/orchestrator"
)

// BotController is the part of the orchestrator the API drives.
type BotController interface {
	Start(ctx context.Context) error
	Stop() error
	State() orchestrator.State
	StartedAt() time.Time
	LastCycle() (*orchestrator.CycleReport, int64)
	RunCycle(ctx context.Context) (orchestrator.CycleReport, error)
	StrategyName() string
}

// BotHandler starts, stops and steps the trading loop.
type BotHandler struct {
	bot BotController
	// runCtx outlives requests; a loop started over HTTP runs under it.
	runCtx context.Context
	logger *slog.Logger
}

// NewBotHandler creates a BotHandler. runCtx is the application context.
func NewBotHandler(runCtx context.Context, bot BotController, logger *slog.Logger) *BotHandler {
	return &BotHandler{bot: bot, runCtx: runCtx, logger: logHandler(logger, "bot")}
}

// Start begins the trading loop.
// POST /api/bot/start
func (h *BotHandler) Start(w http.ResponseWriter, r *http.Request) {
	err := h.bot.Start(h.runCtx)
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "bot is already running")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: start bot failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to start bot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.bot.State()})
}

// Stop halts the trading loop. An execution in flight still completes.
// POST /api/bot/stop
func (h *BotHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.bot.Stop(); err != nil {
		if errors.Is(err, domain.ErrNotRunning) {
			writeError(w, http.StatusConflict, "bot is not running")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: stop bot failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to stop bot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.bot.State()})
}

// Cycle runs one detect/decide/execute pass and returns its report.
// POST /api/bot/cycle
func (h *BotHandler) Cycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.bot.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrCycleInFlight) {
			writeError(w, http.StatusConflict, "a cycle is already in flight")
			return
		}
		h.logger.WarnContext(r.Context(), "handler: manual cycle failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
