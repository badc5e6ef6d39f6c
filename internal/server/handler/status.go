package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the bot's mode and lifecycle state for the dashboard.
type StatusHandler struct {
	mode string
	bot  BotController
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, bot BotController) *StatusHandler {
	return &StatusHandler{mode: mode, bot: bot}
}

// GetStatus responds with the mode, strategy, lifecycle state and the most
// recent cycle report.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	last, cycles := h.bot.LastCycle()
	resp := map[string]any{
		"mode":          h.mode,
		"strategy_name": h.bot.StrategyName(),
		"state":         h.bot.State(),
		"cycles":        cycles,
		"last_cycle":    last,
	}
	if started := h.bot.StartedAt(); !started.IsZero() {
		resp["started_at"] = started.Format(time.RFC3339)
		resp["uptime_seconds"] = int64(time.Since(started).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}
