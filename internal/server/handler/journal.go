package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// JournalReader lists recorded opportunities and executions.
type JournalReader interface {
	RecentOpportunities(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error)
	RecentExecutions(ctx context.Context, opts domain.ListOpts) ([]domain.Execution, error)
}

// ExecutionGetter loads one execution by ID.
type ExecutionGetter interface {
	GetByID(ctx context.Context, id string) (domain.Execution, error)
}

// JournalHandler serves the opportunity and execution history.
type JournalHandler struct {
	journal JournalReader
	execs   ExecutionGetter // optional; GetExecution returns 501 without it
	logger  *slog.Logger
}

// NewJournalHandler creates a JournalHandler.
func NewJournalHandler(journal JournalReader, logger *slog.Logger) *JournalHandler {
	return &JournalHandler{journal: journal, logger: logHandler(logger, "journal")}
}

// WithExecutionStore enables lookups by ID.
func (h *JournalHandler) WithExecutionStore(execs ExecutionGetter) *JournalHandler {
	h.execs = execs
	return h
}

// ListOpportunities returns recent opportunities, newest first.
// GET /api/opportunities?limit=50&offset=0&since=RFC3339
func (h *JournalHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opps, err := h.journal.RecentOpportunities(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps})
}

// ListExecutions returns recent execution attempts, newest first.
// GET /api/executions?limit=50&offset=0
func (h *JournalHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := h.journal.RecentExecutions(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list executions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	if execs == nil {
		execs = []domain.Execution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs})
}

// GetExecution returns one execution attempt.
// GET /api/executions/{id}
func (h *JournalHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if h.execs == nil {
		writeError(w, http.StatusNotImplemented, "execution store not configured")
		return
	}
	id := r.PathValue("id")
	exec, err := h.execs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get execution failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}
	writeJSON(w, http.StatusOK, exec)
}
