package handler

import (
	"net/http"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// QuoteSource exposes the last reserve read of every venue.
type QuoteSource interface {
	Quotes() []domain.VenueQuote
}

// PriceHandler serves the latest venue quotes.
type PriceHandler struct {
	pair   string
	quotes QuoteSource
}

// NewPriceHandler creates a PriceHandler for pair.
func NewPriceHandler(pair string, quotes QuoteSource) *PriceHandler {
	return &PriceHandler{pair: pair, quotes: quotes}
}

// GetPrices returns every venue's last quote, including unavailable ones.
// GET /api/prices
func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	quotes := h.quotes.Quotes()
	if quotes == nil {
		quotes = []domain.VenueQuote{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pair":   h.pair,
		"quotes": quotes,
	})
}
