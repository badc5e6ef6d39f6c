package arbitrage

import (
	"fmt"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Strategy turns a snapshot into ranked opportunities.
type Strategy interface {
	Name() string
	Detect(snapshot domain.PriceSnapshot) ([]domain.Opportunity, error)
}

// Pairwise reports round-trip profit between every pair of venues.
type Pairwise struct {
	MinProfitFraction float64
}

func (Pairwise) Name() string { return "pairwise" }

func (p Pairwise) Detect(snapshot domain.PriceSnapshot) ([]domain.Opportunity, error) {
	opps := FindOpportunities(snapshot, p.MinProfitFraction)
	for i := range opps {
		opps[i].Strategy = p.Name()
	}
	return opps, nil
}

// Deviation reports venues priced above the cheapest venue by at least
// Threshold. Each hit becomes an opportunity that buys at the cheapest venue
// and sells at the hit venue.
type Deviation struct {
	Threshold float64
}

func (Deviation) Name() string { return "deviation" }

func (d Deviation) Detect(snapshot domain.PriceSnapshot) ([]domain.Opportunity, error) {
	hits, err := DetectDeviationOpportunities(snapshot, d.Threshold)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	buyVenue, buyPrice, ok := CheapestVenue(snapshot)
	if !ok {
		return nil, fmt.Errorf("arbitrage: no cheapest venue: %w", domain.ErrInvalidInput)
	}

	opps := make([]domain.Opportunity, 0, len(hits))
	for _, h := range hits {
		opps = append(opps, domain.Opportunity{
			BuyVenue:       buyVenue,
			SellVenue:      h.Venue,
			BuyPrice:       buyPrice,
			SellPrice:      h.Price,
			ProfitFraction: h.Deviation,
			Strategy:       d.Name(),
		})
	}
	return opps, nil
}
